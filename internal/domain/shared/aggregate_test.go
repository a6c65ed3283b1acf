package shared

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewBaseAggregateRoot(t *testing.T) {
	a := NewBaseAggregateRoot()

	assert.NotEqual(t, uuid.Nil, a.GetID())
	assert.Equal(t, 1, a.GetVersion())
	assert.Equal(t, a.CreatedAt, a.GetUpdatedAt())
	assert.Empty(t, a.GetDomainEvents())
}

func TestBaseAggregateRoot_MarkChanged(t *testing.T) {
	a := NewBaseAggregateRoot()
	at := time.Date(2025, 3, 1, 9, 30, 0, 0, time.FixedZone("CET", 3600))

	a.MarkChanged(at)

	assert.Equal(t, 2, a.GetVersion())
	assert.Equal(t, at.UTC(), a.UpdatedAt)
	assert.Equal(t, time.UTC, a.UpdatedAt.Location())
}

func TestBaseAggregateRoot_DomainEvents(t *testing.T) {
	a := NewBaseAggregateRoot()
	e1 := NewBaseDomainEvent("DonationApproved", "Donation", a.ID)
	e2 := NewBaseDomainEvent("DonationRejected", "Donation", a.ID)

	a.AddDomainEvent(&e1)
	a.AddDomainEvent(&e2)
	assert.Len(t, a.GetDomainEvents(), 2)
	assert.Equal(t, "DonationApproved", a.GetDomainEvents()[0].EventType())

	a.ClearDomainEvents()
	assert.Empty(t, a.GetDomainEvents())
}
