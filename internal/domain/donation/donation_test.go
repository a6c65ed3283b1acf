package donation

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charity/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPending(t *testing.T, amount int64, projectID *uuid.UUID) *Donation {
	t.Helper()
	typ := DonationTypeGeneral
	if projectID != nil {
		typ = DonationTypeSpecificProject
	}
	d, err := NewDonation(decimal.NewFromInt(amount), typ, projectID, "Alex")
	require.NoError(t, err)
	return d
}

func TestNewDonation(t *testing.T) {
	projectID := uuid.New()

	t.Run("creates pending donation", func(t *testing.T) {
		d := newPending(t, 500, &projectID)

		assert.Equal(t, DonationStatusPending, d.Status)
		assert.True(t, d.IsProjectLinked())
		assert.False(t, d.Contributes())
		assert.Equal(t, 1, d.Version)
		assert.Nil(t, d.ApprovedAt)
	})

	t.Run("nil uuid project is unlinked", func(t *testing.T) {
		nilID := uuid.Nil
		d, err := NewDonation(decimal.NewFromInt(1), DonationTypeGeneral, &nilID, "")
		require.NoError(t, err)
		assert.False(t, d.IsProjectLinked())
	})

	tests := []struct {
		name      string
		amount    decimal.Decimal
		typ       DonationType
		projectID *uuid.UUID
		donor     string
		code      string
	}{
		{"zero amount", decimal.Zero, DonationTypeGeneral, nil, "", "INVALID_AMOUNT"},
		{"negative amount", decimal.NewFromInt(-5), DonationTypeGeneral, nil, "", "INVALID_AMOUNT"},
		{"unknown type", decimal.NewFromInt(5), DonationType("GIFT_CARD"), nil, "", "INVALID_DONATION_TYPE"},
		{"project type without project", decimal.NewFromInt(5), DonationTypeSpecificProject, nil, "", "INVALID_PROJECT"},
		{"donor name too long", decimal.NewFromInt(5), DonationTypeGeneral, nil, strings.Repeat("a", 201), "INVALID_DONOR_NAME"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDonation(tt.amount, tt.typ, tt.projectID, tt.donor)
			de, ok := shared.IsDomainError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, de.Code)
		})
	}
}

func TestDonation_Approve(t *testing.T) {
	approver := uuid.New()

	t.Run("pending to approved", func(t *testing.T) {
		d := newPending(t, 300, nil)
		before := time.Now().UTC()

		require.NoError(t, d.Approve(approver, "wire-778"))

		assert.Equal(t, DonationStatusApproved, d.Status)
		assert.True(t, d.Contributes())
		assert.Equal(t, approver, *d.ApprovedBy)
		assert.Equal(t, "wire-778", d.ProofReference)
		assert.False(t, d.ApprovedAt.Before(before))
		assert.Equal(t, 2, d.Version)

		events := d.GetDomainEvents()
		require.Len(t, events, 1)
		ev, ok := events[0].(*DonationApprovedEvent)
		require.True(t, ok)
		assert.Equal(t, d.ID, ev.DonationID)
		assert.Equal(t, *d.ApprovedAt, ev.ApprovedAt)
		assert.True(t, decimal.NewFromInt(300).Equal(ev.Amount))
	})

	t.Run("empty proof keeps existing reference", func(t *testing.T) {
		d := newPending(t, 300, nil)
		d.ProofReference = "uploaded-receipt.pdf"
		require.NoError(t, d.Approve(approver, ""))
		assert.Equal(t, "uploaded-receipt.pdf", d.ProofReference)
	})

	t.Run("requires approver", func(t *testing.T) {
		d := newPending(t, 300, nil)
		err := d.Approve(uuid.Nil, "")
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
		assert.Equal(t, DonationStatusPending, d.Status)
	})

	t.Run("terminal states cannot be approved", func(t *testing.T) {
		approved := newPending(t, 1, nil)
		require.NoError(t, approved.Approve(approver, ""))
		rejected := newPending(t, 1, nil)
		require.NoError(t, rejected.Reject(approver))

		for _, d := range []*Donation{approved, rejected} {
			version := d.Version
			err := d.Approve(approver, "")
			assert.True(t, errors.Is(err, shared.ErrInvalidTransition))
			assert.Equal(t, version, d.Version)
		}
	})
}

func TestDonation_Reject(t *testing.T) {
	approver := uuid.New()

	d := newPending(t, 40, nil)
	require.NoError(t, d.Reject(approver))

	assert.Equal(t, DonationStatusRejected, d.Status)
	assert.False(t, d.Contributes())
	assert.Equal(t, approver, *d.RejectedBy)
	assert.NotNil(t, d.RejectedAt)
	assert.Nil(t, d.ApprovedAt)
	require.Len(t, d.GetDomainEvents(), 1)
	assert.Equal(t, EventTypeDonationRejected, d.GetDomainEvents()[0].EventType())

	err := d.Reject(approver)
	assert.True(t, errors.Is(err, shared.ErrInvalidTransition))

	fresh := newPending(t, 40, nil)
	assert.True(t, errors.Is(fresh.Reject(uuid.Nil), shared.ErrInvalidInput))
}

func TestDonation_ApprovalYear(t *testing.T) {
	d := newPending(t, 10, nil)
	_, ok := d.ApprovalYear(time.UTC)
	assert.False(t, ok)

	// 2024-12-31 20:00 UTC is already 2025 in Tokyo
	at := time.Date(2024, 12, 31, 20, 0, 0, 0, time.UTC)
	d.ApprovedAt = &at

	year, ok := d.ApprovalYear(nil)
	assert.True(t, ok)
	assert.Equal(t, 2024, year)

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	year, _ = d.ApprovalYear(tokyo)
	assert.Equal(t, 2025, year)
}

func TestDonationStatus(t *testing.T) {
	assert.True(t, DonationStatusPending.IsValid())
	assert.False(t, DonationStatus("CANCELLED").IsValid())
	assert.False(t, DonationStatusPending.IsTerminal())
	assert.True(t, DonationStatusApproved.IsTerminal())
	assert.True(t, DonationStatusRejected.IsTerminal())
	assert.False(t, DonationStatusRejected.CanApprove())
	assert.False(t, DonationStatusApproved.CanReject())
}
