package ledger

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/charity/backend/internal/domain/donation"
	"github.com/charity/backend/internal/infrastructure/cache"
	"github.com/charity/backend/internal/infrastructure/event"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func reachedEvent(t *testing.T) (*donation.DonationProject, *donation.ProjectGoalReachedEvent) {
	t.Helper()
	p := projectWithTarget(t, 1000)
	p.ApplyReconciliation(decimal.NewFromInt(1000))
	events := p.GetDomainEvents()
	require.Len(t, events, 1)
	reached, ok := events[0].(*donation.ProjectGoalReachedEvent)
	require.True(t, ok)
	return p, reached
}

func TestGoalReachedNotifier_Handle(t *testing.T) {
	_, reached := reachedEvent(t)
	notifier := new(MockNotifier)
	notifier.On("NotifyGoalReached", mock.Anything, reached).Return(nil).Once()

	h := NewGoalReachedNotifier(notifier, zap.NewNop())
	assert.Equal(t, []string{donation.EventTypeProjectGoalReached}, h.EventTypes())
	require.NoError(t, h.Handle(context.Background(), reached))
	notifier.AssertExpectations(t)
}

func TestGoalReachedNotifier_WrapsNotifierError(t *testing.T) {
	_, reached := reachedEvent(t)
	boom := errors.New("smtp unavailable")
	notifier := new(MockNotifier)
	notifier.On("NotifyGoalReached", mock.Anything, reached).Return(boom)

	err := NewGoalReachedNotifier(notifier, zap.NewNop()).Handle(context.Background(), reached)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), reached.ProjectID.String())
}

func TestGoalReachedNotifier_IgnoresOtherEvents(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	notifier := new(MockNotifier)
	d := pendingDonation(t, 50, nil)
	require.NoError(t, d.Approve(approverID, ""))

	err := NewGoalReachedNotifier(notifier, zap.New(core)).Handle(context.Background(), d.GetDomainEvents()[0])
	require.NoError(t, err)
	notifier.AssertNotCalled(t, "NotifyGoalReached", mock.Anything, mock.Anything)
	assert.Equal(t, 1, logs.FilterMessage("Unexpected event type for goal-reached notifier").Len())
}

func TestGoalReachedKey(t *testing.T) {
	p, reached := reachedEvent(t)
	assert.Equal(t, "goal-reached:"+p.ID.String()+":"+
		strconv.FormatInt(reached.CompletedAt.UnixNano(), 10), GoalReachedKey(reached))

	// a redelivered copy of the same crossing has a new event id but the same key
	copied := donation.NewProjectGoalReachedEvent(p)
	assert.NotEqual(t, reached.EventID(), copied.EventID())
	assert.Equal(t, GoalReachedKey(reached), GoalReachedKey(copied))

	d := pendingDonation(t, 50, nil)
	require.NoError(t, d.Approve(approverID, ""))
	other := d.GetDomainEvents()[0]
	assert.Equal(t, "event:"+other.EventID().String(), GoalReachedKey(other))
}

func TestGoalReachedNotifier_DeduplicatesCrossings(t *testing.T) {
	p, reached := reachedEvent(t)
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	notifier := new(MockNotifier)
	notifier.On("NotifyGoalReached", mock.Anything, mock.Anything).Return(nil)

	h := event.NewIdempotentHandler(
		NewGoalReachedNotifier(notifier, zap.NewNop()),
		store,
		zap.NewNop(),
		event.WithKeyFunc(GoalReachedKey),
		event.WithTTL(time.Hour),
	)

	ctx := context.Background()
	require.NoError(t, h.Handle(ctx, reached))
	require.NoError(t, h.Handle(ctx, donation.NewProjectGoalReachedEvent(p)))
	notifier.AssertNumberOfCalls(t, "NotifyGoalReached", 1)

	// reopen and complete again: a new crossing notifies again
	p.ClearDomainEvents()
	p.ApplyReconciliation(decimal.NewFromInt(500))
	time.Sleep(time.Millisecond)
	p.ApplyReconciliation(decimal.NewFromInt(1500))
	events := p.GetDomainEvents()
	require.Len(t, events, 2)
	require.NoError(t, h.Handle(ctx, events[1]))
	notifier.AssertNumberOfCalls(t, "NotifyGoalReached", 2)

	stats := h.Stats()
	assert.Equal(t, int64(2), stats.EventsProcessed)
	assert.Equal(t, int64(1), stats.EventsDuplicate)
}
