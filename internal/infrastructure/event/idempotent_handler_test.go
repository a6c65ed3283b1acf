package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/charity/backend/internal/domain/shared"
	"github.com/charity/backend/internal/infrastructure/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockEventHandler struct {
	mock.Mock
}

func (m *MockEventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockEventHandler) EventTypes() []string {
	return m.Called().Get(0).([]string)
}

type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}

func TestIdempotentHandler_HandlesOnce(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	inner := new(MockEventHandler)
	event := newTestEvent("ProjectGoalReached")
	inner.On("Handle", mock.Anything, event).Return(nil).Once()

	h := NewIdempotentHandler(inner, store, zap.NewNop())
	for range 3 {
		require.NoError(t, h.Handle(context.Background(), event))
	}

	inner.AssertExpectations(t)
	assert.Equal(t, IdempotencyStats{EventsProcessed: 1, EventsDuplicate: 2}, h.Stats())
}

func TestIdempotentHandler_CustomKey(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	inner := new(MockEventHandler)
	inner.On("Handle", mock.Anything, mock.Anything).Return(nil).Once()

	h := NewIdempotentHandler(inner, store, zap.NewNop(),
		WithKeyFunc(func(e shared.DomainEvent) string { return "goal:" + e.EventType() }),
	)

	require.NoError(t, h.Handle(context.Background(), newTestEvent("ProjectGoalReached")))
	require.NoError(t, h.Handle(context.Background(), newTestEvent("ProjectGoalReached")))

	inner.AssertExpectations(t)
	assert.Equal(t, int64(1), h.Stats().EventsDuplicate)
}

func TestIdempotentHandler_StoreErrorStillHandles(t *testing.T) {
	store := new(MockIdempotencyStore)
	store.On("MarkProcessed", mock.Anything, mock.Anything, time.Hour).Return(false, errors.New("redis down"))

	inner := new(MockEventHandler)
	event := newTestEvent("ProjectGoalReached")
	inner.On("Handle", mock.Anything, event).Return(nil)

	h := NewIdempotentHandler(inner, store, zap.NewNop(), WithTTL(time.Hour))
	require.NoError(t, h.Handle(context.Background(), event))

	inner.AssertExpectations(t)
	store.AssertExpectations(t)
	assert.Equal(t, int64(1), h.Stats().EventsProcessed)
}

func TestIdempotentHandler_HandlerError(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	inner := new(MockEventHandler)
	event := newTestEvent("ProjectGoalReached")
	inner.On("Handle", mock.Anything, event).Return(errors.New("mailer down")).Once()

	h := NewIdempotentHandler(inner, store, zap.NewNop())

	require.Error(t, h.Handle(context.Background(), event))
	require.NoError(t, h.Handle(context.Background(), event))

	inner.AssertExpectations(t)
	assert.Equal(t, IdempotencyStats{EventsDuplicate: 1, EventsFailed: 1}, h.Stats())
}

func TestIdempotentHandler_EventTypes(t *testing.T) {
	inner := new(MockEventHandler)
	inner.On("EventTypes").Return([]string{"ProjectGoalReached"})

	h := NewIdempotentHandler(inner, new(MockIdempotencyStore), zap.NewNop())
	assert.Equal(t, []string{"ProjectGoalReached"}, h.EventTypes())
}
