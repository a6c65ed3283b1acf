package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/charity/backend/internal/domain/donation"
	"github.com/charity/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockEventPublisher records published events
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{events: make([]shared.DomainEvent, 0)}
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *MockEventPublisher) GetEventsByType(eventType string) []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]shared.DomainEvent, 0)
	for _, e := range m.events {
		if e.EventType() == eventType {
			result = append(result, e)
		}
	}
	return result
}

// MockDonationRepository is a mock implementation of donation.DonationRepository
type MockDonationRepository struct {
	mock.Mock
}

func (m *MockDonationRepository) FindByID(ctx context.Context, id uuid.UUID) (*donation.Donation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*donation.Donation), args.Error(1)
}

func (m *MockDonationRepository) Save(ctx context.Context, d *donation.Donation) error {
	return m.Called(ctx, d).Error(0)
}

func (m *MockDonationRepository) SaveTransition(ctx context.Context, d *donation.Donation, from donation.DonationStatus) error {
	return m.Called(ctx, d, from).Error(0)
}

func (m *MockDonationRepository) SumApprovedByProject(ctx context.Context, projectID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockDonationRepository) SumApprovedBetween(ctx context.Context, start, end time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, start, end)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockDonationRepository) ApprovedAtRange(ctx context.Context) (*time.Time, *time.Time, error) {
	args := m.Called(ctx)
	var earliest, latest *time.Time
	if v := args.Get(0); v != nil {
		earliest = v.(*time.Time)
	}
	if v := args.Get(1); v != nil {
		latest = v.(*time.Time)
	}
	return earliest, latest, args.Error(2)
}

// MockDonationProjectRepository is a mock implementation of donation.DonationProjectRepository
type MockDonationProjectRepository struct {
	mock.Mock
}

func (m *MockDonationProjectRepository) FindByID(ctx context.Context, id uuid.UUID) (*donation.DonationProject, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*donation.DonationProject), args.Error(1)
}

func (m *MockDonationProjectRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*donation.DonationProject, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*donation.DonationProject), args.Error(1)
}

func (m *MockDonationProjectRepository) Save(ctx context.Context, p *donation.DonationProject) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockDonationProjectRepository) SaveAggregates(ctx context.Context, p *donation.DonationProject) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockDonationProjectRepository) FindReconciliationCandidateIDs(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockDonationProjectRepository) FindAllIDs(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

// MockAnnualGoalRepository is a mock implementation of donation.AnnualGoalRepository
type MockAnnualGoalRepository struct {
	mock.Mock
}

func (m *MockAnnualGoalRepository) FindByYear(ctx context.Context, year int) (*donation.AnnualGoal, error) {
	args := m.Called(ctx, year)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*donation.AnnualGoal), args.Error(1)
}

func (m *MockAnnualGoalRepository) FindByYearForUpdate(ctx context.Context, year int) (*donation.AnnualGoal, error) {
	args := m.Called(ctx, year)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*donation.AnnualGoal), args.Error(1)
}

func (m *MockAnnualGoalRepository) CreateIfAbsent(ctx context.Context, g *donation.AnnualGoal) error {
	return m.Called(ctx, g).Error(0)
}

func (m *MockAnnualGoalRepository) SaveAggregates(ctx context.Context, g *donation.AnnualGoal) error {
	return m.Called(ctx, g).Error(0)
}

func (m *MockAnnualGoalRepository) ListYears(ctx context.Context) ([]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

// MockLock is a mock implementation of shared.Lock
type MockLock struct {
	mock.Mock
}

func (m *MockLock) TryAcquire(ctx context.Context, ttl time.Duration) (string, bool, error) {
	args := m.Called(ctx, ttl)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockLock) Release(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

// MockNotifier is a mock implementation of Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyGoalReached(ctx context.Context, event *donation.ProjectGoalReachedEvent) error {
	return m.Called(ctx, event).Error(0)
}
