// Package ledger implements the donation state machine and the reconciliation
// of project and annual-goal totals against the donation ledger.
package ledger

import (
	"context"
	"time"

	"github.com/charity/backend/internal/domain/shared"
	"github.com/charity/backend/internal/infrastructure/logger"
	"github.com/charity/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config holds the ledger policy settings
type Config struct {
	// DefaultAnnualTarget is the target of lazily created annual goals
	DefaultAnnualTarget decimal.Decimal
	// Location defines calendar-year boundaries
	Location *time.Location
	// RetryDelay is the pause before the single reconciliation retry
	RetryDelay time.Duration
	// SweepAllProjects widens the sweep from open targeted projects to every project
	SweepAllProjects bool
	// SweepLockTTL bounds how long a sweep holds the sweep lock
	SweepLockTTL time.Duration
}

// LedgerService is the entry point for donation transitions, reconciliation and sweeps
type LedgerService struct {
	scope     LedgerScope
	cfg       Config
	publisher shared.EventPublisher
	metrics   *telemetry.LedgerMetrics
	sweepLock shared.Lock
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures optional LedgerService collaborators
type Option func(*LedgerService)

// WithEventPublisher publishes domain events after each commit
func WithEventPublisher(p shared.EventPublisher) Option {
	return func(s *LedgerService) { s.publisher = p }
}

// WithMetrics records ledger metrics
func WithMetrics(m *telemetry.LedgerMetrics) Option {
	return func(s *LedgerService) { s.metrics = m }
}

// WithSweepLock makes Sweep fail fast with ErrSweepInProgress while another holder runs
func WithSweepLock(l shared.Lock) Option {
	return func(s *LedgerService) { s.sweepLock = l }
}

// WithClock overrides the wall clock used for the current year
func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(scope LedgerScope, cfg Config, logger *zap.Logger, opts ...Option) *LedgerService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.SweepLockTTL <= 0 {
		cfg.SweepLockTTL = 30 * time.Minute
	}
	s := &LedgerService{
		scope:  scope,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// log returns the service logger enriched with the request and trace ids in ctx
func (s *LedgerService) log(ctx context.Context) *logger.ContextLogger {
	return logger.WithLogger(ctx, s.logger)
}

// publishEvents hands pending aggregate events to the publisher. Delivery
// errors are logged by the bus.
func (s *LedgerService) publishEvents(ctx context.Context, aggregate shared.AggregateRoot) {
	events := aggregate.GetDomainEvents()
	aggregate.ClearDomainEvents()
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish ledger events",
			zap.String("aggregate_id", aggregate.GetID().String()),
			zap.Error(err),
		)
	}
}
