package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charity/backend/internal/application/ledger"
	"github.com/charity/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// cronTickerInterval is the interval at which the scheduler checks the clock
const cronTickerInterval = 1 * time.Minute

// Sweeper runs one drift-repair sweep
type Sweeper interface {
	Sweep(ctx context.Context) (*ledger.SweepResult, error)
}

// SweepSchedulerConfig holds configuration for the daily sweep
type SweepSchedulerConfig struct {
	// Enabled indicates if the daily sweep runs at all
	Enabled bool
	// Hour is the hour (0-23) to run the sweep, in Location
	Hour int
	// Minute is the minute (0-59) to run the sweep
	Minute int
	// Timeout bounds a single sweep run
	Timeout time.Duration
	// Location is the zone Hour and Minute are read in
	Location *time.Location
}

// DefaultSweepSchedulerConfig returns a daily 3:00 UTC sweep
func DefaultSweepSchedulerConfig() SweepSchedulerConfig {
	return SweepSchedulerConfig{
		Enabled:  true,
		Hour:     3,
		Timeout:  30 * time.Minute,
		Location: time.UTC,
	}
}

// SweepRunStatus is the outcome of the last sweep started by the scheduler
type SweepRunStatus struct {
	Trigger    string              `json:"trigger"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Skipped    bool                `json:"skipped"`
	Result     *ledger.SweepResult `json:"result,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// SweepScheduler runs the drift-repair sweep once a day
type SweepScheduler struct {
	config  SweepSchedulerConfig
	sweeper Sweeper
	logger  *zap.Logger

	tickInterval time.Duration
	now          func() time.Time

	loopCtx   context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	// Last execution tracking
	lastRun   *SweepRunStatus
	nextRunAt *time.Time
}

// NewSweepScheduler creates a new daily sweep scheduler
func NewSweepScheduler(config SweepSchedulerConfig, sweeper Sweeper, logger *zap.Logger) *SweepScheduler {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Minute
	}
	return &SweepScheduler{
		config:       config,
		sweeper:      sweeper,
		logger:       logger,
		tickInterval: cronTickerInterval,
		now:          time.Now,
	}
}

// Start starts the scheduler loop. It is a no-op when disabled or already running.
func (s *SweepScheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Sweep scheduler disabled")
		return nil
	}
	if s.config.Hour < 0 || s.config.Hour > 23 || s.config.Minute < 0 || s.config.Minute > 59 {
		return ErrInvalidConfig
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	s.loopCtx = ctx
	s.cancel = cancel
	s.mu.Unlock()

	s.calculateNextRunTime()

	s.wg.Add(1)
	go s.cronLoop(ctx)

	s.logger.Info("Sweep scheduler started",
		zap.Int("hour", s.config.Hour),
		zap.Int("minute", s.config.Minute),
		zap.String("location", s.config.Location.String()),
		zap.Timep("next_run_at", s.GetNextRunAt()),
	)
	return nil
}

// Stop cancels any running sweep and waits for the loop to exit
func (s *SweepScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sweep scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sweep scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *SweepScheduler) cronLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.shouldRun(s.now()) {
				s.run(ctx, ledger.TriggerScheduled)
				s.calculateNextRunTime()
			}
		}
	}
}

// shouldRun reports whether now falls in the scheduled minute
func (s *SweepScheduler) shouldRun(now time.Time) bool {
	local := now.In(s.config.Location)
	return local.Hour() == s.config.Hour && local.Minute() == s.config.Minute
}

func (s *SweepScheduler) calculateNextRunTime() {
	now := s.now().In(s.config.Location)
	next := time.Date(now.Year(), now.Month(), now.Day(), s.config.Hour, s.config.Minute, 0, 0, s.config.Location)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}

	s.mu.Lock()
	s.nextRunAt = &next
	s.mu.Unlock()
}

// run executes one sweep bounded by the configured timeout. A sweep already
// running elsewhere is skipped, not treated as a failure.
func (s *SweepScheduler) run(ctx context.Context, trigger string) *SweepRunStatus {
	status := &SweepRunStatus{Trigger: trigger, StartedAt: s.now()}

	ctx, cancel := context.WithTimeout(ledger.WithSweepTrigger(ctx, trigger), s.config.Timeout)
	defer cancel()

	result, err := s.sweeper.Sweep(ctx)
	status.FinishedAt = s.now()
	status.Result = result

	switch {
	case errors.Is(err, shared.ErrSweepInProgress):
		status.Skipped = true
		s.logger.Info("Sweep skipped, another instance is running", zap.String("trigger", trigger))
	case err != nil:
		status.Error = err.Error()
		s.logger.Error("Scheduled sweep failed", zap.String("trigger", trigger), zap.Error(err))
	case len(result.Failures) > 0:
		s.logger.Warn("Scheduled sweep finished with failures",
			zap.String("trigger", trigger),
			zap.Int("failures", len(result.Failures)),
		)
	}

	s.mu.Lock()
	s.lastRun = status
	s.mu.Unlock()
	return status
}

// TriggerManualRun starts a sweep in the background and returns immediately.
// The sweep keeps the values of ctx (trace, request id) but not its
// cancellation: it outlives the request and is cancelled by Stop instead.
func (s *SweepScheduler) TriggerManualRun(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	loopCtx := s.loopCtx
	s.wg.Add(1)
	s.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stopOnShutdown := context.AfterFunc(loopCtx, cancel)

	go func() {
		defer s.wg.Done()
		defer cancel()
		defer stopOnShutdown()
		s.run(runCtx, ledger.TriggerOnDemand)
	}()
	return nil
}

// GetStatus returns the current status of the scheduler
func (s *SweepScheduler) GetStatus() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]any{
		"enabled":     s.config.Enabled,
		"is_running":  s.isRunning,
		"hour":        s.config.Hour,
		"minute":      s.config.Minute,
		"location":    s.config.Location.String(),
		"timeout":     s.config.Timeout.String(),
		"last_run":    s.lastRun,
		"next_run_at": s.nextRunAt,
	}
}

// GetNextRunAt returns when the next scheduled run will occur
func (s *SweepScheduler) GetNextRunAt() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRunAt
}

// GetLastRun returns the outcome of the most recent run
func (s *SweepScheduler) GetLastRun() *SweepRunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}
