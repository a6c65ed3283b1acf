package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charity/backend/internal/application/ledger"
	"github.com/charity/backend/internal/domain/shared"
	"github.com/charity/backend/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSweeper struct {
	calls       atomic.Int32
	hadDeadline atomic.Bool
	result      *ledger.SweepResult
	err         error
	block       bool
}

func newFakeSweeper() *fakeSweeper {
	return &fakeSweeper{result: &ledger.SweepResult{Failures: []ledger.SweepFailure{}}}
}

func (f *fakeSweeper) Sweep(ctx context.Context) (*ledger.SweepResult, error) {
	f.calls.Add(1)
	_, ok := ctx.Deadline()
	f.hadDeadline.Store(ok)
	if f.block {
		<-ctx.Done()
		return f.result, ctx.Err()
	}
	return f.result, f.err
}

func TestDefaultSweepSchedulerConfig(t *testing.T) {
	cfg := DefaultSweepSchedulerConfig()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 3, cfg.Hour)
	assert.Equal(t, 0, cfg.Minute)
	assert.Equal(t, 30*time.Minute, cfg.Timeout)
	assert.Equal(t, time.UTC, cfg.Location)
}

func TestSweepScheduler_ShouldRun(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	cfg := DefaultSweepSchedulerConfig()
	cfg.Hour = 2
	cfg.Minute = 30
	cfg.Location = tokyo
	s := NewSweepScheduler(cfg, newFakeSweeper(), zap.NewNop())

	// 17:30 UTC is 02:30 in Tokyo
	assert.True(t, s.shouldRun(time.Date(2025, 5, 1, 17, 30, 10, 0, time.UTC)))
	assert.False(t, s.shouldRun(time.Date(2025, 5, 1, 2, 30, 0, 0, time.UTC)))
	assert.False(t, s.shouldRun(time.Date(2025, 5, 1, 17, 31, 0, 0, time.UTC)))
}

func TestSweepScheduler_CalculateNextRunTime(t *testing.T) {
	cfg := DefaultSweepSchedulerConfig()
	s := NewSweepScheduler(cfg, newFakeSweeper(), zap.NewNop())

	s.now = func() time.Time { return time.Date(2025, 5, 1, 1, 0, 0, 0, time.UTC) }
	s.calculateNextRunTime()
	assert.Equal(t, time.Date(2025, 5, 1, 3, 0, 0, 0, time.UTC), *s.GetNextRunAt())

	s.now = func() time.Time { return time.Date(2025, 5, 1, 3, 0, 0, 0, time.UTC) }
	s.calculateNextRunTime()
	assert.Equal(t, time.Date(2025, 5, 2, 3, 0, 0, 0, time.UTC), *s.GetNextRunAt())

	s.now = func() time.Time { return time.Date(2025, 12, 31, 22, 0, 0, 0, time.UTC) }
	s.calculateNextRunTime()
	assert.Equal(t, time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC), *s.GetNextRunAt())
}

func TestSweepScheduler_StartStop(t *testing.T) {
	s := NewSweepScheduler(DefaultSweepSchedulerConfig(), newFakeSweeper(), zap.NewNop())
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Start(ctx), "second start is a no-op")
	assert.True(t, s.GetStatus()["is_running"].(bool))
	assert.NotNil(t, s.GetNextRunAt())

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
	require.NoError(t, s.Stop(stopCtx))
	assert.False(t, s.GetStatus()["is_running"].(bool))
}

func TestSweepScheduler_DisabledOrInvalid(t *testing.T) {
	cfg := DefaultSweepSchedulerConfig()
	cfg.Enabled = false
	s := NewSweepScheduler(cfg, newFakeSweeper(), zap.NewNop())
	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.TriggerManualRun(context.Background()), ErrSchedulerNotRunning)

	cfg = DefaultSweepSchedulerConfig()
	cfg.Hour = 24
	assert.ErrorIs(t, NewSweepScheduler(cfg, newFakeSweeper(), zap.NewNop()).Start(context.Background()), ErrInvalidConfig)
}

func TestSweepScheduler_RunsAtScheduledMinute(t *testing.T) {
	sweeper := newFakeSweeper()
	s := NewSweepScheduler(DefaultSweepSchedulerConfig(), sweeper, zap.NewNop())
	s.tickInterval = 5 * time.Millisecond
	s.now = func() time.Time { return time.Date(2025, 5, 1, 3, 0, 0, 0, time.UTC) }

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	testutil.AssertEventually(t, func() bool { return sweeper.calls.Load() > 0 }, time.Second, 5*time.Millisecond)
	testutil.AssertEventually(t, func() bool { return s.GetLastRun() != nil }, time.Second, 5*time.Millisecond)
	last := s.GetLastRun()
	assert.Equal(t, ledger.TriggerScheduled, last.Trigger)
	assert.True(t, sweeper.hadDeadline.Load())
}

func TestSweepScheduler_TriggerManualRun(t *testing.T) {
	sweeper := newFakeSweeper()
	sweeper.result.ReconciledProjects = 4
	s := NewSweepScheduler(DefaultSweepSchedulerConfig(), sweeper, zap.NewNop())
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	// a cancelled request context does not cancel the sweep
	reqCtx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.TriggerManualRun(reqCtx))
	cancel()

	testutil.AssertEventually(t, func() bool { return s.GetLastRun() != nil }, time.Second, 5*time.Millisecond)
	last := s.GetLastRun()
	assert.Equal(t, ledger.TriggerOnDemand, last.Trigger)
	assert.Empty(t, last.Error)
	assert.Equal(t, 4, last.Result.ReconciledProjects)
}

func TestSweepScheduler_StopCancelsManualRun(t *testing.T) {
	sweeper := newFakeSweeper()
	sweeper.block = true
	cfg := DefaultSweepSchedulerConfig()
	cfg.Timeout = time.Hour
	s := NewSweepScheduler(cfg, sweeper, zap.NewNop())
	require.NoError(t, s.Start(context.Background()))

	reqCtx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.TriggerManualRun(reqCtx))
	testutil.AssertEventually(t, func() bool { return sweeper.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	// the request going away leaves the sweep running
	cancel()
	time.Sleep(20 * time.Millisecond)
	assert.Nil(t, s.GetLastRun())

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	require.NoError(t, s.Stop(stopCtx))

	last := s.GetLastRun()
	require.NotNil(t, last)
	assert.Equal(t, ledger.TriggerOnDemand, last.Trigger)
	assert.Contains(t, last.Error, context.Canceled.Error())
}

func TestSweepScheduler_TriggerManualRunAfterStop(t *testing.T) {
	s := NewSweepScheduler(DefaultSweepSchedulerConfig(), newFakeSweeper(), zap.NewNop())
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))

	assert.ErrorIs(t, s.TriggerManualRun(context.Background()), ErrSchedulerNotRunning)
}

func TestSweepScheduler_SkipsWhenSweepInProgress(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sweeper := newFakeSweeper()
	sweeper.result = nil
	sweeper.err = shared.ErrSweepInProgress
	s := NewSweepScheduler(DefaultSweepSchedulerConfig(), sweeper, zap.New(core))

	status := s.run(context.Background(), ledger.TriggerScheduled)
	assert.True(t, status.Skipped)
	assert.Empty(t, status.Error)
	assert.Equal(t, 1, logs.FilterMessage("Sweep skipped, another instance is running").Len())
	assert.Equal(t, 0, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestSweepScheduler_TimeoutBoundsRun(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sweeper := newFakeSweeper()
	sweeper.block = true
	cfg := DefaultSweepSchedulerConfig()
	cfg.Timeout = 20 * time.Millisecond
	s := NewSweepScheduler(cfg, sweeper, zap.New(core))

	status := s.run(context.Background(), ledger.TriggerScheduled)
	assert.Contains(t, status.Error, context.DeadlineExceeded.Error())
	assert.Equal(t, 1, logs.FilterMessage("Scheduled sweep failed").Len())
}

func TestSweepScheduler_LogsPartialFailures(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sweeper := newFakeSweeper()
	sweeper.result.Failures = []ledger.SweepFailure{{Entity: "project", ID: "x", Error: "boom"}}
	s := NewSweepScheduler(DefaultSweepSchedulerConfig(), sweeper, zap.New(core))

	status := s.run(context.Background(), ledger.TriggerScheduled)
	assert.Empty(t, status.Error)
	assert.Len(t, status.Result.Failures, 1)
	assert.Equal(t, 1, logs.FilterMessage("Scheduled sweep finished with failures").Len())
}
