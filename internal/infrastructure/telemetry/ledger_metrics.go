package telemetry

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
)

// Reconciliation outcomes used as the outcome attribute
const (
	OutcomeInSync    = "in_sync"
	OutcomeUpdated   = "updated"
	OutcomeCorrected = "corrected"
	OutcomeFailed    = "failed"
)

// Reconciled entity kinds used as the entity attribute
const (
	EntityProject    = "project"
	EntityAnnualGoal = "annual_goal"
)

// LedgerMetrics records donation transitions, reconciliations and sweeps.
type LedgerMetrics struct {
	transitionsTotal     *Counter
	reconciliationsTotal *Counter
	reconcileDuration    *Histogram
	goalsReachedTotal    *Counter
	sweepRunsTotal       *Counter
	sweepDuration        *Histogram
	annualProgress       *FloatGauge
}

// NewLedgerMetrics creates the ledger instruments on meter.
func NewLedgerMetrics(meter metric.Meter) (*LedgerMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	lm := &LedgerMetrics{}
	var err error

	if lm.transitionsTotal, err = NewCounter(meter,
		"ledger_donation_transitions_total",
		"Donation status transitions by resulting status",
		"{transitions}",
	); err != nil {
		return nil, err
	}

	if lm.reconciliationsTotal, err = NewCounter(meter,
		"ledger_reconciliations_total",
		"Reconciliations by entity and outcome",
		"{reconciliations}",
	); err != nil {
		return nil, err
	}

	if lm.reconcileDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "ledger_reconcile_duration_seconds",
		Description: "Duration of a single reconciliation",
		Unit:        "s",
		Boundaries:  ReconcileDurationBuckets,
	}); err != nil {
		return nil, err
	}

	if lm.goalsReachedTotal, err = NewCounter(meter,
		"ledger_project_goals_reached_total",
		"Projects crossing their target",
		"{projects}",
	); err != nil {
		return nil, err
	}

	if lm.sweepRunsTotal, err = NewCounter(meter,
		"ledger_sweep_runs_total",
		"Drift-repair sweeps by trigger and outcome",
		"{runs}",
	); err != nil {
		return nil, err
	}

	if lm.sweepDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "ledger_sweep_duration_seconds",
		Description: "Duration of a drift-repair sweep",
		Unit:        "s",
		Boundaries:  SweepDurationBuckets,
	}); err != nil {
		return nil, err
	}

	if lm.annualProgress, err = NewFloatGauge(meter,
		"ledger_annual_goal_progress_ratio",
		"Raised amount divided by target for an annual goal",
		"1",
	); err != nil {
		return nil, err
	}

	return lm, nil
}

// RecordTransition counts a donation moving to status.
func (lm *LedgerMetrics) RecordTransition(ctx context.Context, status string) {
	if lm == nil {
		return
	}
	lm.transitionsTotal.Inc(ctx, AttrStatus.String(status))
}

// RecordReconciliation counts a reconciliation and records its duration.
func (lm *LedgerMetrics) RecordReconciliation(ctx context.Context, entity, outcome string, d time.Duration) {
	if lm == nil {
		return
	}
	lm.reconciliationsTotal.Inc(ctx, AttrEntity.String(entity), AttrOutcome.String(outcome))
	lm.reconcileDuration.RecordDuration(ctx, d, AttrEntity.String(entity))
}

// RecordGoalReached counts a project completion crossing.
func (lm *LedgerMetrics) RecordGoalReached(ctx context.Context) {
	if lm == nil {
		return
	}
	lm.goalsReachedTotal.Inc(ctx)
}

// RecordSweep counts a sweep run and records its duration.
func (lm *LedgerMetrics) RecordSweep(ctx context.Context, trigger, outcome string, d time.Duration) {
	if lm == nil {
		return
	}
	lm.sweepRunsTotal.Inc(ctx, AttrTrigger.String(trigger), AttrOutcome.String(outcome))
	lm.sweepDuration.RecordDuration(ctx, d, AttrTrigger.String(trigger))
}

// RecordAnnualProgress records current/target for a year. Zero targets are skipped.
func (lm *LedgerMetrics) RecordAnnualProgress(ctx context.Context, year int, current, target decimal.Decimal) {
	if lm == nil || target.IsZero() {
		return
	}
	lm.annualProgress.Record(ctx, current.Div(target).InexactFloat64(), AttrYear.Int(year))
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewLedgerMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
