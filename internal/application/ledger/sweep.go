package ledger

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"time"

	"github.com/charity/backend/internal/domain/shared"
	"github.com/charity/backend/internal/infrastructure/logger"
	"github.com/charity/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Sweep triggers used as metric labels
const (
	TriggerOnDemand  = "on_demand"
	TriggerScheduled = "scheduled"
)

type sweepTriggerKey struct{}

// WithSweepTrigger labels sweeps run with ctx
func WithSweepTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, sweepTriggerKey{}, trigger)
}

func sweepTrigger(ctx context.Context) string {
	if t, ok := ctx.Value(sweepTriggerKey{}).(string); ok && t != "" {
		return t
	}
	return TriggerOnDemand
}

// SweepFailure is one entity the sweep could not reconcile.
// ID is a project id or a year.
type SweepFailure struct {
	Entity string `json:"entity"`
	ID     string `json:"id"`
	Error  string `json:"error"`
}

// SweepResult summarizes a drift-repair sweep
type SweepResult struct {
	ReconciledProjects int            `json:"reconciled_projects"`
	ReconciledGoals    int            `json:"reconciled_goals"`
	Corrected          int            `json:"corrected"`
	Failures           []SweepFailure `json:"failures"`
}

func (r *SweepResult) fail(entity, id string, err error) {
	r.Failures = append(r.Failures, SweepFailure{Entity: entity, ID: id, Error: err.Error()})
}

// Sweep reconciles every open project with a target and every annual goal.
// Entities are reconciled one by one in separate transactions; a failure is
// recorded and the sweep moves on. When ctx is cancelled the sweep stops
// between entities and returns what it has done together with ctx.Err().
func (s *LedgerService) Sweep(ctx context.Context) (*SweepResult, error) {
	trigger := sweepTrigger(ctx)
	ctx = logger.WithSweep(ctx, uuid.NewString(), trigger)
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "sweep",
		telemetry.WithAttribute("trigger", trigger),
	)
	defer span.End()

	if s.sweepLock != nil {
		token, acquired, err := s.sweepLock.TryAcquire(ctx, s.cfg.SweepLockTTL)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, shared.WrapDomainError(shared.CodeReconciliationFailure, "Failed to acquire sweep lock", err)
		}
		if !acquired {
			return nil, shared.ErrSweepInProgress
		}
		defer func() {
			// ctx may already be cancelled here
			if err := s.sweepLock.Release(context.WithoutCancel(ctx), token); err != nil {
				s.log(ctx).Warn("Failed to release sweep lock", zap.Error(err))
			}
		}()
	}

	start := time.Now()
	s.log(ctx).Info("Drift-repair sweep started", zap.String("trigger", trigger))

	result := &SweepResult{Failures: []SweepFailure{}}
	err := s.sweep(ctx, result)

	outcome := telemetry.OutcomeInSync
	switch {
	case err != nil || len(result.Failures) > 0:
		outcome = telemetry.OutcomeFailed
	case result.Corrected > 0:
		outcome = telemetry.OutcomeCorrected
	}
	s.metrics.RecordSweep(ctx, trigger, outcome, time.Since(start))

	telemetry.SetAttributes(span,
		"reconciled_projects", result.ReconciledProjects,
		"reconciled_goals", result.ReconciledGoals,
		"corrected", result.Corrected,
		"failures", len(result.Failures),
	)

	fields := []zap.Field{
		zap.Int("reconciled_projects", result.ReconciledProjects),
		zap.Int("reconciled_goals", result.ReconciledGoals),
		zap.Int("corrected", result.Corrected),
		zap.Int("failures", len(result.Failures)),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		telemetry.RecordError(span, err)
		s.log(ctx).Warn("Drift-repair sweep interrupted", append(fields, zap.Error(err))...)
		return result, err
	}
	s.log(ctx).Info("Drift-repair sweep finished", fields...)
	return result, nil
}

func (s *LedgerService) sweep(ctx context.Context, result *SweepResult) error {
	projectIDs, err := s.sweepProjectIDs(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		s.logSweepFailure(ctx, telemetry.EntityProject, "*", err)
		result.fail(telemetry.EntityProject, "*", err)
	}

	for _, id := range projectIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		r, err := s.reconcileProject(ctx, id)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			s.logSweepFailure(ctx, telemetry.EntityProject, id.String(), err)
			result.fail(telemetry.EntityProject, id.String(), err)
			continue
		}
		result.ReconciledProjects++
		if r.outcome.Drifted() {
			result.Corrected++
		}
	}

	years, err := s.sweepYears(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		s.logSweepFailure(ctx, telemetry.EntityAnnualGoal, "*", err)
		result.fail(telemetry.EntityAnnualGoal, "*", err)
	}

	for _, year := range years {
		if err := ctx.Err(); err != nil {
			return err
		}
		r, err := s.reconcileAnnualGoal(ctx, year)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			s.logSweepFailure(ctx, telemetry.EntityAnnualGoal, yearID(year), err)
			result.fail(telemetry.EntityAnnualGoal, yearID(year), err)
			continue
		}
		result.ReconciledGoals++
		if r.drifted {
			result.Corrected++
		}
	}
	return nil
}

func (s *LedgerService) sweepProjectIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.scope.Execute(ctx, func(repos LedgerRepositories) error {
		var err error
		if s.cfg.SweepAllProjects {
			ids, err = repos.Projects().FindAllIDs(ctx)
		} else {
			ids, err = repos.Projects().FindReconciliationCandidateIDs(ctx)
		}
		return err
	})
	return ids, err
}

// sweepYears returns every year with a goal row, every year spanned by approved
// donations and the current year, ascending and without duplicates.
func (s *LedgerService) sweepYears(ctx context.Context) ([]int, error) {
	years := []int{s.now().In(s.cfg.Location).Year()}
	err := s.scope.Execute(ctx, func(repos LedgerRepositories) error {
		existing, err := repos.AnnualGoals().ListYears(ctx)
		if err != nil {
			return err
		}
		years = append(years, existing...)

		earliest, latest, err := repos.Donations().ApprovedAtRange(ctx)
		if err != nil {
			return err
		}
		if earliest != nil && latest != nil {
			for y := earliest.In(s.cfg.Location).Year(); y <= latest.In(s.cfg.Location).Year(); y++ {
				years = append(years, y)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(years)
	return slices.Compact(years), nil
}

func (s *LedgerService) logSweepFailure(ctx context.Context, entity, id string, err error) {
	telemetry.AddEvent(trace.SpanFromContext(ctx), "sweep.entity_failed",
		"entity", entity,
		"id", id,
		"error", err.Error(),
	)
	s.log(ctx).Error("Sweep failed to reconcile entity",
		zap.String("entity", entity),
		zap.String("id", id),
		zap.Error(err),
	)
}

func yearID(year int) string {
	return strconv.Itoa(year)
}
