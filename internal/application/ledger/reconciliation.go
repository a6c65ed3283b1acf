package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/charity/backend/internal/domain/donation"
	"github.com/charity/backend/internal/domain/shared"
	"github.com/charity/backend/internal/infrastructure/logger"
	"github.com/charity/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type projectReconciliation struct {
	project *donation.DonationProject
	outcome donation.ReconciliationOutcome
}

type goalReconciliation struct {
	goal     *donation.AnnualGoal
	previous string
	drifted  bool
}

// ReconcileProject re-derives the project total from its approved donations
// and re-evaluates completion. Running it again without ledger changes writes nothing.
func (s *LedgerService) ReconcileProject(ctx context.Context, projectID uuid.UUID) (*donation.DonationProject, error) {
	r, err := s.reconcileProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return r.project, nil
}

func (s *LedgerService) reconcileProject(ctx context.Context, projectID uuid.UUID) (*projectReconciliation, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "reconcile_project",
		telemetry.WithAttribute(telemetry.SpanAttrProjectID, projectID),
	)
	defer span.End()
	start := time.Now()

	r, err := withRetry(ctx, s.logger, "project reconciliation", s.cfg.RetryDelay,
		func(ctx context.Context) (*projectReconciliation, error) {
			return s.reconcileProjectOnce(ctx, projectID)
		})
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordReconciliation(ctx, telemetry.EntityProject, telemetry.OutcomeFailed, time.Since(start))
		return nil, err
	}

	p, outcome := r.project, r.outcome
	telemetry.SetAttributes(span,
		telemetry.SpanAttrDrifted, outcome.Drifted(),
		telemetry.SpanAttrCompleted, p.IsCompleted,
	)

	resultLabel := telemetry.OutcomeInSync
	if outcome.Drifted() {
		resultLabel = s.logTotalChange(ctx, "Project",
			zap.String("project_id", p.ID.String()),
			zap.String("old_amount", outcome.PreviousAmount.String()),
			zap.String("new_amount", outcome.CurrentAmount.String()),
			zap.Bool("was_completed", outcome.WasCompleted),
			zap.Bool("is_completed", outcome.IsCompleted),
		)
	}
	s.metrics.RecordReconciliation(ctx, telemetry.EntityProject, resultLabel, time.Since(start))

	switch {
	case outcome.GoalReached():
		s.metrics.RecordGoalReached(ctx)
		s.log(ctx).Info("Project reached its target",
			zap.String("project_id", p.ID.String()),
			zap.String("current_amount", p.CurrentAmount.String()),
		)
	case outcome.GoalReopened():
		s.log(ctx).Info("Project fell below its target and was reopened",
			zap.String("project_id", p.ID.String()),
			zap.String("current_amount", p.CurrentAmount.String()),
		)
	}

	s.publishEvents(ctx, p)
	return r, nil
}

// logTotalChange logs a cached total that moved and returns the metric outcome.
// Inside a sweep the change is drift the sweep repaired; outside one it is the
// routine update that follows a transition.
func (s *LedgerService) logTotalChange(ctx context.Context, entity string, fields ...zap.Field) string {
	if _, inSweep := logger.GetSweep(ctx); inSweep {
		s.log(ctx).Warn(entity+" total drifted from ledger, corrected", fields...)
		return telemetry.OutcomeCorrected
	}
	s.log(ctx).Info(entity+" total updated from ledger", fields...)
	return telemetry.OutcomeUpdated
}

func (s *LedgerService) reconcileProjectOnce(ctx context.Context, projectID uuid.UUID) (*projectReconciliation, error) {
	var r projectReconciliation
	err := s.scope.Execute(ctx, func(repos LedgerRepositories) error {
		p, err := repos.Projects().FindByIDForUpdate(ctx, projectID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return shared.NewDomainError(shared.CodeNotFound, "Donation project not found")
			}
			return err
		}

		sum, err := repos.Donations().SumApprovedByProject(ctx, projectID)
		if err != nil {
			return err
		}

		outcome := p.ApplyReconciliation(sum)
		if outcome.Drifted() {
			if err := repos.Projects().SaveAggregates(ctx, p); err != nil {
				return err
			}
		}
		r = projectReconciliation{project: p, outcome: outcome}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ReconcileAnnualGoal re-derives the total of the year's goal from donations
// approved within that calendar year, creating the goal with the default
// target if it does not exist yet.
func (s *LedgerService) ReconcileAnnualGoal(ctx context.Context, year int) (*donation.AnnualGoal, error) {
	r, err := s.reconcileAnnualGoal(ctx, year)
	if err != nil {
		return nil, err
	}
	return r.goal, nil
}

func (s *LedgerService) reconcileAnnualGoal(ctx context.Context, year int) (*goalReconciliation, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "reconcile_annual_goal",
		telemetry.WithAttribute(telemetry.SpanAttrYear, year),
	)
	defer span.End()

	if err := donation.ValidateYear(year); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	start := time.Now()

	r, err := withRetry(ctx, s.logger, "annual goal reconciliation", s.cfg.RetryDelay,
		func(ctx context.Context) (*goalReconciliation, error) {
			return s.reconcileAnnualGoalOnce(ctx, year)
		})
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordReconciliation(ctx, telemetry.EntityAnnualGoal, telemetry.OutcomeFailed, time.Since(start))
		return nil, err
	}

	g := r.goal
	telemetry.SetAttributes(span, telemetry.SpanAttrDrifted, r.drifted)

	resultLabel := telemetry.OutcomeInSync
	if r.drifted {
		resultLabel = s.logTotalChange(ctx, "Annual goal",
			zap.Int("year", year),
			zap.String("old_amount", r.previous),
			zap.String("new_amount", g.CurrentAmount.String()),
		)
	}
	s.metrics.RecordReconciliation(ctx, telemetry.EntityAnnualGoal, resultLabel, time.Since(start))
	s.metrics.RecordAnnualProgress(ctx, g.Year, g.CurrentAmount, g.TargetAmount)

	s.publishEvents(ctx, g)
	return r, nil
}

func (s *LedgerService) reconcileAnnualGoalOnce(ctx context.Context, year int) (*goalReconciliation, error) {
	var r goalReconciliation
	err := s.scope.Execute(ctx, func(repos LedgerRepositories) error {
		g, err := s.loadOrCreateGoal(ctx, repos.AnnualGoals(), year)
		if err != nil {
			return err
		}

		from, to := donation.YearBounds(year, s.cfg.Location)
		sum, err := repos.Donations().SumApprovedBetween(ctx, from, to)
		if err != nil {
			return err
		}

		previous := g.CurrentAmount.String()
		drifted := g.ApplyReconciliation(sum)
		if drifted {
			if err := repos.AnnualGoals().SaveAggregates(ctx, g); err != nil {
				return err
			}
		}
		r = goalReconciliation{goal: g, previous: previous, drifted: drifted}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// loadOrCreateGoal returns the locked goal row for year. A concurrent creator
// winning the insert is fine: the row is re-read after CreateIfAbsent.
func (s *LedgerService) loadOrCreateGoal(ctx context.Context, goals donation.AnnualGoalRepository, year int) (*donation.AnnualGoal, error) {
	g, err := goals.FindByYearForUpdate(ctx, year)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	created, err := donation.NewAnnualGoal(year, s.cfg.DefaultAnnualTarget)
	if err != nil {
		return nil, err
	}
	if err := goals.CreateIfAbsent(ctx, created); err != nil {
		return nil, err
	}
	s.log(ctx).Info("Annual goal created",
		zap.Int("year", year),
		zap.String("target_amount", created.TargetAmount.String()),
	)
	return goals.FindByYearForUpdate(ctx, year)
}
