package ledger

import (
	"context"
	"errors"

	"github.com/charity/backend/internal/domain/donation"
	"github.com/charity/backend/internal/domain/shared"
	"github.com/charity/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ApproveRequest carries the input of an approval
type ApproveRequest struct {
	DonationID     uuid.UUID
	ApproverID     uuid.UUID
	ProofReference string
}

// RejectRequest carries the input of a rejection
type RejectRequest struct {
	DonationID uuid.UUID
	ApproverID uuid.UUID
}

// Approve moves a PENDING donation to APPROVED. It does not reconcile; callers
// run ReconcileProject and ReconcileAnnualGoal afterwards, or use ApproveAndReconcile.
func (s *LedgerService) Approve(ctx context.Context, req ApproveRequest) (*donation.Donation, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "approve",
		telemetry.WithAttribute(telemetry.SpanAttrDonationID, req.DonationID),
		telemetry.WithAttribute(telemetry.SpanAttrApproverID, req.ApproverID),
	)
	defer span.End()

	d, err := s.transition(ctx, req.DonationID, func(d *donation.Donation) error {
		return d.Approve(req.ApproverID, req.ProofReference)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrAmount, d.Amount.String())
	s.log(ctx).Info("Donation approved",
		zap.String("donation_id", d.ID.String()),
		zap.String("approved_by", req.ApproverID.String()),
		zap.String("amount", d.Amount.String()),
	)
	return d, nil
}

// Reject moves a PENDING donation to REJECTED. Rejected donations never count,
// so nothing is reconciled.
func (s *LedgerService) Reject(ctx context.Context, req RejectRequest) (*donation.Donation, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "reject",
		telemetry.WithAttribute(telemetry.SpanAttrDonationID, req.DonationID),
		telemetry.WithAttribute(telemetry.SpanAttrApproverID, req.ApproverID),
	)
	defer span.End()

	d, err := s.transition(ctx, req.DonationID, func(d *donation.Donation) error {
		return d.Reject(req.ApproverID)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.log(ctx).Info("Donation rejected",
		zap.String("donation_id", d.ID.String()),
		zap.String("rejected_by", req.ApproverID.String()),
	)
	return d, nil
}

// transition loads the donation, applies apply and persists the new status
// with a compare-and-set on the old one, all in one transaction.
func (s *LedgerService) transition(ctx context.Context, id uuid.UUID, apply func(*donation.Donation) error) (*donation.Donation, error) {
	var d *donation.Donation
	err := s.scope.Execute(ctx, func(repos LedgerRepositories) error {
		found, err := repos.Donations().FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return shared.NewDomainError(shared.CodeNotFound, "Donation not found")
			}
			return err
		}
		from := found.Status
		if err := apply(found); err != nil {
			return err
		}
		if err := repos.Donations().SaveTransition(ctx, found, from); err != nil {
			return err
		}
		d = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(ctx, d.Status.String())
	s.publishEvents(ctx, d)
	return d, nil
}

// ApprovalResult is the outcome of ApproveAndReconcile
type ApprovalResult struct {
	Donation   *donation.Donation
	Project    *donation.DonationProject
	AnnualGoal *donation.AnnualGoal
	// ReconcileErrors lists reconciliations that failed after the approval committed.
	// The approval stands; the next sweep repairs the totals.
	ReconcileErrors []error
}

// ApproveAndReconcile approves a donation and then reconciles its project, if any,
// and the annual goal of its approval year. Only the approval error is returned;
// reconciliation failures are reported in the result.
func (s *LedgerService) ApproveAndReconcile(ctx context.Context, req ApproveRequest) (*ApprovalResult, error) {
	d, err := s.Approve(ctx, req)
	if err != nil {
		return nil, err
	}

	result := &ApprovalResult{Donation: d}
	if d.IsProjectLinked() {
		p, err := s.ReconcileProject(ctx, *d.DonationProjectID)
		if err != nil {
			result.ReconcileErrors = append(result.ReconcileErrors, err)
		}
		result.Project = p
	}

	if year, ok := d.ApprovalYear(s.cfg.Location); ok {
		g, err := s.ReconcileAnnualGoal(ctx, year)
		if err != nil {
			result.ReconcileErrors = append(result.ReconcileErrors, err)
		}
		result.AnnualGoal = g
	}

	if len(result.ReconcileErrors) > 0 {
		s.log(ctx).Warn("Donation approved but reconciliation failed",
			zap.String("donation_id", d.ID.String()),
			zap.Errors("errors", result.ReconcileErrors),
		)
	}
	return result, nil
}
