package donation

import (
	"time"

	"github.com/charity/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// DonationProject is a fundraising campaign with an optional target.
// CurrentAmount and IsCompleted are caches of the ledger and are only ever
// written by ApplyReconciliation.
type DonationProject struct {
	shared.BaseAggregateRoot
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	TargetAmount  *decimal.Decimal `json:"target_amount,omitempty"`
	CurrentAmount decimal.Decimal  `json:"current_amount"`
	IsCompleted   bool             `json:"is_completed"`
	IsActive      bool             `json:"is_active"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
}

// NewDonationProject creates an active project with nothing raised yet
func NewDonationProject(title string, targetAmount *decimal.Decimal) (*DonationProject, error) {
	if title == "" {
		return nil, shared.NewDomainError("INVALID_TITLE", "Project title cannot be empty")
	}
	if len(title) > 200 {
		return nil, shared.NewDomainError("INVALID_TITLE", "Project title cannot exceed 200 characters")
	}
	if targetAmount != nil && targetAmount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_TARGET", "Target amount must be positive")
	}

	return &DonationProject{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Title:             title,
		TargetAmount:      targetAmount,
		CurrentAmount:     decimal.Zero,
		IsActive:          true,
	}, nil
}

// HasTarget returns true if the project has a completion target
func (p *DonationProject) HasTarget() bool {
	return p.TargetAmount != nil
}

// ReachesTarget applies the completion policy to an amount
func (p *DonationProject) ReachesTarget(amount decimal.Decimal) bool {
	return p.TargetAmount != nil && amount.GreaterThanOrEqual(*p.TargetAmount)
}

// ApplyReconciliation overwrites the cached total with a freshly derived sum
// and re-evaluates completion. Completion is reversible: dropping back under
// the target reopens the project.
func (p *DonationProject) ApplyReconciliation(sum decimal.Decimal) ReconciliationOutcome {
	outcome := ReconciliationOutcome{
		PreviousAmount: p.CurrentAmount,
		CurrentAmount:  sum,
		WasCompleted:   p.IsCompleted,
	}

	completed := p.ReachesTarget(sum)
	outcome.IsCompleted = completed

	if p.CurrentAmount.Equal(sum) && p.IsCompleted == completed {
		return outcome
	}

	now := time.Now().UTC()
	p.CurrentAmount = sum
	p.IsCompleted = completed
	p.MarkChanged(now)

	switch {
	case completed && !outcome.WasCompleted:
		p.CompletedAt = &now
		p.AddDomainEvent(NewProjectGoalReachedEvent(p))
	case !completed && outcome.WasCompleted:
		p.CompletedAt = nil
		p.AddDomainEvent(NewProjectGoalReopenedEvent(p, outcome.PreviousAmount))
	}

	return outcome
}

// ReconciliationOutcome describes what a reconciliation changed
type ReconciliationOutcome struct {
	PreviousAmount decimal.Decimal
	CurrentAmount  decimal.Decimal
	WasCompleted   bool
	IsCompleted    bool
}

// Drifted reports whether the cached values differed from the ledger
func (o ReconciliationOutcome) Drifted() bool {
	return !o.PreviousAmount.Equal(o.CurrentAmount) || o.WasCompleted != o.IsCompleted
}

// GoalReached reports a false to true completion crossing
func (o ReconciliationOutcome) GoalReached() bool {
	return o.IsCompleted && !o.WasCompleted
}

// GoalReopened reports a true to false completion crossing
func (o ReconciliationOutcome) GoalReopened() bool {
	return !o.IsCompleted && o.WasCompleted
}
