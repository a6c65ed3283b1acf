package donation

import (
	"time"

	"github.com/charity/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type names
const (
	AggregateTypeDonation        = "Donation"
	AggregateTypeDonationProject = "DonationProject"
	AggregateTypeAnnualGoal      = "AnnualGoal"
)

// Event type names
const (
	EventTypeDonationApproved     = "DonationApproved"
	EventTypeDonationRejected     = "DonationRejected"
	EventTypeProjectGoalReached   = "ProjectGoalReached"
	EventTypeProjectGoalReopened  = "ProjectGoalReopened"
	EventTypeAnnualGoalReconciled = "AnnualGoalReconciled"
)

// DonationApprovedEvent is raised when staff approve a donation
type DonationApprovedEvent struct {
	shared.BaseDomainEvent
	DonationID        uuid.UUID       `json:"donation_id"`
	DonationProjectID *uuid.UUID      `json:"donation_project_id,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	ApprovedBy        uuid.UUID       `json:"approved_by"`
	ApprovedAt        time.Time       `json:"approved_at"`
}

// NewDonationApprovedEvent creates a new DonationApprovedEvent
func NewDonationApprovedEvent(d *Donation) *DonationApprovedEvent {
	var approvedBy uuid.UUID
	approvedAt := time.Now().UTC()
	if d.ApprovedBy != nil {
		approvedBy = *d.ApprovedBy
	}
	if d.ApprovedAt != nil {
		approvedAt = *d.ApprovedAt
	}
	return &DonationApprovedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeDonationApproved, AggregateTypeDonation, d.ID),
		DonationID:        d.ID,
		DonationProjectID: d.DonationProjectID,
		Amount:            d.Amount,
		ApprovedBy:        approvedBy,
		ApprovedAt:        approvedAt,
	}
}

// DonationRejectedEvent is raised when staff reject a donation
type DonationRejectedEvent struct {
	shared.BaseDomainEvent
	DonationID uuid.UUID       `json:"donation_id"`
	Amount     decimal.Decimal `json:"amount"`
	RejectedBy uuid.UUID       `json:"rejected_by"`
}

// NewDonationRejectedEvent creates a new DonationRejectedEvent
func NewDonationRejectedEvent(d *Donation) *DonationRejectedEvent {
	var rejectedBy uuid.UUID
	if d.RejectedBy != nil {
		rejectedBy = *d.RejectedBy
	}
	return &DonationRejectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDonationRejected, AggregateTypeDonation, d.ID),
		DonationID:      d.ID,
		Amount:          d.Amount,
		RejectedBy:      rejectedBy,
	}
}

// ProjectGoalReachedEvent is raised each time a project crosses its target upwards
type ProjectGoalReachedEvent struct {
	shared.BaseDomainEvent
	ProjectID     uuid.UUID       `json:"project_id"`
	Title         string          `json:"title"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	CompletedAt   time.Time       `json:"completed_at"`
}

// NewProjectGoalReachedEvent creates a new ProjectGoalReachedEvent
func NewProjectGoalReachedEvent(p *DonationProject) *ProjectGoalReachedEvent {
	var target decimal.Decimal
	if p.TargetAmount != nil {
		target = *p.TargetAmount
	}
	completedAt := time.Now().UTC()
	if p.CompletedAt != nil {
		completedAt = *p.CompletedAt
	}
	return &ProjectGoalReachedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProjectGoalReached, AggregateTypeDonationProject, p.ID),
		ProjectID:       p.ID,
		Title:           p.Title,
		TargetAmount:    target,
		CurrentAmount:   p.CurrentAmount,
		CompletedAt:     completedAt,
	}
}

// ProjectGoalReopenedEvent is raised when a completed project falls back under its target
type ProjectGoalReopenedEvent struct {
	shared.BaseDomainEvent
	ProjectID      uuid.UUID       `json:"project_id"`
	PreviousAmount decimal.Decimal `json:"previous_amount"`
	CurrentAmount  decimal.Decimal `json:"current_amount"`
}

// NewProjectGoalReopenedEvent creates a new ProjectGoalReopenedEvent
func NewProjectGoalReopenedEvent(p *DonationProject, previous decimal.Decimal) *ProjectGoalReopenedEvent {
	return &ProjectGoalReopenedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProjectGoalReopened, AggregateTypeDonationProject, p.ID),
		ProjectID:       p.ID,
		PreviousAmount:  previous,
		CurrentAmount:   p.CurrentAmount,
	}
}

// AnnualGoalReconciledEvent is raised when an annual total was corrected
type AnnualGoalReconciledEvent struct {
	shared.BaseDomainEvent
	Year           int             `json:"year"`
	PreviousAmount decimal.Decimal `json:"previous_amount"`
	CurrentAmount  decimal.Decimal `json:"current_amount"`
	TargetAmount   decimal.Decimal `json:"target_amount"`
}

// NewAnnualGoalReconciledEvent creates a new AnnualGoalReconciledEvent
func NewAnnualGoalReconciledEvent(g *AnnualGoal, previous decimal.Decimal) *AnnualGoalReconciledEvent {
	return &AnnualGoalReconciledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAnnualGoalReconciled, AggregateTypeAnnualGoal, g.ID),
		Year:            g.Year,
		PreviousAmount:  previous,
		CurrentAmount:   g.CurrentAmount,
		TargetAmount:    g.TargetAmount,
	}
}
