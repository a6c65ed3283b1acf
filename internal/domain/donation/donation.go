package donation

import (
	"fmt"
	"time"

	"github.com/charity/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DonationStatus represents the review status of a donation
type DonationStatus string

const (
	DonationStatusPending  DonationStatus = "PENDING"  // Submitted, awaiting staff review
	DonationStatusApproved DonationStatus = "APPROVED" // Counted towards project and annual totals
	DonationStatusRejected DonationStatus = "REJECTED" // Never counted
)

// IsValid checks if the status is a valid DonationStatus
func (s DonationStatus) IsValid() bool {
	switch s {
	case DonationStatusPending, DonationStatusApproved, DonationStatusRejected:
		return true
	}
	return false
}

// String returns the string representation of DonationStatus
func (s DonationStatus) String() string {
	return string(s)
}

// IsTerminal returns true once the donation has been reviewed
func (s DonationStatus) IsTerminal() bool {
	return s == DonationStatusApproved || s == DonationStatusRejected
}

// CanApprove returns true if the donation can be approved in this status
func (s DonationStatus) CanApprove() bool {
	return s == DonationStatusPending
}

// CanReject returns true if the donation can be rejected in this status
func (s DonationStatus) CanReject() bool {
	return s == DonationStatusPending
}

// DonationType categorizes what a donation is for
type DonationType string

const (
	DonationTypeGeneral         DonationType = "GENERAL"
	DonationTypeEmergency       DonationType = "EMERGENCY"
	DonationTypeSpecificProject DonationType = "SPECIFIC_PROJECT"
	DonationTypeMonthly         DonationType = "MONTHLY"
)

// IsValid checks if the donation type is valid
func (t DonationType) IsValid() bool {
	switch t {
	case DonationTypeGeneral, DonationTypeEmergency, DonationTypeSpecificProject, DonationTypeMonthly:
		return true
	}
	return false
}

// String returns the string representation of DonationType
func (t DonationType) String() string {
	return string(t)
}

// Donation is a single pledged gift. It is the only source of truth for
// project and annual totals: an approved donation contributes its amount,
// anything else contributes nothing.
type Donation struct {
	shared.BaseAggregateRoot
	Amount            decimal.Decimal `json:"amount"`
	Status            DonationStatus  `json:"status"`
	DonationType      DonationType    `json:"donation_type"`
	DonationProjectID *uuid.UUID      `json:"donation_project_id,omitempty"`
	DonorName         string          `json:"donor_name"`
	DonorEmail        string          `json:"donor_email"`
	Message           string          `json:"message"`
	ProofReference    string          `json:"proof_reference"`
	ApprovedAt        *time.Time      `json:"approved_at,omitempty"`
	ApprovedBy        *uuid.UUID      `json:"approved_by,omitempty"`
	RejectedAt        *time.Time      `json:"rejected_at,omitempty"`
	RejectedBy        *uuid.UUID      `json:"rejected_by,omitempty"`
}

// NewDonation creates a pending donation
func NewDonation(
	amount decimal.Decimal,
	donationType DonationType,
	projectID *uuid.UUID,
	donorName string,
) (*Donation, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Donation amount must be positive")
	}
	if !donationType.IsValid() {
		return nil, shared.NewDomainError("INVALID_DONATION_TYPE", fmt.Sprintf("Unknown donation type %q", donationType))
	}
	if donationType == DonationTypeSpecificProject && (projectID == nil || *projectID == uuid.Nil) {
		return nil, shared.NewDomainError("INVALID_PROJECT", "A project-specific donation must reference a project")
	}
	if projectID != nil && *projectID == uuid.Nil {
		projectID = nil
	}
	if len(donorName) > 200 {
		return nil, shared.NewDomainError("INVALID_DONOR_NAME", "Donor name cannot exceed 200 characters")
	}

	return &Donation{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Amount:            amount,
		Status:            DonationStatusPending,
		DonationType:      donationType,
		DonationProjectID: projectID,
		DonorName:         donorName,
	}, nil
}

// Approve marks the donation as approved by the given staff member.
// approvedAt is stamped once here and never changes afterwards.
func (d *Donation) Approve(approvedBy uuid.UUID, proofReference string) error {
	if !d.Status.CanApprove() {
		return shared.NewDomainError(shared.CodeInvalidTransition, fmt.Sprintf("Cannot approve donation in %s status", d.Status))
	}
	if approvedBy == uuid.Nil {
		return shared.NewDomainError(shared.CodeInvalidInput, "Approving user ID is required")
	}
	if len(proofReference) > 500 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Proof reference cannot exceed 500 characters")
	}

	now := time.Now().UTC()
	d.Status = DonationStatusApproved
	d.ApprovedAt = &now
	d.ApprovedBy = &approvedBy
	if proofReference != "" {
		d.ProofReference = proofReference
	}
	d.MarkChanged(now)

	d.AddDomainEvent(NewDonationApprovedEvent(d))

	return nil
}

// Reject marks the donation as rejected
func (d *Donation) Reject(rejectedBy uuid.UUID) error {
	if !d.Status.CanReject() {
		return shared.NewDomainError(shared.CodeInvalidTransition, fmt.Sprintf("Cannot reject donation in %s status", d.Status))
	}
	if rejectedBy == uuid.Nil {
		return shared.NewDomainError(shared.CodeInvalidInput, "Rejecting user ID is required")
	}

	now := time.Now().UTC()
	d.Status = DonationStatusRejected
	d.RejectedAt = &now
	d.RejectedBy = &rejectedBy
	d.MarkChanged(now)

	d.AddDomainEvent(NewDonationRejectedEvent(d))

	return nil
}

// Contributes reports whether the donation counts towards any total
func (d *Donation) Contributes() bool {
	return d.Status == DonationStatusApproved
}

// IsProjectLinked returns true if the donation references a project
func (d *Donation) IsProjectLinked() bool {
	return d.DonationProjectID != nil
}

// ApprovalYear returns the calendar year the donation was approved in, evaluated in loc.
// The second return value is false for donations that were never approved.
func (d *Donation) ApprovalYear(loc *time.Location) (int, bool) {
	if d.ApprovedAt == nil {
		return 0, false
	}
	if loc == nil {
		loc = time.UTC
	}
	return d.ApprovedAt.In(loc).Year(), true
}
