package dto

import (
	"time"

	"github.com/charity/backend/internal/application/ledger"
	"github.com/charity/backend/internal/domain/donation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ApproveDonationRequest is the body of POST /donations/:id/approve
type ApproveDonationRequest struct {
	ApproverID     string `json:"approver_id" binding:"required,uuid"`
	ProofReference string `json:"proof_reference" binding:"max=500,proofref"`
	// Reconcile also reconciles the project and annual goal after approval
	Reconcile bool `json:"reconcile"`
}

// RejectDonationRequest is the body of POST /donations/:id/reject
type RejectDonationRequest struct {
	ApproverID string `json:"approver_id" binding:"required,uuid"`
}

// DonationResponse is the API view of a donation
type DonationResponse struct {
	ID                uuid.UUID       `json:"id"`
	Amount            decimal.Decimal `json:"amount"`
	Status            string          `json:"status"`
	DonationType      string          `json:"donation_type"`
	DonationProjectID *uuid.UUID      `json:"donation_project_id,omitempty"`
	DonorName         string          `json:"donor_name"`
	ProofReference    string          `json:"proof_reference,omitempty"`
	ApprovedAt        *time.Time      `json:"approved_at,omitempty"`
	ApprovedBy        *uuid.UUID      `json:"approved_by,omitempty"`
	RejectedAt        *time.Time      `json:"rejected_at,omitempty"`
	RejectedBy        *uuid.UUID      `json:"rejected_by,omitempty"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// DonationProjectResponse is the API view of a project's cached totals
type DonationProjectResponse struct {
	ID            uuid.UUID        `json:"id"`
	Title         string           `json:"title"`
	TargetAmount  *decimal.Decimal `json:"target_amount,omitempty"`
	CurrentAmount decimal.Decimal  `json:"current_amount"`
	IsCompleted   bool             `json:"is_completed"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// AnnualGoalResponse is the API view of an annual goal
type AnnualGoalResponse struct {
	ID            uuid.UUID       `json:"id"`
	Year          int             `json:"year"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	Progress      decimal.Decimal `json:"progress"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ApprovalResponse is returned by approve with reconcile=true
type ApprovalResponse struct {
	Donation        DonationResponse         `json:"donation"`
	Project         *DonationProjectResponse `json:"project,omitempty"`
	AnnualGoal      *AnnualGoalResponse      `json:"annual_goal,omitempty"`
	ReconcileErrors []string                 `json:"reconcile_errors,omitempty"`
}

// SweepStartedResponse is returned when a sweep was queued in the background
type SweepStartedResponse struct {
	Queued bool `json:"queued"`
}

// ToDonationResponse converts a domain donation
func ToDonationResponse(d *donation.Donation) DonationResponse {
	return DonationResponse{
		ID:                d.ID,
		Amount:            d.Amount,
		Status:            d.Status.String(),
		DonationType:      d.DonationType.String(),
		DonationProjectID: d.DonationProjectID,
		DonorName:         d.DonorName,
		ProofReference:    d.ProofReference,
		ApprovedAt:        d.ApprovedAt,
		ApprovedBy:        d.ApprovedBy,
		RejectedAt:        d.RejectedAt,
		RejectedBy:        d.RejectedBy,
		UpdatedAt:         d.UpdatedAt,
	}
}

// ToDonationProjectResponse converts a domain project
func ToDonationProjectResponse(p *donation.DonationProject) DonationProjectResponse {
	return DonationProjectResponse{
		ID:            p.ID,
		Title:         p.Title,
		TargetAmount:  p.TargetAmount,
		CurrentAmount: p.CurrentAmount,
		IsCompleted:   p.IsCompleted,
		CompletedAt:   p.CompletedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// ToAnnualGoalResponse converts a domain annual goal
func ToAnnualGoalResponse(g *donation.AnnualGoal) AnnualGoalResponse {
	return AnnualGoalResponse{
		ID:            g.ID,
		Year:          g.Year,
		TargetAmount:  g.TargetAmount,
		CurrentAmount: g.CurrentAmount,
		Progress:      g.Progress(),
		UpdatedAt:     g.UpdatedAt,
	}
}

// ToApprovalResponse converts the result of an approve-and-reconcile
func ToApprovalResponse(r *ledger.ApprovalResult) ApprovalResponse {
	resp := ApprovalResponse{Donation: ToDonationResponse(r.Donation)}
	if r.Project != nil {
		p := ToDonationProjectResponse(r.Project)
		resp.Project = &p
	}
	if r.AnnualGoal != nil {
		g := ToAnnualGoalResponse(r.AnnualGoal)
		resp.AnnualGoal = &g
	}
	for _, err := range r.ReconcileErrors {
		resp.ReconcileErrors = append(resp.ReconcileErrors, err.Error())
	}
	return resp
}
