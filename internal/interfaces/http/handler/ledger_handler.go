package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/charity/backend/internal/application/ledger"
	"github.com/charity/backend/internal/domain/donation"
	"github.com/charity/backend/internal/infrastructure/scheduler"
	"github.com/charity/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LedgerService is the subset of the ledger application service used over HTTP
type LedgerService interface {
	Approve(ctx context.Context, req ledger.ApproveRequest) (*donation.Donation, error)
	ApproveAndReconcile(ctx context.Context, req ledger.ApproveRequest) (*ledger.ApprovalResult, error)
	Reject(ctx context.Context, req ledger.RejectRequest) (*donation.Donation, error)
	ReconcileProject(ctx context.Context, projectID uuid.UUID) (*donation.DonationProject, error)
	ReconcileAnnualGoal(ctx context.Context, year int) (*donation.AnnualGoal, error)
	Sweep(ctx context.Context) (*ledger.SweepResult, error)
}

// SweepRunner starts background sweeps and reports on them
type SweepRunner interface {
	TriggerManualRun(ctx context.Context) error
	GetStatus() map[string]any
}

// LedgerHandler exposes donation transitions, reconciliation and sweeps
type LedgerHandler struct {
	BaseHandler
	service   LedgerService
	scheduler SweepRunner
}

// NewLedgerHandler creates a LedgerHandler. runner may be nil when the
// scheduler is disabled; async sweeps are then unavailable.
func NewLedgerHandler(service LedgerService, runner SweepRunner) *LedgerHandler {
	return &LedgerHandler{service: service, scheduler: runner}
}

// ApproveDonation handles POST /donations/:id/approve
func (h *LedgerHandler) ApproveDonation(c *gin.Context) {
	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BindError(c, err)
		return
	}
	var req dto.ApproveDonationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	approveReq := ledger.ApproveRequest{
		DonationID:     uuid.MustParse(uri.ID),
		ApproverID:     uuid.MustParse(req.ApproverID),
		ProofReference: req.ProofReference,
	}

	if !req.Reconcile {
		d, err := h.service.Approve(c.Request.Context(), approveReq)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, dto.ToDonationResponse(d))
		return
	}

	result, err := h.service.ApproveAndReconcile(c.Request.Context(), approveReq)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToApprovalResponse(result))
}

// RejectDonation handles POST /donations/:id/reject
func (h *LedgerHandler) RejectDonation(c *gin.Context) {
	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BindError(c, err)
		return
	}
	var req dto.RejectDonationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	d, err := h.service.Reject(c.Request.Context(), ledger.RejectRequest{
		DonationID: uuid.MustParse(uri.ID),
		ApproverID: uuid.MustParse(req.ApproverID),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToDonationResponse(d))
}

// ReconcileProject handles POST /projects/:id/reconcile
func (h *LedgerHandler) ReconcileProject(c *gin.Context) {
	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BindError(c, err)
		return
	}

	p, err := h.service.ReconcileProject(c.Request.Context(), uuid.MustParse(uri.ID))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToDonationProjectResponse(p))
}

// ReconcileAnnualGoal handles POST /annual-goals/:year/reconcile
func (h *LedgerHandler) ReconcileAnnualGoal(c *gin.Context) {
	var uri dto.YearRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BindError(c, err)
		return
	}

	g, err := h.service.ReconcileAnnualGoal(c.Request.Context(), uri.Year)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToAnnualGoalResponse(g))
}

// Sweep handles POST /ledger/sweep. With ?async=true the run is handed to the
// scheduler and the call returns 202 immediately.
func (h *LedgerHandler) Sweep(c *gin.Context) {
	if c.Query("async") == "true" {
		h.sweepAsync(c)
		return
	}

	ctx := ledger.WithSweepTrigger(c.Request.Context(), ledger.TriggerOnDemand)
	result, err := h.service.Sweep(ctx)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

func (h *LedgerHandler) sweepAsync(c *gin.Context) {
	if h.scheduler == nil {
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeSchedulerNotRunning, "Sweep scheduler is disabled")
		return
	}
	if err := h.scheduler.TriggerManualRun(c.Request.Context()); err != nil {
		if errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeSchedulerNotRunning, err.Error())
			return
		}
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, dto.SweepStartedResponse{Queued: true})
}

// SweepStatus handles GET /ledger/sweep/status
func (h *LedgerHandler) SweepStatus(c *gin.Context) {
	if h.scheduler == nil {
		h.Success(c, gin.H{"enabled": false})
		return
	}
	h.Success(c, h.scheduler.GetStatus())
}
