package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/charity/backend/internal/domain/donation"
	"github.com/charity/backend/internal/domain/shared"
	"github.com/charity/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var (
	approverID   = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	errStoreDown = errors.New("connection refused")
)

type testLedger struct {
	donations *MockDonationRepository
	projects  *MockDonationProjectRepository
	goals     *MockAnnualGoalRepository
	publisher *MockEventPublisher
	logs      *observer.ObservedLogs
	service   *LedgerService
}

func newTestLedger(t *testing.T, opts ...Option) *testLedger {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	tl := &testLedger{
		donations: new(MockDonationRepository),
		projects:  new(MockDonationProjectRepository),
		goals:     new(MockAnnualGoalRepository),
		publisher: NewMockEventPublisher(),
		logs:      logs,
	}
	cfg := Config{
		DefaultAnnualTarget: decimal.NewFromInt(100000),
		Location:            time.UTC,
		RetryDelay:          time.Millisecond,
	}
	opts = append([]Option{
		WithEventPublisher(tl.publisher),
		WithClock(func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }),
	}, opts...)
	tl.service = NewLedgerService(
		NewNoOpLedgerScope(tl.donations, tl.projects, tl.goals),
		cfg,
		zap.New(core),
		opts...,
	)
	return tl
}

func (tl *testLedger) assertExpectations(t *testing.T) {
	tl.donations.AssertExpectations(t)
	tl.projects.AssertExpectations(t)
	tl.goals.AssertExpectations(t)
}

func pendingDonation(t *testing.T, amount int64, projectID *uuid.UUID) *donation.Donation {
	t.Helper()
	dt := donation.DonationTypeGeneral
	if projectID != nil {
		dt = donation.DonationTypeSpecificProject
	}
	d, err := donation.NewDonation(decimal.NewFromInt(amount), dt, projectID, "Sam Rivera")
	require.NoError(t, err)
	return d
}

func projectWithTarget(t *testing.T, target int64) *donation.DonationProject {
	t.Helper()
	v := decimal.NewFromInt(target)
	p, err := donation.NewDonationProject("School library", &v)
	require.NoError(t, err)
	return p
}

func TestLedgerService_Approve(t *testing.T) {
	t.Run("approves a pending donation", func(t *testing.T) {
		tl := newTestLedger(t)
		d := pendingDonation(t, 600, nil)

		tl.donations.On("FindByID", mock.Anything, d.ID).Return(d, nil)
		tl.donations.On("SaveTransition", mock.Anything, d, donation.DonationStatusPending).Return(nil)

		got, err := tl.service.Approve(context.Background(), ApproveRequest{
			DonationID:     d.ID,
			ApproverID:     approverID,
			ProofReference: "bank-transfer-991",
		})
		require.NoError(t, err)
		assert.Equal(t, donation.DonationStatusApproved, got.Status)
		require.NotNil(t, got.ApprovedBy)
		assert.Equal(t, approverID, *got.ApprovedBy)
		assert.NotNil(t, got.ApprovedAt)
		assert.Equal(t, "bank-transfer-991", got.ProofReference)

		assert.Len(t, tl.publisher.GetEventsByType(donation.EventTypeDonationApproved), 1)
		assert.Empty(t, got.GetDomainEvents())
		assert.Equal(t, 1, tl.logs.FilterMessage("Donation approved").Len())
		tl.assertExpectations(t)
	})

	t.Run("returns NotFound for an unknown donation", func(t *testing.T) {
		tl := newTestLedger(t)
		id := uuid.New()
		tl.donations.On("FindByID", mock.Anything, id).Return(nil, shared.ErrNotFound)

		_, err := tl.service.Approve(context.Background(), ApproveRequest{DonationID: id, ApproverID: approverID})
		assert.True(t, errors.Is(err, shared.ErrNotFound))
		tl.donations.AssertNotCalled(t, "SaveTransition", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects approving an approved donation", func(t *testing.T) {
		tl := newTestLedger(t)
		d := pendingDonation(t, 100, nil)
		require.NoError(t, d.Approve(approverID, ""))
		approvedAt := *d.ApprovedAt
		d.ClearDomainEvents()

		tl.donations.On("FindByID", mock.Anything, d.ID).Return(d, nil)

		_, err := tl.service.Approve(context.Background(), ApproveRequest{DonationID: d.ID, ApproverID: uuid.New()})
		assert.True(t, errors.Is(err, shared.ErrInvalidTransition))
		assert.Equal(t, approvedAt, *d.ApprovedAt)
		assert.Equal(t, approverID, *d.ApprovedBy)
		tl.donations.AssertNotCalled(t, "SaveTransition", mock.Anything, mock.Anything, mock.Anything)
		assert.Empty(t, tl.publisher.GetEventsByType(donation.EventTypeDonationApproved))
	})

	t.Run("loser of a concurrent transition gets InvalidTransition", func(t *testing.T) {
		tl := newTestLedger(t)
		d := pendingDonation(t, 100, nil)

		tl.donations.On("FindByID", mock.Anything, d.ID).Return(d, nil)
		tl.donations.On("SaveTransition", mock.Anything, d, donation.DonationStatusPending).
			Return(shared.NewDomainError(shared.CodeInvalidTransition, "Donation is no longer PENDING"))

		_, err := tl.service.Approve(context.Background(), ApproveRequest{DonationID: d.ID, ApproverID: approverID})
		assert.True(t, errors.Is(err, shared.ErrInvalidTransition))
		assert.Empty(t, tl.publisher.GetEventsByType(donation.EventTypeDonationApproved))
	})

	t.Run("requires an approver", func(t *testing.T) {
		tl := newTestLedger(t)
		d := pendingDonation(t, 100, nil)
		tl.donations.On("FindByID", mock.Anything, d.ID).Return(d, nil)

		_, err := tl.service.Approve(context.Background(), ApproveRequest{DonationID: d.ID})
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	})
}

func TestLedgerService_Reject(t *testing.T) {
	tl := newTestLedger(t)
	projectID := uuid.New()
	d := pendingDonation(t, 200, &projectID)

	tl.donations.On("FindByID", mock.Anything, d.ID).Return(d, nil)
	tl.donations.On("SaveTransition", mock.Anything, d, donation.DonationStatusPending).Return(nil)

	got, err := tl.service.Reject(context.Background(), RejectRequest{DonationID: d.ID, ApproverID: approverID})
	require.NoError(t, err)
	assert.Equal(t, donation.DonationStatusRejected, got.Status)
	assert.NotNil(t, got.RejectedAt)
	assert.Nil(t, got.ApprovedAt)
	assert.Len(t, tl.publisher.GetEventsByType(donation.EventTypeDonationRejected), 1)

	// Rejection never touches aggregates
	tl.projects.AssertNotCalled(t, "FindByIDForUpdate", mock.Anything, mock.Anything)
	tl.assertExpectations(t)

	tl.donations.On("FindByID", mock.Anything, d.ID).Return(d, nil)
	_, err = tl.service.Reject(context.Background(), RejectRequest{DonationID: d.ID, ApproverID: approverID})
	assert.True(t, errors.Is(err, shared.ErrInvalidTransition))
}

func TestLedgerService_ReconcileProject(t *testing.T) {
	t.Run("corrects drift and completes the project", func(t *testing.T) {
		tl := newTestLedger(t)
		p := projectWithTarget(t, 1000)

		tl.projects.On("FindByIDForUpdate", mock.Anything, p.ID).Return(p, nil)
		tl.donations.On("SumApprovedByProject", mock.Anything, p.ID).Return(decimal.NewFromInt(1100), nil)
		tl.projects.On("SaveAggregates", mock.Anything, p).Return(nil)

		got, err := tl.service.ReconcileProject(context.Background(), p.ID)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(1100).Equal(got.CurrentAmount))
		assert.True(t, got.IsCompleted)
		assert.NotNil(t, got.CompletedAt)
		assert.Len(t, tl.publisher.GetEventsByType(donation.EventTypeProjectGoalReached), 1)

		// outside a sweep the change follows a transition and is not drift
		updated := tl.logs.FilterMessage("Project total updated from ledger").All()
		require.Len(t, updated, 1)
		assert.Equal(t, zapcore.InfoLevel, updated[0].Level)
		assert.Equal(t, "0", updated[0].ContextMap()["old_amount"])
		assert.Equal(t, "1100", updated[0].ContextMap()["new_amount"])
		assert.Equal(t, 0, tl.logs.FilterLevelExact(zapcore.WarnLevel).Len())
		tl.assertExpectations(t)
	})

	t.Run("reports drift at warn inside a sweep", func(t *testing.T) {
		tl := newTestLedger(t)
		p := projectWithTarget(t, 1000)
		p.CurrentAmount = decimal.NewFromInt(300)

		tl.projects.On("FindByIDForUpdate", mock.Anything, p.ID).Return(p, nil)
		tl.donations.On("SumApprovedByProject", mock.Anything, p.ID).Return(decimal.NewFromInt(450), nil)
		tl.projects.On("SaveAggregates", mock.Anything, p).Return(nil)

		ctx := logger.WithSweep(context.Background(), "sweep-1", TriggerScheduled)
		_, err := tl.service.ReconcileProject(ctx, p.ID)
		require.NoError(t, err)

		drift := tl.logs.FilterMessage("Project total drifted from ledger, corrected").All()
		require.Len(t, drift, 1)
		assert.Equal(t, zapcore.WarnLevel, drift[0].Level)
		assert.Equal(t, "300", drift[0].ContextMap()["old_amount"])
		assert.Equal(t, "450", drift[0].ContextMap()["new_amount"])
		assert.Equal(t, "sweep-1", drift[0].ContextMap()["sweep_id"])
		assert.Equal(t, 0, tl.logs.FilterMessage("Project total updated from ledger").Len())
	})

	t.Run("writes nothing when already in sync", func(t *testing.T) {
		tl := newTestLedger(t)
		p := projectWithTarget(t, 1000)
		p.CurrentAmount = decimal.NewFromInt(600)

		tl.projects.On("FindByIDForUpdate", mock.Anything, p.ID).Return(p, nil)
		tl.donations.On("SumApprovedByProject", mock.Anything, p.ID).Return(decimal.NewFromInt(600), nil)

		got, err := tl.service.ReconcileProject(context.Background(), p.ID)
		require.NoError(t, err)
		assert.False(t, got.IsCompleted)
		tl.projects.AssertNotCalled(t, "SaveAggregates", mock.Anything, mock.Anything)
		assert.Equal(t, 0, tl.logs.FilterLevelExact(zapcore.WarnLevel).Len())
	})

	t.Run("reopens a completed project that fell below target", func(t *testing.T) {
		tl := newTestLedger(t)
		p := projectWithTarget(t, 1000)
		p.ApplyReconciliation(decimal.NewFromInt(1000))
		p.ClearDomainEvents()

		tl.projects.On("FindByIDForUpdate", mock.Anything, p.ID).Return(p, nil)
		tl.donations.On("SumApprovedByProject", mock.Anything, p.ID).Return(decimal.NewFromInt(900), nil)
		tl.projects.On("SaveAggregates", mock.Anything, p).Return(nil)

		got, err := tl.service.ReconcileProject(context.Background(), p.ID)
		require.NoError(t, err)
		assert.False(t, got.IsCompleted)
		assert.Nil(t, got.CompletedAt)
		assert.Len(t, tl.publisher.GetEventsByType(donation.EventTypeProjectGoalReopened), 1)
	})

	t.Run("project without target never completes", func(t *testing.T) {
		tl := newTestLedger(t)
		p, err := donation.NewDonationProject("General fund", nil)
		require.NoError(t, err)

		tl.projects.On("FindByIDForUpdate", mock.Anything, p.ID).Return(p, nil)
		tl.donations.On("SumApprovedByProject", mock.Anything, p.ID).Return(decimal.NewFromInt(5000000), nil)
		tl.projects.On("SaveAggregates", mock.Anything, p).Return(nil)

		got, err := tl.service.ReconcileProject(context.Background(), p.ID)
		require.NoError(t, err)
		assert.False(t, got.IsCompleted)
		assert.True(t, decimal.NewFromInt(5000000).Equal(got.CurrentAmount))
	})

	t.Run("NotFound is not retried", func(t *testing.T) {
		tl := newTestLedger(t)
		id := uuid.New()
		tl.projects.On("FindByIDForUpdate", mock.Anything, id).Return(nil, shared.ErrNotFound).Once()

		_, err := tl.service.ReconcileProject(context.Background(), id)
		assert.True(t, errors.Is(err, shared.ErrNotFound))
		tl.projects.AssertNumberOfCalls(t, "FindByIDForUpdate", 1)
	})

	t.Run("retries a storage failure once", func(t *testing.T) {
		tl := newTestLedger(t)
		p := projectWithTarget(t, 1000)

		tl.projects.On("FindByIDForUpdate", mock.Anything, p.ID).Return(p, nil).Twice()
		tl.donations.On("SumApprovedByProject", mock.Anything, p.ID).Return(decimal.Zero, errStoreDown).Once()
		tl.donations.On("SumApprovedByProject", mock.Anything, p.ID).Return(decimal.NewFromInt(600), nil).Once()
		tl.projects.On("SaveAggregates", mock.Anything, p).Return(nil).Once()

		got, err := tl.service.ReconcileProject(context.Background(), p.ID)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(600).Equal(got.CurrentAmount))
		assert.Equal(t, 1, tl.logs.FilterMessage("Reconciliation attempt failed, retrying").Len())
		tl.assertExpectations(t)
	})

	t.Run("surfaces ReconciliationFailure after the retry", func(t *testing.T) {
		tl := newTestLedger(t)
		p := projectWithTarget(t, 1000)
		p.CurrentAmount = decimal.NewFromInt(300)

		tl.projects.On("FindByIDForUpdate", mock.Anything, p.ID).Return(p, nil)
		tl.donations.On("SumApprovedByProject", mock.Anything, p.ID).Return(decimal.Zero, errStoreDown)

		_, err := tl.service.ReconcileProject(context.Background(), p.ID)
		assert.True(t, errors.Is(err, shared.ErrReconciliationFailure))
		assert.ErrorIs(t, err, errStoreDown)
		tl.donations.AssertNumberOfCalls(t, "SumApprovedByProject", maxReconcileAttempts)
		tl.projects.AssertNotCalled(t, "SaveAggregates", mock.Anything, mock.Anything)
		assert.True(t, decimal.NewFromInt(300).Equal(p.CurrentAmount))
		assert.Empty(t, tl.publisher.GetEventsByType(donation.EventTypeProjectGoalReached))
	})
}

func TestLedgerService_ReconcileAnnualGoal(t *testing.T) {
	t.Run("creates a missing goal with the default target", func(t *testing.T) {
		tl := newTestLedger(t)
		created, err := donation.NewAnnualGoal(2025, decimal.NewFromInt(100000))
		require.NoError(t, err)
		start, end := donation.YearBounds(2025, time.UTC)

		tl.goals.On("FindByYearForUpdate", mock.Anything, 2025).Return(nil, shared.ErrNotFound).Once()
		tl.goals.On("CreateIfAbsent", mock.Anything, mock.MatchedBy(func(g *donation.AnnualGoal) bool {
			return g.Year == 2025 && g.TargetAmount.Equal(decimal.NewFromInt(100000)) && g.CurrentAmount.IsZero()
		})).Return(nil).Once()
		tl.goals.On("FindByYearForUpdate", mock.Anything, 2025).Return(created, nil).Once()
		tl.donations.On("SumApprovedBetween", mock.Anything, start, end).Return(decimal.NewFromInt(450), nil)
		tl.goals.On("SaveAggregates", mock.Anything, created).Return(nil)

		got, err := tl.service.ReconcileAnnualGoal(context.Background(), 2025)
		require.NoError(t, err)
		assert.Equal(t, 2025, got.Year)
		assert.True(t, decimal.NewFromInt(450).Equal(got.CurrentAmount))
		assert.Len(t, tl.publisher.GetEventsByType(donation.EventTypeAnnualGoalReconciled), 1)
		tl.assertExpectations(t)
	})

	t.Run("uses calendar bounds of the configured zone", func(t *testing.T) {
		tl := newTestLedger(t)
		loc, err := time.LoadLocation("Asia/Tokyo")
		require.NoError(t, err)
		tl.service.cfg.Location = loc

		goal, err := donation.NewAnnualGoal(2025, decimal.NewFromInt(10))
		require.NoError(t, err)
		start, end := donation.YearBounds(2025, loc)
		require.Equal(t, time.Date(2024, 12, 31, 15, 0, 0, 0, time.UTC), start)

		tl.goals.On("FindByYearForUpdate", mock.Anything, 2025).Return(goal, nil)
		tl.donations.On("SumApprovedBetween", mock.Anything, start, end).Return(decimal.Zero, nil)

		_, err = tl.service.ReconcileAnnualGoal(context.Background(), 2025)
		require.NoError(t, err)
		tl.goals.AssertNotCalled(t, "SaveAggregates", mock.Anything, mock.Anything)
		tl.assertExpectations(t)
	})

	t.Run("rejects an out of range year", func(t *testing.T) {
		tl := newTestLedger(t)
		_, err := tl.service.ReconcileAnnualGoal(context.Background(), 0)
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
		tl.goals.AssertNotCalled(t, "FindByYearForUpdate", mock.Anything, mock.Anything)
	})
}

func TestLedgerService_ApproveAndReconcile(t *testing.T) {
	tl := newTestLedger(t)
	p := projectWithTarget(t, 1000)
	d := pendingDonation(t, 300, &p.ID)
	goal, err := donation.NewAnnualGoal(time.Now().UTC().Year(), decimal.NewFromInt(100000))
	require.NoError(t, err)

	tl.donations.On("FindByID", mock.Anything, d.ID).Return(d, nil)
	tl.donations.On("SaveTransition", mock.Anything, d, donation.DonationStatusPending).Return(nil)
	tl.projects.On("FindByIDForUpdate", mock.Anything, p.ID).Return(nil, errStoreDown)
	tl.goals.On("FindByYearForUpdate", mock.Anything, goal.Year).Return(goal, nil)
	tl.donations.On("SumApprovedBetween", mock.Anything, mock.Anything, mock.Anything).Return(decimal.NewFromInt(300), nil)
	tl.goals.On("SaveAggregates", mock.Anything, goal).Return(nil)

	result, err := tl.service.ApproveAndReconcile(context.Background(), ApproveRequest{DonationID: d.ID, ApproverID: approverID})
	require.NoError(t, err, "the approval itself committed")
	assert.Equal(t, donation.DonationStatusApproved, result.Donation.Status)
	assert.Nil(t, result.Project)
	require.NotNil(t, result.AnnualGoal)
	assert.True(t, decimal.NewFromInt(300).Equal(result.AnnualGoal.CurrentAmount))
	require.Len(t, result.ReconcileErrors, 1)
	assert.True(t, errors.Is(result.ReconcileErrors[0], shared.ErrReconciliationFailure))
	assert.Equal(t, 1, tl.logs.FilterMessage("Donation approved but reconciliation failed").Len())
}

func TestLedgerService_ApproveAndReconcile_ApprovalFails(t *testing.T) {
	tl := newTestLedger(t)
	id := uuid.New()
	tl.donations.On("FindByID", mock.Anything, id).Return(nil, shared.ErrNotFound)

	result, err := tl.service.ApproveAndReconcile(context.Background(), ApproveRequest{DonationID: id, ApproverID: approverID})
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
	tl.projects.AssertNotCalled(t, "FindByIDForUpdate", mock.Anything, mock.Anything)
}
