package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/charity/backend/internal/domain/donation"
	"github.com/charity/backend/tests/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestProject(t *testing.T, db *gorm.DB, target string) *donation.DonationProject {
	t.Helper()

	var targetAmount *decimal.Decimal
	if target != "" {
		v := dec(target)
		targetAmount = &v
	}
	p, err := donation.NewDonationProject("Clean water "+uuid.NewString()[:8], targetAmount)
	require.NoError(t, err)
	require.NoError(t, NewGormDonationProjectRepository(db).Save(context.Background(), p))
	return p
}

func newTestDonation(t *testing.T, db *gorm.DB, amount string, projectID *uuid.UUID) *donation.Donation {
	t.Helper()

	donationType := donation.DonationTypeGeneral
	if projectID != nil {
		donationType = donation.DonationTypeSpecificProject
	}
	d, err := donation.NewDonation(dec(amount), donationType, projectID, "Jordan Doe")
	require.NoError(t, err)
	require.NoError(t, NewGormDonationRepository(db).Save(context.Background(), d))
	return d
}

// newApprovedDonation stores a donation already approved at approvedAt
func newApprovedDonation(t *testing.T, db *gorm.DB, amount string, projectID *uuid.UUID, approvedAt time.Time) *donation.Donation {
	t.Helper()

	d := newTestDonation(t, db, amount, projectID)
	require.NoError(t, d.Approve(testutil.TestApproverID(), ""))
	at := approvedAt.UTC()
	d.ApprovedAt = &at
	require.NoError(t, NewGormDonationRepository(db).Save(context.Background(), d))
	return d
}

func newRejectedDonation(t *testing.T, db *gorm.DB, amount string, projectID *uuid.UUID) *donation.Donation {
	t.Helper()

	d := newTestDonation(t, db, amount, projectID)
	require.NoError(t, d.Reject(testutil.TestApproverID()))
	require.NoError(t, NewGormDonationRepository(db).Save(context.Background(), d))
	return d
}
