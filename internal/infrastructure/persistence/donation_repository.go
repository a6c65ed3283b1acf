package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/charity/backend/internal/domain/donation"
	"github.com/charity/backend/internal/domain/shared"
	"github.com/charity/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormDonationRepository implements DonationRepository using GORM
type GormDonationRepository struct {
	db *gorm.DB
}

// NewGormDonationRepository creates a new GormDonationRepository
func NewGormDonationRepository(db *gorm.DB) *GormDonationRepository {
	return &GormDonationRepository{db: db}
}

// FindByID finds a donation by its ID
func (r *GormDonationRepository) FindByID(ctx context.Context, id uuid.UUID) (*donation.Donation, error) {
	var model models.DonationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a donation
func (r *GormDonationRepository) Save(ctx context.Context, d *donation.Donation) error {
	return r.db.WithContext(ctx).Save(models.DonationModelFromDomain(d)).Error
}

// SaveTransition writes the new status and its audit fields with a
// compare-and-set on the stored status. Of two concurrent transitions of the
// same donation exactly one matches a row.
func (r *GormDonationRepository) SaveTransition(ctx context.Context, d *donation.Donation, from donation.DonationStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.DonationModel{}).
		Where("id = ? AND status = ?", d.ID, from).
		Updates(map[string]any{
			"status":          d.Status,
			"approved_at":     d.ApprovedAt,
			"approved_by":     d.ApprovedBy,
			"rejected_at":     d.RejectedAt,
			"rejected_by":     d.RejectedBy,
			"proof_reference": d.ProofReference,
			"version":         d.Version,
			"updated_at":      d.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeInvalidTransition, "Donation is no longer "+string(from))
	}
	return nil
}

// SumApprovedByProject sums approved donations linked to a project
func (r *GormDonationRepository) SumApprovedByProject(ctx context.Context, projectID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&models.DonationModel{}).
		Select("COALESCE(SUM(amount), 0) as total").
		Where("donation_project_id = ? AND status = ?", projectID, donation.DonationStatusApproved).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// SumApprovedBetween sums approved donations with approved_at in [start, end)
func (r *GormDonationRepository) SumApprovedBetween(ctx context.Context, start, end time.Time) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&models.DonationModel{}).
		Select("COALESCE(SUM(amount), 0) as total").
		Where("status = ? AND approved_at >= ? AND approved_at < ?", donation.DonationStatusApproved, start.UTC(), end.UTC()).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// ApprovedAtRange returns the earliest and latest approval timestamps
func (r *GormDonationRepository) ApprovedAtRange(ctx context.Context) (earliest, latest *time.Time, err error) {
	if earliest, err = r.approvedAtEdge(ctx, "approved_at ASC"); err != nil || earliest == nil {
		return nil, nil, err
	}
	if latest, err = r.approvedAtEdge(ctx, "approved_at DESC"); err != nil {
		return nil, nil, err
	}
	return earliest, latest, nil
}

func (r *GormDonationRepository) approvedAtEdge(ctx context.Context, order string) (*time.Time, error) {
	var model models.DonationModel
	err := r.db.WithContext(ctx).
		Select("approved_at").
		Where("status = ? AND approved_at IS NOT NULL", donation.DonationStatusApproved).
		Order(order).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if model.ApprovedAt == nil {
		return nil, nil
	}
	t := model.ApprovedAt.UTC()
	return &t, nil
}

var _ donation.DonationRepository = (*GormDonationRepository)(nil)
