package persistence

import (
	"context"
	"errors"

	"github.com/charity/backend/internal/domain/donation"
	"github.com/charity/backend/internal/domain/shared"
	"github.com/charity/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormDonationProjectRepository implements DonationProjectRepository using GORM
type GormDonationProjectRepository struct {
	db *gorm.DB
}

// NewGormDonationProjectRepository creates a new GormDonationProjectRepository
func NewGormDonationProjectRepository(db *gorm.DB) *GormDonationProjectRepository {
	return &GormDonationProjectRepository{db: db}
}

// FindByID finds a project by its ID
func (r *GormDonationProjectRepository) FindByID(ctx context.Context, id uuid.UUID) (*donation.DonationProject, error) {
	return r.findByID(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate finds a project and locks its row (SELECT ... FOR UPDATE) on PostgreSQL
func (r *GormDonationProjectRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*donation.DonationProject, error) {
	return r.findByID(forUpdate(r.db.WithContext(ctx)), id)
}

func (r *GormDonationProjectRepository) findByID(db *gorm.DB, id uuid.UUID) (*donation.DonationProject, error) {
	var model models.DonationProjectModel
	if err := db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a project
func (r *GormDonationProjectRepository) Save(ctx context.Context, p *donation.DonationProject) error {
	return r.db.WithContext(ctx).Save(models.DonationProjectModelFromDomain(p)).Error
}

// SaveAggregates writes current_amount, is_completed and completed_at only
func (r *GormDonationProjectRepository) SaveAggregates(ctx context.Context, p *donation.DonationProject) error {
	result := r.db.WithContext(ctx).
		Model(&models.DonationProjectModel{}).
		Where("id = ?", p.ID).
		Updates(map[string]any{
			"current_amount": p.CurrentAmount,
			"is_completed":   p.IsCompleted,
			"completed_at":   p.CompletedAt,
			"version":        p.Version,
			"updated_at":     p.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindReconciliationCandidateIDs returns projects with a target that are not completed
func (r *GormDonationProjectRepository) FindReconciliationCandidateIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.DonationProjectModel{}).
		Where("target_amount IS NOT NULL AND is_completed = ?", false).
		Order("created_at, id").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// FindAllIDs returns every project id
func (r *GormDonationProjectRepository) FindAllIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.DonationProjectModel{}).
		Order("created_at, id").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// forUpdate adds a row lock where the dialect supports one. SQLite serializes
// writers at the database level and rejects the clause.
func forUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "postgres" {
		return db.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}
	return db
}

var _ donation.DonationProjectRepository = (*GormDonationProjectRepository)(nil)
