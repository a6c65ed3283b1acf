package persistence

import (
	"context"
	"errors"

	"github.com/charity/backend/internal/domain/donation"
	"github.com/charity/backend/internal/domain/shared"
	"github.com/charity/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormAnnualGoalRepository implements AnnualGoalRepository using GORM
type GormAnnualGoalRepository struct {
	db *gorm.DB
}

// NewGormAnnualGoalRepository creates a new GormAnnualGoalRepository
func NewGormAnnualGoalRepository(db *gorm.DB) *GormAnnualGoalRepository {
	return &GormAnnualGoalRepository{db: db}
}

// FindByYear finds the goal for a calendar year
func (r *GormAnnualGoalRepository) FindByYear(ctx context.Context, year int) (*donation.AnnualGoal, error) {
	return r.findByYear(r.db.WithContext(ctx), year)
}

// FindByYearForUpdate finds the goal and locks its row on PostgreSQL
func (r *GormAnnualGoalRepository) FindByYearForUpdate(ctx context.Context, year int) (*donation.AnnualGoal, error) {
	return r.findByYear(forUpdate(r.db.WithContext(ctx)), year)
}

func (r *GormAnnualGoalRepository) findByYear(db *gorm.DB, year int) (*donation.AnnualGoal, error) {
	var model models.AnnualGoalModel
	if err := db.Where("year = ?", year).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// CreateIfAbsent inserts the goal; a concurrent insert for the same year wins silently
func (r *GormAnnualGoalRepository) CreateIfAbsent(ctx context.Context, goal *donation.AnnualGoal) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "year"}},
			DoNothing: true,
		}).
		Create(models.AnnualGoalModelFromDomain(goal)).Error
}

// SaveAggregates writes current_amount
func (r *GormAnnualGoalRepository) SaveAggregates(ctx context.Context, goal *donation.AnnualGoal) error {
	result := r.db.WithContext(ctx).
		Model(&models.AnnualGoalModel{}).
		Where("id = ?", goal.ID).
		Updates(map[string]any{
			"current_amount": goal.CurrentAmount,
			"version":        goal.Version,
			"updated_at":     goal.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListYears returns the years that have a goal row, ascending
func (r *GormAnnualGoalRepository) ListYears(ctx context.Context) ([]int, error) {
	var years []int
	if err := r.db.WithContext(ctx).
		Model(&models.AnnualGoalModel{}).
		Order("year").
		Pluck("year", &years).Error; err != nil {
		return nil, err
	}
	return years, nil
}

var _ donation.AnnualGoalRepository = (*GormAnnualGoalRepository)(nil)
