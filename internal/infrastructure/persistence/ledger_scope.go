package persistence

import (
	"context"

	"github.com/charity/backend/internal/application/ledger"
	"github.com/charity/backend/internal/domain/donation"
	"gorm.io/gorm"
)

// GormLedgerScope implements ledger.LedgerScope with a GORM transaction
type GormLedgerScope struct {
	db *gorm.DB
}

// NewGormLedgerScope creates a new GormLedgerScope
func NewGormLedgerScope(db *gorm.DB) *GormLedgerScope {
	return &GormLedgerScope{db: db}
}

// Execute runs fn inside a transaction; fn's error rolls it back
func (s *GormLedgerScope) Execute(ctx context.Context, fn func(repos ledger.LedgerRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormLedgerRepositories{tx: tx})
	})
}

type gormLedgerRepositories struct {
	tx *gorm.DB
}

func (r *gormLedgerRepositories) Donations() donation.DonationRepository {
	return NewGormDonationRepository(r.tx)
}

func (r *gormLedgerRepositories) Projects() donation.DonationProjectRepository {
	return NewGormDonationProjectRepository(r.tx)
}

func (r *gormLedgerRepositories) AnnualGoals() donation.AnnualGoalRepository {
	return NewGormAnnualGoalRepository(r.tx)
}

var (
	_ ledger.LedgerScope        = (*GormLedgerScope)(nil)
	_ ledger.LedgerRepositories = (*gormLedgerRepositories)(nil)
)
