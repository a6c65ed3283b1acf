package ledger

import (
	"context"

	"github.com/charity/backend/internal/domain/donation"
)

// LedgerScope runs a unit of work against the ledger store.
// Every repository handed to fn shares one database transaction, which is
// committed when fn returns nil and rolled back otherwise.
type LedgerScope interface {
	Execute(ctx context.Context, fn func(repos LedgerRepositories) error) error
}

// LedgerRepositories exposes the ledger repositories bound to the current transaction
type LedgerRepositories interface {
	Donations() donation.DonationRepository
	Projects() donation.DonationProjectRepository
	AnnualGoals() donation.AnnualGoalRepository
}

// NoOpLedgerScope calls fn directly with fixed repositories, without a transaction.
// Used by unit tests with mocked repositories.
type NoOpLedgerScope struct {
	donations   donation.DonationRepository
	projects    donation.DonationProjectRepository
	annualGoals donation.AnnualGoalRepository
}

// NewNoOpLedgerScope creates a NoOpLedgerScope
func NewNoOpLedgerScope(
	donations donation.DonationRepository,
	projects donation.DonationProjectRepository,
	annualGoals donation.AnnualGoalRepository,
) *NoOpLedgerScope {
	return &NoOpLedgerScope{
		donations:   donations,
		projects:    projects,
		annualGoals: annualGoals,
	}
}

// Execute runs fn with the scope's repositories
func (s *NoOpLedgerScope) Execute(_ context.Context, fn func(repos LedgerRepositories) error) error {
	return fn(s)
}

// Donations returns the donation repository
func (s *NoOpLedgerScope) Donations() donation.DonationRepository { return s.donations }

// Projects returns the project repository
func (s *NoOpLedgerScope) Projects() donation.DonationProjectRepository { return s.projects }

// AnnualGoals returns the annual goal repository
func (s *NoOpLedgerScope) AnnualGoals() donation.AnnualGoalRepository { return s.annualGoals }

var (
	_ LedgerScope        = (*NoOpLedgerScope)(nil)
	_ LedgerRepositories = (*NoOpLedgerScope)(nil)
)
