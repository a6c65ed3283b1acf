package donation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DonationRepository defines the interface for donation persistence
type DonationRepository interface {
	// FindByID finds a donation by ID. Returns shared.ErrNotFound when it does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (*Donation, error)

	// Save creates or fully updates a donation
	Save(ctx context.Context, donation *Donation) error

	// SaveTransition persists a status change only if the stored status still
	// equals from. Returns ErrInvalidTransition when another writer got there first.
	SaveTransition(ctx context.Context, donation *Donation, from DonationStatus) error

	// SumApprovedByProject sums approved donations linked to a project
	SumApprovedByProject(ctx context.Context, projectID uuid.UUID) (decimal.Decimal, error)

	// SumApprovedBetween sums approved donations with approved_at in [start, end)
	SumApprovedBetween(ctx context.Context, start, end time.Time) (decimal.Decimal, error)

	// ApprovedAtRange returns the earliest and latest approval timestamps.
	// Both are nil when nothing has been approved yet.
	ApprovedAtRange(ctx context.Context) (earliest, latest *time.Time, err error)
}

// DonationProjectRepository defines the interface for project persistence
type DonationProjectRepository interface {
	// FindByID finds a project by ID. Returns shared.ErrNotFound when it does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (*DonationProject, error)

	// FindByIDForUpdate is FindByID holding a row lock until the transaction ends
	// on databases that support it.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*DonationProject, error)

	// Save creates or fully updates a project
	Save(ctx context.Context, project *DonationProject) error

	// SaveAggregates writes the derived fields of a project in one statement
	SaveAggregates(ctx context.Context, project *DonationProject) error

	// FindReconciliationCandidateIDs returns ids of projects with a target that are not completed
	FindReconciliationCandidateIDs(ctx context.Context) ([]uuid.UUID, error)

	// FindAllIDs returns ids of every project
	FindAllIDs(ctx context.Context) ([]uuid.UUID, error)
}

// AnnualGoalRepository defines the interface for annual goal persistence
type AnnualGoalRepository interface {
	// FindByYear finds the goal for a year. Returns shared.ErrNotFound when it does not exist.
	FindByYear(ctx context.Context, year int) (*AnnualGoal, error)

	// FindByYearForUpdate is FindByYear holding a row lock until the transaction ends
	// on databases that support it.
	FindByYearForUpdate(ctx context.Context, year int) (*AnnualGoal, error)

	// CreateIfAbsent inserts the goal unless a row for its year already exists
	CreateIfAbsent(ctx context.Context, goal *AnnualGoal) error

	// SaveAggregates writes the derived fields of a goal
	SaveAggregates(ctx context.Context, goal *AnnualGoal) error

	// ListYears returns every year that has a goal row, ascending
	ListYears(ctx context.Context) ([]int, error)
}
