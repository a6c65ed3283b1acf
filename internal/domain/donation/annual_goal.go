package donation

import (
	"time"

	"github.com/charity/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Valid year range for annual goals
const (
	MinGoalYear = 1900
	MaxGoalYear = 9999
)

// AnnualGoal tracks the fundraising total for one calendar year.
// There is exactly one row per year.
type AnnualGoal struct {
	shared.BaseAggregateRoot
	Year          int             `json:"year"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
}

// NewAnnualGoal creates a goal for a year with nothing raised yet
func NewAnnualGoal(year int, targetAmount decimal.Decimal) (*AnnualGoal, error) {
	if err := ValidateYear(year); err != nil {
		return nil, err
	}
	if targetAmount.IsNegative() {
		return nil, shared.NewDomainError("INVALID_TARGET", "Annual target cannot be negative")
	}

	return &AnnualGoal{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Year:              year,
		TargetAmount:      targetAmount,
		CurrentAmount:     decimal.Zero,
	}, nil
}

// ValidateYear checks the year is in the supported range
func ValidateYear(year int) error {
	if year < MinGoalYear || year > MaxGoalYear {
		return shared.NewDomainError(shared.CodeInvalidInput, "Year is out of range")
	}
	return nil
}

// YearBounds returns the half-open interval [Jan 1 year, Jan 1 year+1)
// in loc, expressed in UTC.
func YearBounds(year int, loc *time.Location) (start, end time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	start = time.Date(year, time.January, 1, 0, 0, 0, 0, loc).UTC()
	end = time.Date(year+1, time.January, 1, 0, 0, 0, 0, loc).UTC()
	return start, end
}

// ApplyReconciliation overwrites the cached total with a freshly derived sum.
// Returns true if the cached value was out of date.
func (g *AnnualGoal) ApplyReconciliation(sum decimal.Decimal) bool {
	if sum.IsNegative() {
		sum = decimal.Zero
	}
	if g.CurrentAmount.Equal(sum) {
		return false
	}

	previous := g.CurrentAmount
	g.CurrentAmount = sum
	g.MarkChanged(time.Now())

	g.AddDomainEvent(NewAnnualGoalReconciledEvent(g, previous))

	return true
}

// Progress returns the fraction of the target raised, or zero without a target
func (g *AnnualGoal) Progress() decimal.Decimal {
	if g.TargetAmount.IsZero() {
		return decimal.Zero
	}
	return g.CurrentAmount.Div(g.TargetAmount)
}
