package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Budget is the planned spend for one category in one month.
type Budget struct {
	ID            int             `json:"id"`
	CompanyID     int             `json:"companyId"`
	Category      string          `json:"category"`
	Year          int             `json:"year"`
	Month         int             `json:"month"`
	PlannedAmount decimal.Decimal `json:"plannedAmount"`
	Notes         *string         `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

type BudgetInput struct {
	Category      string          `json:"category" validate:"required,max=100"`
	Year          int             `json:"year" validate:"required,gte=2000,lte=2100"`
	Month         int             `json:"month" validate:"required,gte=1,lte=12"`
	PlannedAmount decimal.Decimal `json:"plannedAmount" validate:"gte=0,places=2"`
	Notes         string          `json:"notes" validate:"omitempty,max=1000"`
}

// BudgetVsActual compares a budget line with the exits posted in its category and month.
type BudgetVsActual struct {
	Category string          `json:"category"`
	Year     int             `json:"year"`
	Month    int             `json:"month"`
	Planned  decimal.Decimal `json:"planned"`
	Actual   decimal.Decimal `json:"actual"`
	Variance decimal.Decimal `json:"variance"`
	// UsedPercent is actual/planned*100 rounded to two places; zero when nothing was planned.
	UsedPercent decimal.Decimal `json:"usedPercent"`
}

// NewBudgetVsActual derives variance (planned - actual) and the used percentage.
func NewBudgetVsActual(category string, year, month int, planned, actual decimal.Decimal) BudgetVsActual {
	used := decimal.Zero
	if planned.IsPositive() {
		used = actual.Mul(decimal.NewFromInt(100)).DivRound(planned, 2)
	}
	return BudgetVsActual{
		Category:    category,
		Year:        year,
		Month:       month,
		Planned:     planned,
		Actual:      actual,
		Variance:    planned.Sub(actual),
		UsedPercent: used,
	}
}

type BudgetService interface {
	CreateBudget(ctx context.Context, companyID int, input BudgetInput) (*Budget, error)
	GetBudgets(ctx context.Context, companyID, year, month int) ([]Budget, error)
	GetBudget(ctx context.Context, companyID, budgetID int) (*Budget, error)
	UpdateBudget(ctx context.Context, companyID, budgetID int, input BudgetInput) (*Budget, error)
	DeleteBudget(ctx context.Context, companyID, budgetID int) error

	// GetBudgetVsActual reports every budget of the month, plus any exit category that spent without a budget.
	GetBudgetVsActual(ctx context.Context, companyID, year, month int) ([]BudgetVsActual, error)
}
