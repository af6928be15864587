package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type budgetService struct {
	pool *pgxpool.Pool
}

func NewBudgetService(pool *pgxpool.Pool) BudgetService {
	return &budgetService{pool: pool}
}

const budgetColumns = "id, company_id, category, year, month, planned_amount, notes, created_at, updated_at"

func scanBudget(row interface{ Scan(...any) error }, b *Budget) error {
	return row.Scan(&b.ID, &b.CompanyID, &b.Category, &b.Year, &b.Month, &b.PlannedAmount, &b.Notes, &b.CreatedAt, &b.UpdatedAt)
}

func (s *budgetService) CreateBudget(ctx context.Context, companyID int, input BudgetInput) (*Budget, error) {
	if err := Validate(input); err != nil {
		return nil, err
	}
	b := &Budget{}
	err := scanBudget(s.pool.QueryRow(ctx, `
		INSERT INTO budgets (company_id, category, year, month, planned_amount, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+budgetColumns,
		companyID, input.Category, input.Year, input.Month, input.PlannedAmount, toPtr(input.Notes),
	), b)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, conflictf("budget for %s %04d-%02d already exists", input.Category, input.Year, input.Month)
		}
		return nil, fmt.Errorf("create budget: %w", err)
	}
	return b, nil
}

// GetBudgets lists budgets; year and month of zero mean "any".
func (s *budgetService) GetBudgets(ctx context.Context, companyID, year, month int) ([]Budget, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+budgetColumns+`
		FROM budgets
		WHERE company_id = $1
		  AND ($2 = 0 OR year = $2)
		  AND ($3 = 0 OR month = $3)
		ORDER BY year DESC, month DESC, category`,
		companyID, year, month,
	)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []Budget
	for rows.Next() {
		var b Budget
		if err := scanBudget(rows, &b); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

func (s *budgetService) GetBudget(ctx context.Context, companyID, budgetID int) (*Budget, error) {
	b := &Budget{}
	err := scanBudget(s.pool.QueryRow(ctx,
		"SELECT "+budgetColumns+" FROM budgets WHERE company_id = $1 AND id = $2",
		companyID, budgetID,
	), b)
	if err != nil {
		return nil, notFoundOr(err, "budget %d", budgetID)
	}
	return b, nil
}

func (s *budgetService) UpdateBudget(ctx context.Context, companyID, budgetID int, input BudgetInput) (*Budget, error) {
	if err := Validate(input); err != nil {
		return nil, err
	}
	b := &Budget{}
	err := scanBudget(s.pool.QueryRow(ctx, `
		UPDATE budgets
		SET category = $3, year = $4, month = $5, planned_amount = $6, notes = $7, updated_at = NOW()
		WHERE company_id = $1 AND id = $2
		RETURNING `+budgetColumns,
		companyID, budgetID, input.Category, input.Year, input.Month, input.PlannedAmount, toPtr(input.Notes),
	), b)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, conflictf("budget for %s %04d-%02d already exists", input.Category, input.Year, input.Month)
		}
		return nil, notFoundOr(err, "budget %d", budgetID)
	}
	return b, nil
}

func (s *budgetService) DeleteBudget(ctx context.Context, companyID, budgetID int) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM budgets WHERE company_id = $1 AND id = $2", companyID, budgetID)
	if err != nil {
		return fmt.Errorf("delete budget %d: %w", budgetID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("budget %d: %w", budgetID, ErrNotFound)
	}
	return nil
}

func (s *budgetService) GetBudgetVsActual(ctx context.Context, companyID, year, month int) ([]BudgetVsActual, error) {
	if month < 1 || month > 12 || year < 2000 || year > 2100 {
		return nil, invalidf("invalid period %04d-%02d", year, month)
	}
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	rows, err := s.pool.Query(ctx, `
		WITH actual AS (
			SELECT category, SUM(amount) AS spent
			FROM cash_flow_transactions
			WHERE company_id = $1 AND type = 'exit'
			  AND transaction_date >= $2 AND transaction_date < $3
			GROUP BY category
		), planned AS (
			SELECT category, planned_amount
			FROM budgets
			WHERE company_id = $1 AND year = $4 AND month = $5
		)
		SELECT COALESCE(p.category, a.category), COALESCE(p.planned_amount, 0), COALESCE(a.spent, 0)
		FROM planned p
		FULL OUTER JOIN actual a ON a.category = p.category
		ORDER BY 1`,
		companyID, from, to, year, month,
	)
	if err != nil {
		return nil, fmt.Errorf("budget vs actual %04d-%02d: %w", year, month, err)
	}
	defer rows.Close()

	var report []BudgetVsActual
	for rows.Next() {
		var category string
		var planned, actual decimal.Decimal
		if err := rows.Scan(&category, &planned, &actual); err != nil {
			return nil, fmt.Errorf("scan budget vs actual: %w", err)
		}
		report = append(report, NewBudgetVsActual(category, year, month, planned, actual))
	}
	return report, rows.Err()
}
