package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type cashFlowService struct {
	pool *pgxpool.Pool
}

// NewCashFlowService constructs a CashFlowService backed by PostgreSQL.
func NewCashFlowService(pool *pgxpool.Pool) CashFlowService {
	return &cashFlowService{pool: pool}
}

const cashFlowColumns = `id, company_id, type, category, description, amount, transaction_date::text,
	payment_method, vendor_id, customer_id, source_invoice_id, source_payable_id, created_by, created_at`

func scanCashFlow(row interface{ Scan(...any) error }, t *CashFlowTransaction) error {
	return row.Scan(&t.ID, &t.CompanyID, &t.Type, &t.Category, &t.Description, &t.Amount, &t.TransactionDate,
		&t.PaymentMethod, &t.VendorID, &t.CustomerID, &t.SourceInvoiceID, &t.SourcePayableID, &t.CreatedBy, &t.CreatedAt)
}

func (s *cashFlowService) CreateTransaction(ctx context.Context, companyID, actorID int, input CashFlowInput) (*CashFlowTransaction, error) {
	if err := Validate(input); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := checkPartiesTx(ctx, tx, companyID, input.VendorID, input.CustomerID); err != nil {
		return nil, err
	}

	t, err := s.RecordTx(ctx, tx, companyID, actorID, input, CashFlowSource{})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit cash flow transaction: %w", err)
	}
	return t, nil
}

// checkPartiesTx verifies that the optional vendor and customer belong to the company.
func checkPartiesTx(ctx context.Context, q pgxQuerier, companyID, vendorID, customerID int) error {
	if vendorID != 0 {
		var ok bool
		if err := q.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM vendors WHERE id = $1 AND company_id = $2)", vendorID, companyID,
		).Scan(&ok); err != nil {
			return fmt.Errorf("validate vendor: %w", err)
		}
		if !ok {
			return invalidf("vendor %d not found for company %d", vendorID, companyID)
		}
	}
	if customerID != 0 {
		var ok bool
		if err := q.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM customers WHERE id = $1 AND company_id = $2)", customerID, companyID,
		).Scan(&ok); err != nil {
			return fmt.Errorf("validate customer: %w", err)
		}
		if !ok {
			return invalidf("customer %d not found for company %d", customerID, companyID)
		}
	}
	return nil
}

func (s *cashFlowService) RecordTx(ctx context.Context, tx pgx.Tx, companyID, actorID int, input CashFlowInput, src CashFlowSource) (*CashFlowTransaction, error) {
	t := &CashFlowTransaction{}
	err := scanCashFlow(tx.QueryRow(ctx, `
		INSERT INTO cash_flow_transactions (company_id, type, category, description, amount, transaction_date,
		                                    payment_method, vendor_id, customer_id, source_invoice_id,
		                                    source_payable_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+cashFlowColumns,
		companyID, input.Type, input.Category, input.Description, input.Amount, dateOnly(input.TransactionDate),
		toPtr(input.PaymentMethod), intPtr(input.VendorID), intPtr(input.CustomerID),
		intPtr(src.InvoiceID), intPtr(src.PayableID), intPtr(actorID),
	), t)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, conflictf("invoice %d already has a cash flow entry", src.InvoiceID)
		}
		return nil, fmt.Errorf("insert cash flow transaction: %w", err)
	}
	return t, nil
}

func (s *cashFlowService) GetTransactions(ctx context.Context, companyID int, filter CashFlowFilter) ([]CashFlowTransaction, error) {
	query := "SELECT " + cashFlowColumns + " FROM cash_flow_transactions WHERE company_id = $1"
	args := []any{companyID}
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, dateOnly(*filter.From))
		query += fmt.Sprintf(" AND transaction_date >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, dateOnly(*filter.To))
		query += fmt.Sprintf(" AND transaction_date <= $%d", len(args))
	}
	query += " ORDER BY transaction_date DESC, id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cash flow transactions: %w", err)
	}
	defer rows.Close()

	var out []CashFlowTransaction
	for rows.Next() {
		var t CashFlowTransaction
		if err := scanCashFlow(rows, &t); err != nil {
			return nil, fmt.Errorf("scan cash flow transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *cashFlowService) GetTransaction(ctx context.Context, companyID, transactionID int) (*CashFlowTransaction, error) {
	t := &CashFlowTransaction{}
	err := scanCashFlow(s.pool.QueryRow(ctx,
		"SELECT "+cashFlowColumns+" FROM cash_flow_transactions WHERE company_id = $1 AND id = $2",
		companyID, transactionID,
	), t)
	if err != nil {
		return nil, notFoundOr(err, "cash flow transaction %d", transactionID)
	}
	return t, nil
}

func (s *cashFlowService) DeleteTransaction(ctx context.Context, companyID, transactionID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	t := &CashFlowTransaction{}
	if err := scanCashFlow(tx.QueryRow(ctx,
		"SELECT "+cashFlowColumns+" FROM cash_flow_transactions WHERE company_id = $1 AND id = $2 FOR UPDATE",
		companyID, transactionID,
	), t); err != nil {
		return notFoundOr(err, "cash flow transaction %d", transactionID)
	}
	if t.Generated() {
		return conflictf("cash flow transaction %d was generated by an invoice or payable and cannot be deleted directly", transactionID)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM cash_flow_transactions WHERE id = $1", transactionID); err != nil {
		return fmt.Errorf("delete cash flow transaction %d: %w", transactionID, err)
	}
	return tx.Commit(ctx)
}

func (s *cashFlowService) GetDailySummary(ctx context.Context, companyID int, date time.Time) (*DailySummary, error) {
	entries, exits, err := sumForDate(ctx, s.pool, companyID, date)
	if err != nil {
		return nil, err
	}
	return &DailySummary{
		Date:    dateOnly(date).Format(DateLayout),
		Entries: entries,
		Exits:   exits,
		Net:     entries.Sub(exits),
	}, nil
}

// sumForDate returns the totals of entry and exit rows dated on date.
func sumForDate(ctx context.Context, q pgxQuerier, companyID int, date time.Time) (entries, exits decimal.Decimal, err error) {
	err = q.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount) FILTER (WHERE type = 'entry'), 0),
		       COALESCE(SUM(amount) FILTER (WHERE type = 'exit'), 0)
		FROM cash_flow_transactions
		WHERE company_id = $1 AND transaction_date = $2`,
		companyID, dateOnly(date),
	).Scan(&entries, &exits)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("sum cash flow for %s: %w", dateOnly(date).Format(DateLayout), err)
	}
	return entries, exits, nil
}

func (s *cashFlowService) DeleteForInvoiceTx(ctx context.Context, tx pgx.Tx, companyID, invoiceID int) (int64, error) {
	tag, err := tx.Exec(ctx,
		"DELETE FROM cash_flow_transactions WHERE company_id = $1 AND source_invoice_id = $2",
		companyID, invoiceID,
	)
	if err != nil {
		return 0, fmt.Errorf("delete cash flow for invoice %d: %w", invoiceID, err)
	}
	return tag.RowsAffected(), nil
}
