package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type payableService struct {
	pool     *pgxpool.Pool
	cashFlow CashFlowService
}

// NewPayableService constructs a PayableService backed by PostgreSQL.
// Payments are posted to the cash ledger through cashFlow.
func NewPayableService(pool *pgxpool.Pool, cashFlow CashFlowService) PayableService {
	return &payableService{pool: pool, cashFlow: cashFlow}
}

const payableSelect = `
	SELECT ap.id, ap.company_id, ap.vendor_id, v.name, ap.source_invoice_id, ap.description, ap.category,
	       ap.amount, ap.paid_amount, ap.due_date::text, ap.paid_at::text,
	       ap.installment_number, ap.installment_count, ap.status,
	       (ap.status <> 'paid' AND ap.due_date < CURRENT_DATE) AS overdue,
	       ap.notes, ap.created_by, ap.created_at, ap.updated_at
	FROM accounts_payable ap
	LEFT JOIN vendors v ON v.id = ap.vendor_id`

func scanPayable(row interface{ Scan(...any) error }, p *Payable) error {
	return row.Scan(&p.ID, &p.CompanyID, &p.VendorID, &p.VendorName, &p.SourceInvoiceID, &p.Description, &p.Category,
		&p.Amount, &p.PaidAmount, &p.DueDate, &p.PaidAt,
		&p.InstallmentNumber, &p.InstallmentCount, &p.Status, &p.Overdue,
		&p.Notes, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
}

func (s *payableService) CreatePayable(ctx context.Context, companyID, actorID int, input PayableInput) (*Payable, error) {
	if err := Validate(input); err != nil {
		return nil, err
	}
	if err := checkPartiesTx(ctx, s.pool, companyID, input.VendorID, 0); err != nil {
		return nil, err
	}
	category := input.Category
	if category == "" {
		category = DefaultPurchaseCategory
	}

	var id int
	if err := s.pool.QueryRow(ctx, `
		INSERT INTO accounts_payable (company_id, vendor_id, description, category, amount, due_date, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		companyID, intPtr(input.VendorID), input.Description, category, input.Amount,
		dateOnly(input.DueDate), toPtr(input.Notes), intPtr(actorID),
	).Scan(&id); err != nil {
		return nil, fmt.Errorf("create payable: %w", err)
	}
	return s.GetPayable(ctx, companyID, id)
}

func (s *payableService) GetPayables(ctx context.Context, companyID int, filter PayableFilter) ([]Payable, error) {
	query := payableSelect + " WHERE ap.company_id = $1"
	args := []any{companyID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND ap.status = $%d", len(args))
	}
	if filter.VendorID != 0 {
		args = append(args, filter.VendorID)
		query += fmt.Sprintf(" AND ap.vendor_id = $%d", len(args))
	}
	if filter.SourceInvoiceID != 0 {
		args = append(args, filter.SourceInvoiceID)
		query += fmt.Sprintf(" AND ap.source_invoice_id = $%d", len(args))
	}
	if filter.DueFrom != nil {
		args = append(args, dateOnly(*filter.DueFrom))
		query += fmt.Sprintf(" AND ap.due_date >= $%d", len(args))
	}
	if filter.DueTo != nil {
		args = append(args, dateOnly(*filter.DueTo))
		query += fmt.Sprintf(" AND ap.due_date <= $%d", len(args))
	}
	if filter.OverdueOnly {
		query += " AND ap.status <> 'paid' AND ap.due_date < CURRENT_DATE"
	}
	query += " ORDER BY ap.due_date, ap.id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list payables: %w", err)
	}
	defer rows.Close()

	var payables []Payable
	for rows.Next() {
		var p Payable
		if err := scanPayable(rows, &p); err != nil {
			return nil, fmt.Errorf("scan payable: %w", err)
		}
		payables = append(payables, p)
	}
	return payables, rows.Err()
}

func (s *payableService) GetPayable(ctx context.Context, companyID, payableID int) (*Payable, error) {
	return getPayable(ctx, s.pool, companyID, payableID, false)
}

func getPayable(ctx context.Context, q pgxQuerier, companyID, payableID int, forUpdate bool) (*Payable, error) {
	query := payableSelect + " WHERE ap.company_id = $1 AND ap.id = $2"
	if forUpdate {
		query += " FOR UPDATE OF ap"
	}
	p := &Payable{}
	if err := scanPayable(q.QueryRow(ctx, query, companyID, payableID), p); err != nil {
		return nil, notFoundOr(err, "payable %d", payableID)
	}
	return p, nil
}

func (s *payableService) UpdatePayable(ctx context.Context, companyID, payableID int, input PayableInput) (*Payable, error) {
	if err := Validate(input); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := getPayable(ctx, tx, companyID, payableID, true)
	if err != nil {
		return nil, err
	}
	if p.SourceInvoiceID != nil {
		return nil, conflictf("payable %d was generated by invoice %d; cancel the invoice instead", payableID, *p.SourceInvoiceID)
	}
	if p.Status != PayablePending {
		return nil, conflictf("payable %d is %s and can no longer be edited", payableID, p.Status)
	}
	if err := checkPartiesTx(ctx, tx, companyID, input.VendorID, 0); err != nil {
		return nil, err
	}
	category := input.Category
	if category == "" {
		category = p.Category
	}

	if _, err := tx.Exec(ctx, `
		UPDATE accounts_payable
		SET vendor_id = $2, description = $3, category = $4, amount = $5, due_date = $6, notes = $7, updated_at = NOW()
		WHERE id = $1`,
		payableID, intPtr(input.VendorID), input.Description, category, input.Amount,
		dateOnly(input.DueDate), toPtr(input.Notes),
	); err != nil {
		return nil, fmt.Errorf("update payable %d: %w", payableID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit payable update: %w", err)
	}
	return s.GetPayable(ctx, companyID, payableID)
}

func (s *payableService) PayPayable(ctx context.Context, companyID, payableID, actorID int, input PaymentInput) (*Payable, error) {
	if err := Validate(input); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := getPayable(ctx, tx, companyID, payableID, true)
	if err != nil {
		return nil, err
	}
	if p.Status == PayablePaid {
		return nil, conflictf("payable %d is already paid", payableID)
	}
	if input.Amount.GreaterThan(p.Outstanding()) {
		return nil, invalidf("payment of %s exceeds outstanding amount %s", input.Amount.StringFixed(2), p.Outstanding().StringFixed(2))
	}

	paid := p.PaidAmount.Add(input.Amount)
	status := PayablePartiallyPaid
	if paid.Equal(p.Amount) {
		status = PayablePaid
	}

	if _, err := tx.Exec(ctx, `
		UPDATE accounts_payable
		SET paid_amount = $2, status = $3, paid_at = $4, updated_at = NOW()
		WHERE id = $1`,
		payableID, paid, status, dateOnly(input.PaidAt),
	); err != nil {
		return nil, fmt.Errorf("update payable %d payment: %w", payableID, err)
	}

	vendorID := 0
	if p.VendorID != nil {
		vendorID = *p.VendorID
	}
	if _, err := s.cashFlow.RecordTx(ctx, tx, companyID, actorID, CashFlowInput{
		Type:            CashExit,
		Category:        p.Category,
		Description:     "Payment: " + p.Description,
		Amount:          input.Amount,
		TransactionDate: input.PaidAt,
		PaymentMethod:   input.PaymentMethod,
		VendorID:        vendorID,
	}, CashFlowSource{PayableID: payableID}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit payable payment: %w", err)
	}
	return s.GetPayable(ctx, companyID, payableID)
}

func (s *payableService) DeletePayable(ctx context.Context, companyID, payableID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := getPayable(ctx, tx, companyID, payableID, true)
	if err != nil {
		return err
	}
	if p.SourceInvoiceID != nil {
		return conflictf("payable %d was generated by invoice %d; cancel the invoice instead", payableID, *p.SourceInvoiceID)
	}
	if p.Status != PayablePending {
		return conflictf("payable %d is %s and cannot be deleted", payableID, p.Status)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM accounts_payable WHERE id = $1", payableID); err != nil {
		return fmt.Errorf("delete payable %d: %w", payableID, err)
	}
	return tx.Commit(ctx)
}

func (s *payableService) CreateInstallmentsTx(ctx context.Context, tx pgx.Tx, inv *Invoice, firstDue time.Time, actorID int) (int, error) {
	schedule := BuildInstallments(inv.TotalInvoice, inv.Installments, firstDue)
	for _, inst := range schedule {
		if _, err := tx.Exec(ctx, `
			INSERT INTO accounts_payable (company_id, vendor_id, source_invoice_id, description, category, amount,
			                              due_date, installment_number, installment_count, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			inv.CompanyID, inv.VendorID, inv.ID,
			InstallmentDescription(inv.Ref(), inst.Number, inst.Count),
			inv.Category, inst.Amount, inst.DueDate, inst.Number, inst.Count, intPtr(actorID),
		); err != nil {
			return 0, fmt.Errorf("insert installment %d/%d for invoice %s: %w", inst.Number, inst.Count, inv.Ref(), err)
		}
	}
	return len(schedule), nil
}

func (s *payableService) DeletePendingForInvoiceTx(ctx context.Context, tx pgx.Tx, companyID, invoiceID int) (int64, error) {
	tag, err := tx.Exec(ctx,
		"DELETE FROM accounts_payable WHERE company_id = $1 AND source_invoice_id = $2 AND status = 'pending'",
		companyID, invoiceID,
	)
	if err != nil {
		return 0, fmt.Errorf("delete pending payables for invoice %d: %w", invoiceID, err)
	}
	return tag.RowsAffected(), nil
}
