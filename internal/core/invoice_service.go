package core

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type invoiceService struct {
	pool     *pgxpool.Pool
	stock    StockService
	payables PayableService
	cashFlow CashFlowService
	now      func() time.Time
}

// NewInvoiceService wires the intake and reversal workflows to the services owning each side effect.
func NewInvoiceService(pool *pgxpool.Pool, stock StockService, payables PayableService, cashFlow CashFlowService) InvoiceService {
	return &invoiceService{
		pool:     pool,
		stock:    stock,
		payables: payables,
		cashFlow: cashFlow,
		now:      time.Now,
	}
}

// pgxReader is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgxReader interface {
	pgxQuerier
	pgxRowQuerier
}

const invoiceSelect = `
	SELECT i.id, i.company_id, i.vendor_id, v.name, i.nfe_number, i.nfe_series, i.access_key,
	       i.issue_date::text, i.receipt_date::text, i.operation_type,
	       i.total_products, i.total_tax, i.total_freight, i.total_insurance, i.total_discount, i.total_other,
	       i.total_invoice, i.icms_base, i.icms_value, i.ipi_value, i.pis_value, i.cofins_value,
	       i.payment_status, i.payment_method, i.installments, i.first_due_date::text, i.category, i.notes,
	       i.state, i.stock_updated, i.stock_updated_at, i.stock_updated_by,
	       i.accounts_payable_created, i.accounts_payable_created_at,
	       i.cancellation_reason, i.cancelled_at, i.cancelled_by, i.created_by, i.created_at, i.updated_at
	FROM nfe_invoices i
	JOIN vendors v ON v.id = i.vendor_id`

func scanInvoice(row interface{ Scan(...any) error }, inv *Invoice) error {
	err := row.Scan(&inv.ID, &inv.CompanyID, &inv.VendorID, &inv.VendorName, &inv.Number, &inv.Series, &inv.AccessKey,
		&inv.IssueDate, &inv.ReceiptDate, &inv.OperationType,
		&inv.TotalProducts, &inv.TotalTax, &inv.TotalFreight, &inv.TotalInsurance, &inv.TotalDiscount, &inv.TotalOther,
		&inv.TotalInvoice, &inv.ICMSBase, &inv.ICMSValue, &inv.IPIValue, &inv.PISValue, &inv.COFINSValue,
		&inv.PaymentStatus, &inv.PaymentMethod, &inv.Installments, &inv.FirstDueDate, &inv.Category, &inv.Notes,
		&inv.State, &inv.StockUpdated, &inv.StockUpdatedAt, &inv.StockUpdatedBy,
		&inv.PayablesCreated, &inv.PayablesCreatedAt,
		&inv.CancellationReason, &inv.CancelledAt, &inv.CancelledBy, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return err
	}
	inv.Status = inv.State.Status()
	return nil
}

// loadInvoice reads the header and items. With forUpdate the header row is locked.
func loadInvoice(ctx context.Context, q pgxReader, companyID, invoiceID int, forUpdate bool) (*Invoice, error) {
	query := invoiceSelect + " WHERE i.company_id = $1 AND i.id = $2"
	if forUpdate {
		query += " FOR UPDATE OF i"
	}
	inv := &Invoice{}
	if err := scanInvoice(q.QueryRow(ctx, query, companyID, invoiceID), inv); err != nil {
		return nil, notFoundOr(err, "invoice %d", invoiceID)
	}

	rows, err := q.Query(ctx, `
		SELECT it.id, it.invoice_id, it.sequence, it.product_id, p.code, p.name, it.description,
		       it.ncm, it.cfop, it.unit, it.quantity, it.unit_price, it.total_price, it.icms_value, it.ipi_value
		FROM nfe_items it
		JOIN products p ON p.id = it.product_id
		WHERE it.invoice_id = $1
		ORDER BY it.sequence`,
		invoiceID,
	)
	if err != nil {
		return nil, fmt.Errorf("load items for invoice %d: %w", invoiceID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var it InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.Sequence, &it.ProductID, &it.ProductCode, &it.ProductName,
			&it.Description, &it.NCM, &it.CFOP, &it.Unit, &it.Quantity, &it.UnitPrice, &it.TotalPrice,
			&it.ICMSValue, &it.IPIValue); err != nil {
			return nil, fmt.Errorf("scan invoice item: %w", err)
		}
		inv.Items = append(inv.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load items for invoice %d: %w", invoiceID, err)
	}
	return inv, nil
}

// checkReferences verifies that the vendor and every item product belong to the company.
// It runs before any transaction is opened.
func (s *invoiceService) checkReferences(ctx context.Context, companyID int, input *InvoiceInput) error {
	if err := checkPartiesTx(ctx, s.pool, companyID, input.VendorID, 0); err != nil {
		return err
	}

	ids := make([]int, 0, len(input.Items))
	for _, it := range input.Items {
		if !slices.Contains(ids, it.ProductID) {
			ids = append(ids, it.ProductID)
		}
	}
	rows, err := s.pool.Query(ctx,
		"SELECT id FROM products WHERE company_id = $1 AND id = ANY($2)",
		companyID, ids,
	)
	if err != nil {
		return fmt.Errorf("validate products: %w", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return fmt.Errorf("validate products: %w", err)
	}
	for i, it := range input.Items {
		if !slices.Contains(found, it.ProductID) {
			return &ValidationError{
				Message: fmt.Sprintf("product %d not found for company %d", it.ProductID, companyID),
				Fields:  map[string]string{fmt.Sprintf("items[%d].productId", i): "exists"},
			}
		}
	}
	return nil
}

func (s *invoiceService) prepare(ctx context.Context, companyID int, input *InvoiceInput) error {
	input.Normalize(s.now())
	if err := input.Check(); err != nil {
		return err
	}
	return s.checkReferences(ctx, companyID, input)
}

func (s *invoiceService) CreateInvoice(ctx context.Context, companyID, actorID int, input InvoiceInput) (*Invoice, error) {
	if err := s.prepare(ctx, companyID, &input); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var invoiceID int
	err = tx.QueryRow(ctx, `
		INSERT INTO nfe_invoices (company_id, vendor_id, nfe_number, nfe_series, access_key, issue_date, receipt_date,
		                          operation_type, total_products, total_tax, total_freight, total_insurance,
		                          total_discount, total_other, total_invoice, icms_base, icms_value, ipi_value,
		                          pis_value, cofins_value, payment_status, payment_method, installments,
		                          first_due_date, category, notes, state, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
		        $21, $22, $23, $24, $25, $26, 'DRAFT', $27)
		RETURNING id`,
		companyID, input.VendorID, input.Number, input.Series, toPtr(input.AccessKey),
		dateOnly(input.IssueDate), dateOnly(*input.ReceiptDate), input.OperationType,
		input.TotalProducts, input.TotalTax, input.TotalFreight, input.TotalInsurance,
		input.TotalDiscount, input.TotalOther, input.TotalInvoice, input.ICMSBase, input.ICMSValue, input.IPIValue,
		input.PISValue, input.COFINSValue, input.PaymentStatus, toPtr(input.PaymentMethod), input.Installments,
		datePtr(input.FirstDueDate), input.Category, toPtr(input.Notes), intPtr(actorID),
	).Scan(&invoiceID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, conflictf("invoice %s/%s already exists", input.Number, input.Series)
		}
		return nil, fmt.Errorf("insert invoice header: %w", err)
	}

	if err := insertItemsTx(ctx, tx, companyID, invoiceID, input.Items); err != nil {
		return nil, err
	}

	if !input.SaveAsDraft {
		inv, err := loadInvoice(ctx, tx, companyID, invoiceID, true)
		if err != nil {
			return nil, err
		}
		if err := s.processTx(ctx, tx, inv, actorID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit invoice %s/%s: %w", input.Number, input.Series, err)
	}
	return s.GetInvoice(ctx, companyID, invoiceID)
}

// insertItemsTx writes items in input order with a 1-based sequence.
func insertItemsTx(ctx context.Context, tx pgx.Tx, companyID, invoiceID int, items []InvoiceItemInput) error {
	for i, it := range items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO nfe_items (invoice_id, company_id, sequence, product_id, description, ncm, cfop, unit,
			                       quantity, unit_price, total_price, icms_value, ipi_value)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			invoiceID, companyID, i+1, it.ProductID, toPtr(it.Description), toPtr(it.NCM), toPtr(it.CFOP),
			toPtr(it.Unit), it.Quantity, it.UnitPrice, it.TotalPrice, it.ICMSValue, it.IPIValue,
		); err != nil {
			return fmt.Errorf("insert invoice item %d: %w", i+1, err)
		}
	}
	return nil
}

// processTx applies stock, payables and cash-flow effects to a locked DRAFT invoice and
// moves it to PROCESSED.
func (s *invoiceService) processTx(ctx context.Context, tx pgx.Tx, inv *Invoice, actorID int) error {
	if err := s.stock.ApplyInvoiceTx(ctx, tx, inv, actorID); err != nil {
		return err
	}

	payablesCreated := false
	if generatesPayables(inv.PaymentStatus, inv.FirstDueDate != nil, inv.Installments) {
		firstDue, err := time.Parse(DateLayout, *inv.FirstDueDate)
		if err != nil {
			return fmt.Errorf("parse first due date %q: %w", *inv.FirstDueDate, err)
		}
		if _, err := s.payables.CreateInstallmentsTx(ctx, tx, inv, firstDue, actorID); err != nil {
			return err
		}
		payablesCreated = true
	}

	if inv.PaymentStatus == PaymentPaid {
		receipt, err := time.Parse(DateLayout, inv.ReceiptDate)
		if err != nil {
			return fmt.Errorf("parse receipt date %q: %w", inv.ReceiptDate, err)
		}
		method := ""
		if inv.PaymentMethod != nil {
			method = *inv.PaymentMethod
		}
		if _, err := s.cashFlow.RecordTx(ctx, tx, inv.CompanyID, actorID, CashFlowInput{
			Type:            CashExit,
			Category:        inv.Category,
			Description:     fmt.Sprintf("NF-e %s - %s", inv.Ref(), inv.VendorName),
			Amount:          inv.TotalInvoice,
			TransactionDate: receipt,
			PaymentMethod:   method,
			VendorID:        inv.VendorID,
		}, CashFlowSource{InvoiceID: inv.ID}); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE nfe_invoices
		SET state = 'PROCESSED',
		    stock_updated = true, stock_updated_at = NOW(), stock_updated_by = $2,
		    accounts_payable_created = $3,
		    accounts_payable_created_at = CASE WHEN $3 THEN NOW() END,
		    updated_at = NOW()
		WHERE id = $1`,
		inv.ID, intPtr(actorID), payablesCreated,
	); err != nil {
		return fmt.Errorf("mark invoice %s processed: %w", inv.Ref(), err)
	}
	return nil
}

func (s *invoiceService) ProcessInvoice(ctx context.Context, companyID, invoiceID, actorID int) (*Invoice, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inv, err := loadInvoice(ctx, tx, companyID, invoiceID, true)
	if err != nil {
		return nil, err
	}
	if inv.State != InvoiceDraft {
		return nil, conflictf("invoice %s is %s; only DRAFT invoices can be processed", inv.Ref(), inv.State)
	}
	if err := s.processTx(ctx, tx, inv, actorID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit invoice processing: %w", err)
	}
	return s.GetInvoice(ctx, companyID, invoiceID)
}

func (s *invoiceService) UpdateInvoice(ctx context.Context, companyID, invoiceID int, input InvoiceInput) (*Invoice, error) {
	if err := s.prepare(ctx, companyID, &input); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inv, err := loadInvoice(ctx, tx, companyID, invoiceID, true)
	if err != nil {
		return nil, err
	}
	if !inv.Editable() {
		return nil, conflictf("invoice %s is %s and can no longer be edited; cancel it and create a new one", inv.Ref(), inv.State)
	}

	_, err = tx.Exec(ctx, `
		UPDATE nfe_invoices
		SET vendor_id = $2, nfe_number = $3, nfe_series = $4, access_key = $5, issue_date = $6, receipt_date = $7,
		    operation_type = $8, total_products = $9, total_tax = $10, total_freight = $11, total_insurance = $12,
		    total_discount = $13, total_other = $14, total_invoice = $15, icms_base = $16, icms_value = $17,
		    ipi_value = $18, pis_value = $19, cofins_value = $20, payment_status = $21, payment_method = $22,
		    installments = $23, first_due_date = $24, category = $25, notes = $26, updated_at = NOW()
		WHERE id = $1`,
		invoiceID, input.VendorID, input.Number, input.Series, toPtr(input.AccessKey),
		dateOnly(input.IssueDate), dateOnly(*input.ReceiptDate), input.OperationType,
		input.TotalProducts, input.TotalTax, input.TotalFreight, input.TotalInsurance,
		input.TotalDiscount, input.TotalOther, input.TotalInvoice, input.ICMSBase, input.ICMSValue,
		input.IPIValue, input.PISValue, input.COFINSValue, input.PaymentStatus, toPtr(input.PaymentMethod),
		input.Installments, datePtr(input.FirstDueDate), input.Category, toPtr(input.Notes),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, conflictf("invoice %s/%s already exists", input.Number, input.Series)
		}
		return nil, fmt.Errorf("update invoice %d: %w", invoiceID, err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM nfe_items WHERE invoice_id = $1", invoiceID); err != nil {
		return nil, fmt.Errorf("delete items of invoice %d: %w", invoiceID, err)
	}
	if err := insertItemsTx(ctx, tx, companyID, invoiceID, input.Items); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit invoice update: %w", err)
	}
	return s.GetInvoice(ctx, companyID, invoiceID)
}

func (s *invoiceService) CancelInvoice(ctx context.Context, companyID, invoiceID, actorID int, reason string) (*Invoice, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &ValidationError{Message: "cancellation reason is required", Fields: map[string]string{"reason": "required"}}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inv, err := loadInvoice(ctx, tx, companyID, invoiceID, true)
	if err != nil {
		return nil, err
	}
	if inv.State == InvoiceCancelled {
		return nil, conflictf("invoice %s is already cancelled", inv.Ref())
	}

	if inv.StockUpdated {
		if err := s.stock.ReverseInvoiceTx(ctx, tx, inv, reason, actorID); err != nil {
			return nil, err
		}
	}
	if _, err := s.payables.DeletePendingForInvoiceTx(ctx, tx, companyID, invoiceID); err != nil {
		return nil, err
	}
	if _, err := s.cashFlow.DeleteForInvoiceTx(ctx, tx, companyID, invoiceID); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE nfe_invoices
		SET state = 'CANCELLED', stock_updated = false,
		    cancellation_reason = $2, cancelled_at = NOW(), cancelled_by = $3, updated_at = NOW()
		WHERE id = $1`,
		invoiceID, reason, intPtr(actorID),
	); err != nil {
		return nil, fmt.Errorf("mark invoice %s cancelled: %w", inv.Ref(), err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit invoice cancellation: %w", err)
	}
	return s.GetInvoice(ctx, companyID, invoiceID)
}

func (s *invoiceService) DeleteInvoice(ctx context.Context, companyID, invoiceID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var state InvoiceState
	if err := tx.QueryRow(ctx,
		"SELECT state FROM nfe_invoices WHERE company_id = $1 AND id = $2 FOR UPDATE",
		companyID, invoiceID,
	).Scan(&state); err != nil {
		return notFoundOr(err, "invoice %d", invoiceID)
	}
	if state != InvoiceDraft {
		return conflictf("invoice %d is %s; only DRAFT invoices can be deleted", invoiceID, state)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM nfe_invoices WHERE id = $1", invoiceID); err != nil {
		return fmt.Errorf("delete invoice %d: %w", invoiceID, err)
	}
	return tx.Commit(ctx)
}

func (s *invoiceService) GetInvoice(ctx context.Context, companyID, invoiceID int) (*Invoice, error) {
	return loadInvoice(ctx, s.pool, companyID, invoiceID, false)
}

func (s *invoiceService) ListInvoices(ctx context.Context, companyID int, filter InvoiceFilter) ([]Invoice, error) {
	query := invoiceSelect + " WHERE i.company_id = $1"
	args := []any{companyID}
	if filter.State != "" {
		args = append(args, filter.State)
		query += fmt.Sprintf(" AND i.state = $%d", len(args))
	}
	if filter.PaymentStatus != "" {
		args = append(args, filter.PaymentStatus)
		query += fmt.Sprintf(" AND i.payment_status = $%d", len(args))
	}
	if filter.VendorID != 0 {
		args = append(args, filter.VendorID)
		query += fmt.Sprintf(" AND i.vendor_id = $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, dateOnly(*filter.From))
		query += fmt.Sprintf(" AND i.issue_date >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, dateOnly(*filter.To))
		query += fmt.Sprintf(" AND i.issue_date <= $%d", len(args))
	}
	query += " ORDER BY i.issue_date DESC, i.id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		var inv Invoice
		if err := scanInvoice(rows, &inv); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func datePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := dateOnly(*t)
	return &d
}
