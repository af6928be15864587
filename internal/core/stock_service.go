package core

import (
	"context"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StockService applies and reverses invoice-driven quantity changes. The Tx methods run
// inside the caller's transaction and never commit.
type StockService interface {
	// ApplyInvoiceTx locks the invoice's products, increments each by the floored item
	// quantity and appends one INVOICE_IN movement per item.
	ApplyInvoiceTx(ctx context.Context, tx pgx.Tx, inv *Invoice, actorID int) error

	// ReverseInvoiceTx verifies that every product still holds the quantity the invoice added
	// and only then debits it, appending one INVOICE_REVERSAL movement per item.
	ReverseInvoiceTx(ctx context.Context, tx pgx.Tx, inv *Invoice, reason string, actorID int) error

	// GetMovements returns the newest movements of a product.
	GetMovements(ctx context.Context, companyID, productID, limit int) ([]StockMovement, error)
}

type stockService struct {
	pool *pgxpool.Pool
}

// NewStockService constructs a StockService backed by PostgreSQL.
func NewStockService(pool *pgxpool.Pool) StockService {
	return &stockService{pool: pool}
}

type lockedProduct struct {
	id       int
	code     string
	name     string
	quantity int64
}

// lockProductsTx takes row locks on the distinct products referenced by items, in ascending
// id order so concurrent workflows over overlapping products cannot deadlock.
func lockProductsTx(ctx context.Context, tx pgx.Tx, companyID int, items []InvoiceItem) (map[int]*lockedProduct, error) {
	ids := make([]int, 0, len(items))
	for _, it := range items {
		if !slices.Contains(ids, it.ProductID) {
			ids = append(ids, it.ProductID)
		}
	}
	slices.Sort(ids)

	rows, err := tx.Query(ctx, `
		SELECT id, code, name, quantity
		FROM products
		WHERE company_id = $1 AND id = ANY($2)
		ORDER BY id
		FOR UPDATE`,
		companyID, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	locked := make(map[int]*lockedProduct, len(ids))
	for rows.Next() {
		p := &lockedProduct{}
		if err := rows.Scan(&p.id, &p.code, &p.name, &p.quantity); err != nil {
			return nil, fmt.Errorf("scan locked product: %w", err)
		}
		locked[p.id] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}

	for _, id := range ids {
		if _, ok := locked[id]; !ok {
			return nil, invalidf("product %d not found for company %d", id, companyID)
		}
	}
	return locked, nil
}

func (s *stockService) ApplyInvoiceTx(ctx context.Context, tx pgx.Tx, inv *Invoice, actorID int) error {
	locked, err := lockProductsTx(ctx, tx, inv.CompanyID, inv.Items)
	if err != nil {
		return err
	}

	for _, it := range inv.Items {
		delta := StockIncrement(it.Quantity)
		p := locked[it.ProductID]
		p.quantity += delta

		if _, err := tx.Exec(ctx,
			"UPDATE products SET quantity = $1, updated_at = NOW() WHERE id = $2",
			p.quantity, p.id,
		); err != nil {
			return fmt.Errorf("failed to increment stock for product %s: %w", p.code, err)
		}

		if err := insertMovementTx(ctx, tx, inv, p, MovementInvoiceIn, delta, actorID,
			fmt.Sprintf("NF-e %s received: item %d", inv.Ref(), it.Sequence),
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *stockService) ReverseInvoiceTx(ctx context.Context, tx pgx.Tx, inv *Invoice, reason string, actorID int) error {
	locked, err := lockProductsTx(ctx, tx, inv.CompanyID, inv.Items)
	if err != nil {
		return err
	}

	// Sufficiency is checked for the whole invoice before any debit. Items sharing a product
	// are summed so the check holds for the aggregate.
	required := make(map[int]int64, len(locked))
	for _, it := range inv.Items {
		required[it.ProductID] += StockIncrement(it.Quantity)
	}
	for _, it := range inv.Items {
		p := locked[it.ProductID]
		if need := required[p.id]; p.quantity < need {
			return &InsufficientStockError{
				ProductID:   p.id,
				ProductCode: p.code,
				ProductName: p.name,
				Available:   p.quantity,
				Required:    need,
			}
		}
	}

	for _, it := range inv.Items {
		delta := StockIncrement(it.Quantity)
		p := locked[it.ProductID]
		p.quantity -= delta

		if _, err := tx.Exec(ctx,
			"UPDATE products SET quantity = $1, updated_at = NOW() WHERE id = $2",
			p.quantity, p.id,
		); err != nil {
			return fmt.Errorf("failed to debit stock for product %s: %w", p.code, err)
		}

		if err := insertMovementTx(ctx, tx, inv, p, MovementInvoiceReversal, -delta, actorID,
			fmt.Sprintf("NF-e %s cancelled: item %d. Reason: %s", inv.Ref(), it.Sequence, reason),
		); err != nil {
			return err
		}
	}
	return nil
}

func insertMovementTx(ctx context.Context, tx pgx.Tx, inv *Invoice, p *lockedProduct, mt MovementType, qty int64, actorID int, notes string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO stock_movements (company_id, product_id, invoice_id, movement_type, quantity, balance_after, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		inv.CompanyID, p.id, inv.ID, mt, qty, p.quantity, notes, intPtr(actorID),
	)
	if err != nil {
		return fmt.Errorf("failed to insert %s movement for product %s: %w", mt, p.code, err)
	}
	return nil
}

func (s *stockService) GetMovements(ctx context.Context, companyID, productID, limit int) ([]StockMovement, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT sm.id, sm.company_id, sm.product_id, p.code, sm.invoice_id, sm.movement_type,
		       sm.quantity, sm.balance_after, sm.notes, sm.created_by, sm.created_at
		FROM stock_movements sm
		JOIN products p ON p.id = sm.product_id
		WHERE sm.company_id = $1 AND sm.product_id = $2
		ORDER BY sm.created_at DESC, sm.id DESC
		LIMIT $3`,
		companyID, productID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get stock movements: %w", err)
	}
	defer rows.Close()

	var movements []StockMovement
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(&m.ID, &m.CompanyID, &m.ProductID, &m.ProductCode, &m.InvoiceID, &m.MovementType,
			&m.Quantity, &m.BalanceAfter, &m.Notes, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan stock movement: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}
