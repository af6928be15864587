package core_test

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"cashflow/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// Seeded ids. TRUNCATE ... RESTART IDENTITY makes them deterministic.
const (
	companyA = 1
	companyB = 2

	userA = 1
	userB = 2

	vendorA = 1
	vendorB = 2

	productWidget = 1 // company A, starts at 0
	productBolt   = 2 // company A, starts at 20
	productOther  = 3 // company B
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	files, err := filepath.Glob("../../migrations/*.sql")
	if err != nil || len(files) == 0 {
		t.Fatalf("Failed to find migrations: %v", err)
	}
	sort.Strings(files)
	for _, f := range files {
		sql, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("Failed to read %s: %v", f, err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			t.Fatalf("Failed to apply %s: %v", filepath.Base(f), err)
		}
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE cash_withdrawals, cash_register_sessions, budgets, cash_flow_transactions,
		               accounts_payable, stock_movements, nfe_items, nfe_invoices,
		               products, customers, vendors, users, companies
		RESTART IDENTITY CASCADE;

		INSERT INTO companies (company_code, name) VALUES
		('ACME', 'Acme Comercio Ltda'),
		('OTHER', 'Outra Empresa SA');

		INSERT INTO users (company_id, username, email, password_hash, role) VALUES
		(1, 'operator.a', 'op@acme.test', 'x', 'operator'),
		(2, 'operator.b', 'op@other.test', 'x', 'operator');

		INSERT INTO vendors (company_id, name, document) VALUES
		(1, 'Fornecedor Alfa', '11222333000181'),
		(2, 'Fornecedor Beta', '44555666000199');

		INSERT INTO products (company_id, code, name, quantity) VALUES
		(1, 'P001', 'Widget', 0),
		(1, 'P002', 'Bolt', 20),
		(2, 'P001', 'Other Widget', 0);
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}

type services struct {
	invoices core.InvoiceService
	stock    core.StockService
	payables core.PayableService
	cashFlow core.CashFlowService
	sessions core.CashSessionService
	budgets  core.BudgetService
	products core.ProductService
}

func newServices(pool *pgxpool.Pool) services {
	stock := core.NewStockService(pool)
	cashFlow := core.NewCashFlowService(pool)
	payables := core.NewPayableService(pool, cashFlow)
	return services{
		invoices: core.NewInvoiceService(pool, stock, payables, cashFlow),
		stock:    stock,
		payables: payables,
		cashFlow: cashFlow,
		sessions: core.NewCashSessionService(pool),
		budgets:  core.NewBudgetService(pool),
		products: core.NewProductService(pool),
	}
}

func productQty(t *testing.T, pool *pgxpool.Pool, productID int) int64 {
	t.Helper()
	var q int64
	if err := pool.QueryRow(context.Background(), "SELECT quantity FROM products WHERE id = $1", productID).Scan(&q); err != nil {
		t.Fatalf("read product %d quantity: %v", productID, err)
	}
	return q
}

func countRows(t *testing.T, pool *pgxpool.Pool, query string, args ...any) int {
	t.Helper()
	var n int
	if err := pool.QueryRow(context.Background(), query, args...).Scan(&n); err != nil {
		t.Fatalf("count %q: %v", query, err)
	}
	return n
}
