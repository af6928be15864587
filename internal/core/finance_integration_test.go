package core_test

import (
	"context"
	"errors"
	"testing"

	"cashflow/internal/core"

	"github.com/shopspring/decimal"
)

func TestPayable_PaymentLifecycle(t *testing.T) {
	pool := setupTestDB(t)
	svc := newServices(pool)
	ctx := context.Background()

	p, err := svc.payables.CreatePayable(ctx, companyA, userA, core.PayableInput{
		VendorID:    vendorA,
		Description: "Office rent March",
		Category:    "Rent",
		Amount:      decimal.RequireFromString("1000.00"),
		DueDate:     date(t, "2024-03-10"),
	})
	if err != nil {
		t.Fatalf("CreatePayable: %v", err)
	}
	if p.Status != core.PayablePending || !p.Overdue {
		t.Errorf("expected pending and overdue (due in the past), got %s overdue=%v", p.Status, p.Overdue)
	}

	partial, err := svc.payables.PayPayable(ctx, companyA, p.ID, userA, core.PaymentInput{
		Amount: decimal.RequireFromString("400.00"),
		PaidAt: date(t, "2024-03-10"),
	})
	if err != nil {
		t.Fatalf("PayPayable partial: %v", err)
	}
	if partial.Status != core.PayablePartiallyPaid || !partial.Outstanding().Equal(decimal.RequireFromString("600.00")) {
		t.Errorf("expected partially_paid with 600 outstanding, got %s / %s", partial.Status, partial.Outstanding())
	}

	if _, err := svc.payables.PayPayable(ctx, companyA, p.ID, userA, core.PaymentInput{
		Amount: decimal.RequireFromString("600.01"),
		PaidAt: date(t, "2024-03-11"),
	}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("expected validation error for overpayment, got %v", err)
	}

	paid, err := svc.payables.PayPayable(ctx, companyA, p.ID, userA, core.PaymentInput{
		Amount: decimal.RequireFromString("600.00"),
		PaidAt: date(t, "2024-03-12"),
	})
	if err != nil {
		t.Fatalf("PayPayable rest: %v", err)
	}
	if paid.Status != core.PayablePaid || paid.Overdue {
		t.Errorf("expected paid and not overdue, got %s overdue=%v", paid.Status, paid.Overdue)
	}

	exits, err := svc.cashFlow.GetTransactions(ctx, companyA, core.CashFlowFilter{Type: core.CashExit, Category: "Rent"})
	if err != nil {
		t.Fatalf("GetTransactions: %v", err)
	}
	if len(exits) != 2 {
		t.Fatalf("expected 2 payment exits, got %d", len(exits))
	}
	for _, e := range exits {
		if e.SourcePayableID == nil || *e.SourcePayableID != p.ID {
			t.Errorf("expected exit %d linked to payable %d", e.ID, p.ID)
		}
		if err := svc.cashFlow.DeleteTransaction(ctx, companyA, e.ID); !errors.Is(err, core.ErrConflict) {
			t.Errorf("expected generated exit to be protected, got %v", err)
		}
	}

	if _, err := svc.payables.PayPayable(ctx, companyA, p.ID, userA, core.PaymentInput{
		Amount: decimal.NewFromInt(1), PaidAt: date(t, "2024-03-12"),
	}); !errors.Is(err, core.ErrConflict) {
		t.Errorf("expected conflict paying a paid payable, got %v", err)
	}
	if err := svc.payables.DeletePayable(ctx, companyA, p.ID); !errors.Is(err, core.ErrConflict) {
		t.Errorf("expected conflict deleting a paid payable, got %v", err)
	}
}

func TestPayable_ManualEditAndDelete(t *testing.T) {
	pool := setupTestDB(t)
	svc := newServices(pool)
	ctx := context.Background()

	p, err := svc.payables.CreatePayable(ctx, companyA, userA, core.PayableInput{
		Description: "Internet",
		Amount:      decimal.RequireFromString("99.90"),
		DueDate:     date(t, "2099-01-05"),
	})
	if err != nil {
		t.Fatalf("CreatePayable: %v", err)
	}
	if p.Category != core.DefaultPurchaseCategory || p.Overdue {
		t.Errorf("unexpected defaults: category=%s overdue=%v", p.Category, p.Overdue)
	}

	updated, err := svc.payables.UpdatePayable(ctx, companyA, p.ID, core.PayableInput{
		Description: "Internet (fiber)",
		Category:    "Utilities",
		Amount:      decimal.RequireFromString("129.90"),
		DueDate:     date(t, "2099-01-10"),
	})
	if err != nil {
		t.Fatalf("UpdatePayable: %v", err)
	}
	if updated.Category != "Utilities" || updated.DueDate != "2099-01-10" {
		t.Errorf("update not applied: %+v", updated)
	}

	if _, err := svc.payables.GetPayable(ctx, companyB, p.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected not found from company B, got %v", err)
	}
	if err := svc.payables.DeletePayable(ctx, companyA, p.ID); err != nil {
		t.Fatalf("DeletePayable: %v", err)
	}
}

func TestPayable_InvoiceInstallmentsBelongToReversal(t *testing.T) {
	pool := setupTestDB(t)
	svc := newServices(pool)
	ctx := context.Background()

	input := paidInvoice(t, "1100", item(productBolt, "2", "50.00"))
	input.PaymentStatus = core.PaymentPending
	input.Installments = 2
	firstDue := date(t, "2024-06-01")
	input.FirstDueDate = &firstDue
	inv, err := svc.invoices.CreateInvoice(ctx, companyA, userA, input)
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	payables, err := svc.payables.GetPayables(ctx, companyA, core.PayableFilter{SourceInvoiceID: inv.ID})
	if err != nil || len(payables) != 2 {
		t.Fatalf("GetPayables: %v (%d rows)", err, len(payables))
	}
	if err := svc.payables.DeletePayable(ctx, companyA, payables[0].ID); !errors.Is(err, core.ErrConflict) {
		t.Errorf("expected conflict deleting invoice installment, got %v", err)
	}
	if _, err := svc.payables.UpdatePayable(ctx, companyA, payables[0].ID, core.PayableInput{
		Description: "x", Amount: decimal.NewFromInt(1), DueDate: firstDue,
	}); !errors.Is(err, core.ErrConflict) {
		t.Errorf("expected conflict editing invoice installment, got %v", err)
	}
}

func TestBudget_VsActual(t *testing.T) {
	pool := setupTestDB(t)
	svc := newServices(pool)
	ctx := context.Background()

	if _, err := svc.budgets.CreateBudget(ctx, companyA, core.BudgetInput{
		Category: core.DefaultPurchaseCategory, Year: 2024, Month: 1, PlannedAmount: decimal.NewFromInt(200),
	}); err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}
	if _, err := svc.budgets.CreateBudget(ctx, companyA, core.BudgetInput{
		Category: core.DefaultPurchaseCategory, Year: 2024, Month: 1, PlannedAmount: decimal.NewFromInt(1),
	}); !errors.Is(err, core.ErrConflict) {
		t.Errorf("expected conflict for duplicate budget, got %v", err)
	}

	// Paid invoice posts a 53.50 exit dated 2024-01-08.
	if _, err := svc.invoices.CreateInvoice(ctx, companyA, userA, paidInvoice(t, "1200", item(productWidget, "10.7", "5.00"))); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	manualCash(t, svc, core.CashExit, "20.00", "2024-01-15")

	report, err := svc.budgets.GetBudgetVsActual(ctx, companyA, 2024, 1)
	if err != nil {
		t.Fatalf("GetBudgetVsActual: %v", err)
	}
	byCategory := map[string]core.BudgetVsActual{}
	for _, r := range report {
		byCategory[r.Category] = r
	}
	purchases := byCategory[core.DefaultPurchaseCategory]
	if !purchases.Actual.Equal(decimal.RequireFromString("53.50")) || !purchases.Variance.Equal(decimal.RequireFromString("146.50")) {
		t.Errorf("unexpected purchases line: %+v", purchases)
	}
	sales, ok := byCategory["Sales"]
	if !ok || !sales.Planned.IsZero() || !sales.Actual.Equal(decimal.RequireFromString("20.00")) {
		t.Errorf("expected unbudgeted Sales exit line, got %+v", sales)
	}

	if _, err := svc.budgets.GetBudgetVsActual(ctx, companyA, 2024, 13); !errors.Is(err, core.ErrValidation) {
		t.Errorf("expected validation error for month 13, got %v", err)
	}
}

func TestCashFlow_DailySummary(t *testing.T) {
	pool := setupTestDB(t)
	svc := newServices(pool)
	ctx := context.Background()

	manualCash(t, svc, core.CashEntry, "120.00", "2024-07-01")
	manualCash(t, svc, core.CashExit, "20.00", "2024-07-01")

	sum, err := svc.cashFlow.GetDailySummary(ctx, companyA, date(t, "2024-07-01"))
	if err != nil {
		t.Fatalf("GetDailySummary: %v", err)
	}
	if sum.Date != "2024-07-01" || !sum.Net.Equal(decimal.NewFromInt(100)) {
		t.Errorf("unexpected summary %+v", sum)
	}

	other, err := svc.cashFlow.GetDailySummary(ctx, companyB, date(t, "2024-07-01"))
	if err != nil {
		t.Fatalf("GetDailySummary company B: %v", err)
	}
	if !other.Entries.IsZero() || !other.Exits.IsZero() {
		t.Errorf("expected company B to see nothing, got %+v", other)
	}

	_, err = svc.cashFlow.CreateTransaction(ctx, companyA, userA, core.CashFlowInput{
		Type: core.CashEntry, Category: "Sales", Description: "foreign vendor", Amount: decimal.NewFromInt(1),
		TransactionDate: date(t, "2024-07-01"), VendorID: vendorB,
	})
	if !errors.Is(err, core.ErrValidation) {
		t.Errorf("expected validation error for another company's vendor, got %v", err)
	}
}

func TestUsers_Authenticate(t *testing.T) {
	pool := setupTestDB(t)
	users := core.NewUserService(pool)
	ctx := context.Background()

	u, err := users.CreateUser(ctx, companyA, core.UserInput{
		Username: "maria",
		Email:    "maria@acme.test",
		Password: "s3cret-pass",
		Role:     core.RoleManager,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.PasswordHash == "s3cret-pass" {
		t.Error("expected password to be hashed")
	}

	if _, err := users.Authenticate(ctx, "maria", "s3cret-pass"); err != nil {
		t.Errorf("Authenticate: %v", err)
	}
	if _, err := users.Authenticate(ctx, "maria", "wrong"); !errors.Is(err, core.ErrInvalidCredentials) {
		t.Errorf("expected invalid credentials, got %v", err)
	}
	if _, err := users.Authenticate(ctx, "nobody", "x"); !errors.Is(err, core.ErrInvalidCredentials) {
		t.Errorf("expected invalid credentials for unknown user, got %v", err)
	}

	if err := users.ChangePassword(ctx, u.ID, "s3cret-pass", "another-pass"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if err := users.DeactivateUser(ctx, companyA, u.ID); err != nil {
		t.Fatalf("DeactivateUser: %v", err)
	}
	if _, err := users.Authenticate(ctx, "maria", "another-pass"); !errors.Is(err, core.ErrInvalidCredentials) {
		t.Errorf("expected deactivated user to be refused, got %v", err)
	}
}

func TestMasterData_CompanyIsolation(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	vendors := core.NewVendorService(pool)
	products := core.NewProductService(pool)

	v, err := vendors.CreateVendor(ctx, companyA, core.VendorInput{Name: "Fornecedor Gama", Document: "99888777000166"})
	if err != nil {
		t.Fatalf("CreateVendor: %v", err)
	}
	if _, err := vendors.CreateVendor(ctx, companyA, core.VendorInput{Name: "Dup", Document: "99888777000166"}); !errors.Is(err, core.ErrConflict) {
		t.Errorf("expected conflict for duplicate document, got %v", err)
	}
	if _, err := vendors.GetVendor(ctx, companyB, v.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected not found from company B, got %v", err)
	}

	p, err := products.CreateProduct(ctx, companyA, core.ProductInput{Code: "P900", Name: "Gadget", MinStock: 5})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if p.Quantity != 0 {
		t.Errorf("expected new product quantity 0, got %d", p.Quantity)
	}
	low, err := products.GetProducts(ctx, companyA, core.ProductFilter{LowStockOnly: true})
	if err != nil {
		t.Fatalf("GetProducts: %v", err)
	}
	found := false
	for _, lp := range low {
		if lp.ID == p.ID {
			found = true
		}
		if lp.CompanyID != companyA {
			t.Errorf("product %d leaked from company %d", lp.ID, lp.CompanyID)
		}
	}
	if !found {
		t.Error("expected Gadget in the low-stock list")
	}
}
