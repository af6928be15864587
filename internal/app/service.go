package app

import (
	"context"
	"io"

	"cashflow/internal/ai"
	"cashflow/internal/core"
)

// Scope identifies the tenant and the caller of a company-scoped operation.
// Build it with ResolveScope so the tenant guard runs before any data access.
type Scope struct {
	CompanyID   int
	CompanyCode string
	Actor       core.Principal
}

// ApplicationService is the single interface all adapters (CLI, Web) call.
// It decouples presentation from business logic. Implementations must contain
// no fmt.Println and no display logic of any kind.
type ApplicationService interface {
	// ── identity ────────────────────────────────────────────────────────────

	// AuthenticateUser verifies credentials and returns a session on success.
	AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error)

	// GetUser returns the profile of an active user.
	GetUser(ctx context.Context, userID int) (*UserResult, error)

	// ChangePassword replaces the caller's own password after checking the current one.
	ChangePassword(ctx context.Context, userID int, currentPassword, newPassword string) error

	// ResolveScope loads the company and refuses principals of another tenant.
	ResolveScope(ctx context.Context, actor core.Principal, companyCode string) (Scope, error)

	// ── companies (superadmin) ──────────────────────────────────────────────

	ListCompanies(ctx context.Context) ([]core.Company, error)
	CreateCompany(ctx context.Context, input core.CompanyInput) (*core.Company, error)

	// ── invoices ────────────────────────────────────────────────────────────

	// CreateInvoice runs NF-e intake: a draft when req.SaveAsDraft, otherwise stock,
	// payables and cash flow are applied in the same transaction.
	CreateInvoice(ctx context.Context, sc Scope, req InvoiceRequest) (*core.Invoice, error)
	UpdateInvoice(ctx context.Context, sc Scope, invoiceID int, req InvoiceRequest) (*core.Invoice, error)
	ProcessInvoice(ctx context.Context, sc Scope, invoiceID int) (*core.Invoice, error)

	// CancelInvoice reverses a processed invoice. reason is required.
	CancelInvoice(ctx context.Context, sc Scope, invoiceID int, reason string) (*core.Invoice, error)
	DeleteInvoice(ctx context.Context, sc Scope, invoiceID int) error
	GetInvoice(ctx context.Context, sc Scope, invoiceID int) (*core.Invoice, error)
	ListInvoices(ctx context.Context, sc Scope, q InvoiceQuery) ([]core.Invoice, error)

	// ExtractInvoice asks the AI agent for an intake draft. Returns ErrAIUnavailable
	// when no agent is configured. Nothing is persisted.
	ExtractInvoice(ctx context.Context, sc Scope, text string) (*ai.InvoiceDraft, error)

	// ── payables ────────────────────────────────────────────────────────────

	CreatePayable(ctx context.Context, sc Scope, req PayableRequest) (*core.Payable, error)
	ListPayables(ctx context.Context, sc Scope, q PayableQuery) ([]core.Payable, error)
	GetPayable(ctx context.Context, sc Scope, payableID int) (*core.Payable, error)
	UpdatePayable(ctx context.Context, sc Scope, payableID int, req PayableRequest) (*core.Payable, error)
	PayPayable(ctx context.Context, sc Scope, payableID int, req PaymentRequest) (*core.Payable, error)
	DeletePayable(ctx context.Context, sc Scope, payableID int) error

	// ── budgets ─────────────────────────────────────────────────────────────

	CreateBudget(ctx context.Context, sc Scope, input core.BudgetInput) (*core.Budget, error)
	ListBudgets(ctx context.Context, sc Scope, year, month int) ([]core.Budget, error)
	GetBudget(ctx context.Context, sc Scope, budgetID int) (*core.Budget, error)
	UpdateBudget(ctx context.Context, sc Scope, budgetID int, input core.BudgetInput) (*core.Budget, error)
	DeleteBudget(ctx context.Context, sc Scope, budgetID int) error
	GetBudgetVsActual(ctx context.Context, sc Scope, year, month int) ([]core.BudgetVsActual, error)

	// ── cash flow ───────────────────────────────────────────────────────────

	CreateCashFlow(ctx context.Context, sc Scope, req CashFlowRequest) (*core.CashFlowTransaction, error)
	ListCashFlow(ctx context.Context, sc Scope, q CashFlowQuery) ([]core.CashFlowTransaction, error)
	GetCashFlow(ctx context.Context, sc Scope, transactionID int) (*core.CashFlowTransaction, error)
	DeleteCashFlow(ctx context.Context, sc Scope, transactionID int) error

	// GetDailySummary totals the ledger for date (YYYY-MM-DD, empty means today).
	GetDailySummary(ctx context.Context, sc Scope, date string) (*core.DailySummary, error)

	// ── cash register sessions ──────────────────────────────────────────────

	OpenSession(ctx context.Context, sc Scope, req OpenSessionRequest) (*core.CashSession, error)
	CloseSession(ctx context.Context, sc Scope, sessionID int, input core.CloseSessionInput) (*core.CashSession, error)
	GetSession(ctx context.Context, sc Scope, sessionID int) (*core.CashSession, error)

	// CurrentSession returns the open session of date (empty means today).
	CurrentSession(ctx context.Context, sc Scope, date string) (*core.CashSession, error)
	ListSessions(ctx context.Context, sc Scope, q DateRange) ([]core.CashSession, error)
	RecordWithdrawal(ctx context.Context, sc Scope, sessionID int, input core.WithdrawalInput) (*core.Withdrawal, error)
	ListWithdrawals(ctx context.Context, sc Scope, sessionID int) ([]core.Withdrawal, error)

	// ── master data ─────────────────────────────────────────────────────────

	ListVendors(ctx context.Context, sc Scope) ([]core.Vendor, error)
	GetVendor(ctx context.Context, sc Scope, vendorID int) (*core.Vendor, error)
	CreateVendor(ctx context.Context, sc Scope, input core.VendorInput) (*core.Vendor, error)
	UpdateVendor(ctx context.Context, sc Scope, vendorID int, input core.VendorInput) (*core.Vendor, error)
	DeactivateVendor(ctx context.Context, sc Scope, vendorID int) error

	ListCustomers(ctx context.Context, sc Scope, search string) ([]core.Customer, error)
	GetCustomer(ctx context.Context, sc Scope, customerID int) (*core.Customer, error)
	CreateCustomer(ctx context.Context, sc Scope, input core.CustomerInput) (*core.Customer, error)
	UpdateCustomer(ctx context.Context, sc Scope, customerID int, input core.CustomerInput) (*core.Customer, error)
	DeactivateCustomer(ctx context.Context, sc Scope, customerID int) error

	ListProducts(ctx context.Context, sc Scope, filter core.ProductFilter) ([]core.Product, error)
	GetProduct(ctx context.Context, sc Scope, productID int) (*core.Product, error)
	CreateProduct(ctx context.Context, sc Scope, input core.ProductInput) (*core.Product, error)
	UpdateProduct(ctx context.Context, sc Scope, productID int, input core.ProductInput) (*core.Product, error)
	DeactivateProduct(ctx context.Context, sc Scope, productID int) error

	// ListStockMovements returns a product's movement history, newest first.
	ListStockMovements(ctx context.Context, sc Scope, productID, limit int) ([]core.StockMovement, error)

	ListUsers(ctx context.Context, sc Scope) ([]core.User, error)
	CreateUser(ctx context.Context, sc Scope, input core.UserInput) (*core.User, error)
	UpdateUser(ctx context.Context, sc Scope, userID int, input core.UserUpdate) (*core.User, error)
	DeactivateUser(ctx context.Context, sc Scope, userID int) error

	// ── exports ─────────────────────────────────────────────────────────────

	// ExportCashFlow writes the filtered ledger as an XLSX workbook to w.
	ExportCashFlow(ctx context.Context, sc Scope, q CashFlowQuery, w io.Writer) error
	ExportPayables(ctx context.Context, sc Scope, q PayableQuery, w io.Writer) error
	ExportBudgetVsActual(ctx context.Context, sc Scope, year, month int, w io.Writer) error
	ExportSessions(ctx context.Context, sc Scope, q DateRange, w io.Writer) error
}
