package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cashflow/internal/ai"
	"cashflow/internal/core"
	"cashflow/internal/lock"
	"cashflow/internal/logger"
	"cashflow/internal/report"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrAIUnavailable is returned by ExtractInvoice when no OpenAI key is configured.
var ErrAIUnavailable = errors.New("AI extraction is not configured")

type appService struct {
	companies core.CompanyService
	users     core.UserService
	vendors   core.VendorService
	customers core.CustomerService
	products  core.ProductService
	stock     core.StockService
	invoices  core.InvoiceService
	payables  core.PayableService
	budgets   core.BudgetService
	cashFlow  core.CashFlowService
	sessions  core.CashSessionService

	agent  ai.Extractor
	locker lock.Locker
	log    logrus.FieldLogger
	tracer trace.Tracer
	now    func() time.Time
}

// NewAppService wires the PostgreSQL-backed services into an ApplicationService.
// agent may be nil (AI extraction disabled); locker may be lock.Noop{}.
func NewAppService(pool *pgxpool.Pool, agent ai.Extractor, locker lock.Locker, log logrus.FieldLogger) ApplicationService {
	cashFlow := core.NewCashFlowService(pool)
	stock := core.NewStockService(pool)
	payables := core.NewPayableService(pool, cashFlow)
	if locker == nil {
		locker = lock.Noop{}
	}
	return &appService{
		companies: core.NewCompanyService(pool),
		users:     core.NewUserService(pool),
		vendors:   core.NewVendorService(pool),
		customers: core.NewCustomerService(pool),
		products:  core.NewProductService(pool),
		stock:     stock,
		invoices:  core.NewInvoiceService(pool, stock, payables, cashFlow),
		payables:  payables,
		budgets:   core.NewBudgetService(pool),
		cashFlow:  cashFlow,
		sessions:  core.NewCashSessionService(pool),
		agent:     agent,
		locker:    locker,
		log:       log,
		tracer:    otel.Tracer("cashflow/app"),
		now:       time.Now,
	}
}

// ── identity ──────────────────────────────────────────────────────────────────

// AuthenticateUser verifies credentials and returns a session on success.
func (s *appService) AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error) {
	return observe(ctx, s, Scope{}, "AuthenticateUser", username, func(ctx context.Context) (*UserSession, error) {
		u, err := s.users.Authenticate(ctx, username, password)
		if err != nil {
			return nil, err
		}
		company, err := s.companies.GetCompany(ctx, u.CompanyID)
		if err != nil {
			return nil, err
		}
		return &UserSession{User: u, Principal: u.Principal(), CompanyCode: company.CompanyCode}, nil
	})
}

// GetUser returns the profile of an active user.
func (s *appService) GetUser(ctx context.Context, userID int) (*UserResult, error) {
	return observe(ctx, s, Scope{}, "GetUser", userID, func(ctx context.Context) (*UserResult, error) {
		u, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !u.IsActive {
			return nil, fmt.Errorf("user id=%d is inactive: %w", userID, core.ErrForbidden)
		}
		company, err := s.companies.GetCompany(ctx, u.CompanyID)
		if err != nil {
			return nil, err
		}
		return &UserResult{User: u, Principal: u.Principal(), CompanyCode: company.CompanyCode}, nil
	})
}

func (s *appService) ChangePassword(ctx context.Context, userID int, currentPassword, newPassword string) error {
	return observeErr(ctx, s, Scope{}, "ChangePassword", userID, func(ctx context.Context) error {
		return s.users.ChangePassword(ctx, userID, currentPassword, newPassword)
	})
}

// ResolveScope loads the company and refuses principals of another tenant.
func (s *appService) ResolveScope(ctx context.Context, actor core.Principal, companyCode string) (Scope, error) {
	company, err := s.companies.GetCompanyByCode(ctx, companyCode)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			logger.LogError(logger.FromContext(ctx, s.log), "app", "ResolveScope", companyCode, nil, err)
		}
		return Scope{}, err
	}
	if err := authorizeCompany(actor, company); err != nil {
		return Scope{}, err
	}
	return Scope{CompanyID: company.ID, CompanyCode: company.CompanyCode, Actor: actor}, nil
}

func authorizeCompany(actor core.Principal, company *core.Company) error {
	if !actor.CanAccessCompany(company.ID) {
		return fmt.Errorf("company %s: %w", company.CompanyCode, core.ErrForbidden)
	}
	if !company.IsActive && !actor.IsSuperuser() {
		return fmt.Errorf("company %s is inactive: %w", company.CompanyCode, core.ErrForbidden)
	}
	return nil
}

// ── companies ─────────────────────────────────────────────────────────────────

func (s *appService) ListCompanies(ctx context.Context) ([]core.Company, error) {
	return observe(ctx, s, Scope{}, "ListCompanies", nil, s.companies.ListCompanies)
}

func (s *appService) CreateCompany(ctx context.Context, input core.CompanyInput) (*core.Company, error) {
	return observe(ctx, s, Scope{}, "CreateCompany", input.CompanyCode, func(ctx context.Context) (*core.Company, error) {
		return s.companies.CreateCompany(ctx, input)
	})
}

// ── invoices ──────────────────────────────────────────────────────────────────

// CreateInvoice runs intake under the tenant's invoice lock.
func (s *appService) CreateInvoice(ctx context.Context, sc Scope, req InvoiceRequest) (*core.Invoice, error) {
	return observe(ctx, s, sc, "CreateInvoice", req.Number, func(ctx context.Context) (*core.Invoice, error) {
		input, err := req.toInput()
		if err != nil {
			return nil, err
		}
		var inv *core.Invoice
		err = s.withLock(ctx, lock.TenantKey("invoice", sc.CompanyCode), func(ctx context.Context) error {
			inv, err = s.invoices.CreateInvoice(ctx, sc.CompanyID, sc.Actor.UserID, input)
			return err
		})
		return inv, err
	})
}

func (s *appService) UpdateInvoice(ctx context.Context, sc Scope, invoiceID int, req InvoiceRequest) (*core.Invoice, error) {
	return observe(ctx, s, sc, "UpdateInvoice", invoiceID, func(ctx context.Context) (*core.Invoice, error) {
		input, err := req.toInput()
		if err != nil {
			return nil, err
		}
		var inv *core.Invoice
		err = s.withLock(ctx, lock.TenantKey("invoice", sc.CompanyCode), func(ctx context.Context) error {
			inv, err = s.invoices.UpdateInvoice(ctx, sc.CompanyID, invoiceID, input)
			return err
		})
		return inv, err
	})
}

func (s *appService) ProcessInvoice(ctx context.Context, sc Scope, invoiceID int) (*core.Invoice, error) {
	return observe(ctx, s, sc, "ProcessInvoice", invoiceID, func(ctx context.Context) (*core.Invoice, error) {
		var inv *core.Invoice
		err := s.withLock(ctx, lock.TenantKey("invoice", sc.CompanyCode), func(ctx context.Context) (err error) {
			inv, err = s.invoices.ProcessInvoice(ctx, sc.CompanyID, invoiceID, sc.Actor.UserID)
			return err
		})
		return inv, err
	})
}

// CancelInvoice reverses stock, pending payables and the cash-flow exit under the invoice lock.
func (s *appService) CancelInvoice(ctx context.Context, sc Scope, invoiceID int, reason string) (*core.Invoice, error) {
	return observe(ctx, s, sc, "CancelInvoice", invoiceID, func(ctx context.Context) (*core.Invoice, error) {
		var inv *core.Invoice
		err := s.withLock(ctx, lock.TenantKey("invoice", sc.CompanyCode), func(ctx context.Context) (err error) {
			inv, err = s.invoices.CancelInvoice(ctx, sc.CompanyID, invoiceID, sc.Actor.UserID, reason)
			return err
		})
		return inv, err
	})
}

func (s *appService) DeleteInvoice(ctx context.Context, sc Scope, invoiceID int) error {
	return observeErr(ctx, s, sc, "DeleteInvoice", invoiceID, func(ctx context.Context) error {
		return s.withLock(ctx, lock.TenantKey("invoice", sc.CompanyCode), func(ctx context.Context) error {
			return s.invoices.DeleteInvoice(ctx, sc.CompanyID, invoiceID)
		})
	})
}

func (s *appService) GetInvoice(ctx context.Context, sc Scope, invoiceID int) (*core.Invoice, error) {
	return observe(ctx, s, sc, "GetInvoice", invoiceID, func(ctx context.Context) (*core.Invoice, error) {
		return s.invoices.GetInvoice(ctx, sc.CompanyID, invoiceID)
	})
}

func (s *appService) ListInvoices(ctx context.Context, sc Scope, q InvoiceQuery) ([]core.Invoice, error) {
	return observe(ctx, s, sc, "ListInvoices", q, func(ctx context.Context) ([]core.Invoice, error) {
		filter, err := q.toFilter()
		if err != nil {
			return nil, err
		}
		return s.invoices.ListInvoices(ctx, sc.CompanyID, filter)
	})
}

// ExtractInvoice sends the document text with the tenant's vendor and product catalogs to the agent.
func (s *appService) ExtractInvoice(ctx context.Context, sc Scope, text string) (*ai.InvoiceDraft, error) {
	if s.agent == nil {
		return nil, ErrAIUnavailable
	}
	return observe(ctx, s, sc, "ExtractInvoice", len(text), func(ctx context.Context) (*ai.InvoiceDraft, error) {
		if text == "" {
			return nil, &core.ValidationError{Fields: map[string]string{"text": "required"}}
		}
		vendors, err := s.vendors.GetVendors(ctx, sc.CompanyID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch vendors: %w", err)
		}
		products, err := s.products.GetProducts(ctx, sc.CompanyID, core.ProductFilter{})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch products: %w", err)
		}
		return s.agent.ExtractInvoice(ctx, text, vendors, products)
	})
}

// ── payables ──────────────────────────────────────────────────────────────────

func (s *appService) CreatePayable(ctx context.Context, sc Scope, req PayableRequest) (*core.Payable, error) {
	return observe(ctx, s, sc, "CreatePayable", req.Description, func(ctx context.Context) (*core.Payable, error) {
		input, err := req.toInput()
		if err != nil {
			return nil, err
		}
		return s.payables.CreatePayable(ctx, sc.CompanyID, sc.Actor.UserID, input)
	})
}

func (s *appService) ListPayables(ctx context.Context, sc Scope, q PayableQuery) ([]core.Payable, error) {
	return observe(ctx, s, sc, "ListPayables", q, func(ctx context.Context) ([]core.Payable, error) {
		filter, err := q.toFilter()
		if err != nil {
			return nil, err
		}
		return s.payables.GetPayables(ctx, sc.CompanyID, filter)
	})
}

func (s *appService) GetPayable(ctx context.Context, sc Scope, payableID int) (*core.Payable, error) {
	return observe(ctx, s, sc, "GetPayable", payableID, func(ctx context.Context) (*core.Payable, error) {
		return s.payables.GetPayable(ctx, sc.CompanyID, payableID)
	})
}

func (s *appService) UpdatePayable(ctx context.Context, sc Scope, payableID int, req PayableRequest) (*core.Payable, error) {
	return observe(ctx, s, sc, "UpdatePayable", payableID, func(ctx context.Context) (*core.Payable, error) {
		input, err := req.toInput()
		if err != nil {
			return nil, err
		}
		return s.payables.UpdatePayable(ctx, sc.CompanyID, payableID, input)
	})
}

// PayPayable settles a payable and posts the matching cash-flow exit.
func (s *appService) PayPayable(ctx context.Context, sc Scope, payableID int, req PaymentRequest) (*core.Payable, error) {
	return observe(ctx, s, sc, "PayPayable", payableID, func(ctx context.Context) (*core.Payable, error) {
		input, err := req.toInput(s.now())
		if err != nil {
			return nil, err
		}
		var p *core.Payable
		err = s.withLock(ctx, lock.TenantKey("payable", sc.CompanyCode, fmt.Sprint(payableID)), func(ctx context.Context) error {
			p, err = s.payables.PayPayable(ctx, sc.CompanyID, payableID, sc.Actor.UserID, input)
			return err
		})
		return p, err
	})
}

func (s *appService) DeletePayable(ctx context.Context, sc Scope, payableID int) error {
	return observeErr(ctx, s, sc, "DeletePayable", payableID, func(ctx context.Context) error {
		return s.payables.DeletePayable(ctx, sc.CompanyID, payableID)
	})
}

// ── budgets ───────────────────────────────────────────────────────────────────

func (s *appService) CreateBudget(ctx context.Context, sc Scope, input core.BudgetInput) (*core.Budget, error) {
	return observe(ctx, s, sc, "CreateBudget", input, func(ctx context.Context) (*core.Budget, error) {
		return s.budgets.CreateBudget(ctx, sc.CompanyID, input)
	})
}

func (s *appService) ListBudgets(ctx context.Context, sc Scope, year, month int) ([]core.Budget, error) {
	return observe(ctx, s, sc, "ListBudgets", nil, func(ctx context.Context) ([]core.Budget, error) {
		return s.budgets.GetBudgets(ctx, sc.CompanyID, year, month)
	})
}

func (s *appService) GetBudget(ctx context.Context, sc Scope, budgetID int) (*core.Budget, error) {
	return observe(ctx, s, sc, "GetBudget", budgetID, func(ctx context.Context) (*core.Budget, error) {
		return s.budgets.GetBudget(ctx, sc.CompanyID, budgetID)
	})
}

func (s *appService) UpdateBudget(ctx context.Context, sc Scope, budgetID int, input core.BudgetInput) (*core.Budget, error) {
	return observe(ctx, s, sc, "UpdateBudget", budgetID, func(ctx context.Context) (*core.Budget, error) {
		return s.budgets.UpdateBudget(ctx, sc.CompanyID, budgetID, input)
	})
}

func (s *appService) DeleteBudget(ctx context.Context, sc Scope, budgetID int) error {
	return observeErr(ctx, s, sc, "DeleteBudget", budgetID, func(ctx context.Context) error {
		return s.budgets.DeleteBudget(ctx, sc.CompanyID, budgetID)
	})
}

func (s *appService) GetBudgetVsActual(ctx context.Context, sc Scope, year, month int) ([]core.BudgetVsActual, error) {
	return observe(ctx, s, sc, "GetBudgetVsActual", nil, func(ctx context.Context) ([]core.BudgetVsActual, error) {
		return s.budgets.GetBudgetVsActual(ctx, sc.CompanyID, year, month)
	})
}

// ── cash flow ─────────────────────────────────────────────────────────────────

func (s *appService) CreateCashFlow(ctx context.Context, sc Scope, req CashFlowRequest) (*core.CashFlowTransaction, error) {
	return observe(ctx, s, sc, "CreateCashFlow", req.Description, func(ctx context.Context) (*core.CashFlowTransaction, error) {
		input, err := req.toInput(s.now())
		if err != nil {
			return nil, err
		}
		return s.cashFlow.CreateTransaction(ctx, sc.CompanyID, sc.Actor.UserID, input)
	})
}

func (s *appService) ListCashFlow(ctx context.Context, sc Scope, q CashFlowQuery) ([]core.CashFlowTransaction, error) {
	return observe(ctx, s, sc, "ListCashFlow", q, func(ctx context.Context) ([]core.CashFlowTransaction, error) {
		filter, err := q.toFilter()
		if err != nil {
			return nil, err
		}
		return s.cashFlow.GetTransactions(ctx, sc.CompanyID, filter)
	})
}

func (s *appService) GetCashFlow(ctx context.Context, sc Scope, transactionID int) (*core.CashFlowTransaction, error) {
	return observe(ctx, s, sc, "GetCashFlow", transactionID, func(ctx context.Context) (*core.CashFlowTransaction, error) {
		return s.cashFlow.GetTransaction(ctx, sc.CompanyID, transactionID)
	})
}

func (s *appService) DeleteCashFlow(ctx context.Context, sc Scope, transactionID int) error {
	return observeErr(ctx, s, sc, "DeleteCashFlow", transactionID, func(ctx context.Context) error {
		return s.cashFlow.DeleteTransaction(ctx, sc.CompanyID, transactionID)
	})
}

func (s *appService) GetDailySummary(ctx context.Context, sc Scope, date string) (*core.DailySummary, error) {
	return observe(ctx, s, sc, "GetDailySummary", date, func(ctx context.Context) (*core.DailySummary, error) {
		p := dateParser{}
		day := p.orDefault("date", date, s.now())
		if err := p.err(); err != nil {
			return nil, err
		}
		return s.cashFlow.GetDailySummary(ctx, sc.CompanyID, day)
	})
}

// ── cash register sessions ────────────────────────────────────────────────────

// OpenSession opens the register for a date under the per-date session lock.
func (s *appService) OpenSession(ctx context.Context, sc Scope, req OpenSessionRequest) (*core.CashSession, error) {
	return observe(ctx, s, sc, "OpenSession", req.SessionDate, func(ctx context.Context) (*core.CashSession, error) {
		input, err := req.toInput(s.now())
		if err != nil {
			return nil, err
		}
		var cs *core.CashSession
		key := lock.TenantKey("cash-session", sc.CompanyCode, input.SessionDate.Format(core.DateLayout))
		err = s.withLock(ctx, key, func(ctx context.Context) error {
			cs, err = s.sessions.OpenSession(ctx, sc.CompanyID, sc.Actor.UserID, input)
			return err
		})
		return cs, err
	})
}

// CloseSession computes the expected drawer amount and difference for an open session.
func (s *appService) CloseSession(ctx context.Context, sc Scope, sessionID int, input core.CloseSessionInput) (*core.CashSession, error) {
	return observe(ctx, s, sc, "CloseSession", sessionID, func(ctx context.Context) (*core.CashSession, error) {
		current, err := s.sessions.GetSession(ctx, sc.CompanyID, sessionID)
		if err != nil {
			return nil, err
		}
		var cs *core.CashSession
		key := lock.TenantKey("cash-session", sc.CompanyCode, current.SessionDate)
		err = s.withLock(ctx, key, func(ctx context.Context) error {
			cs, err = s.sessions.CloseSession(ctx, sc.CompanyID, sessionID, sc.Actor.UserID, input)
			return err
		})
		return cs, err
	})
}

func (s *appService) GetSession(ctx context.Context, sc Scope, sessionID int) (*core.CashSession, error) {
	return observe(ctx, s, sc, "GetSession", sessionID, func(ctx context.Context) (*core.CashSession, error) {
		return s.sessions.GetSession(ctx, sc.CompanyID, sessionID)
	})
}

func (s *appService) CurrentSession(ctx context.Context, sc Scope, date string) (*core.CashSession, error) {
	return observe(ctx, s, sc, "CurrentSession", date, func(ctx context.Context) (*core.CashSession, error) {
		p := dateParser{}
		day := p.orDefault("date", date, s.now())
		if err := p.err(); err != nil {
			return nil, err
		}
		return s.sessions.GetOpenSession(ctx, sc.CompanyID, day)
	})
}

func (s *appService) ListSessions(ctx context.Context, sc Scope, q DateRange) ([]core.CashSession, error) {
	return observe(ctx, s, sc, "ListSessions", q, func(ctx context.Context) ([]core.CashSession, error) {
		from, to, err := q.bounds()
		if err != nil {
			return nil, err
		}
		return s.sessions.ListSessions(ctx, sc.CompanyID, from, to)
	})
}

// RecordWithdrawal logs a sangria against an open session.
func (s *appService) RecordWithdrawal(ctx context.Context, sc Scope, sessionID int, input core.WithdrawalInput) (*core.Withdrawal, error) {
	return observe(ctx, s, sc, "RecordWithdrawal", sessionID, func(ctx context.Context) (*core.Withdrawal, error) {
		return s.sessions.RecordWithdrawal(ctx, sc.CompanyID, sessionID, sc.Actor.UserID, input)
	})
}

func (s *appService) ListWithdrawals(ctx context.Context, sc Scope, sessionID int) ([]core.Withdrawal, error) {
	return observe(ctx, s, sc, "ListWithdrawals", sessionID, func(ctx context.Context) ([]core.Withdrawal, error) {
		return s.sessions.ListWithdrawals(ctx, sc.CompanyID, sessionID)
	})
}

// ── master data ───────────────────────────────────────────────────────────────

func (s *appService) ListVendors(ctx context.Context, sc Scope) ([]core.Vendor, error) {
	return observe(ctx, s, sc, "ListVendors", nil, func(ctx context.Context) ([]core.Vendor, error) {
		return s.vendors.GetVendors(ctx, sc.CompanyID)
	})
}

func (s *appService) GetVendor(ctx context.Context, sc Scope, vendorID int) (*core.Vendor, error) {
	return observe(ctx, s, sc, "GetVendor", vendorID, func(ctx context.Context) (*core.Vendor, error) {
		return s.vendors.GetVendor(ctx, sc.CompanyID, vendorID)
	})
}

func (s *appService) CreateVendor(ctx context.Context, sc Scope, input core.VendorInput) (*core.Vendor, error) {
	return observe(ctx, s, sc, "CreateVendor", input.Name, func(ctx context.Context) (*core.Vendor, error) {
		return s.vendors.CreateVendor(ctx, sc.CompanyID, input)
	})
}

func (s *appService) UpdateVendor(ctx context.Context, sc Scope, vendorID int, input core.VendorInput) (*core.Vendor, error) {
	return observe(ctx, s, sc, "UpdateVendor", vendorID, func(ctx context.Context) (*core.Vendor, error) {
		return s.vendors.UpdateVendor(ctx, sc.CompanyID, vendorID, input)
	})
}

func (s *appService) DeactivateVendor(ctx context.Context, sc Scope, vendorID int) error {
	return observeErr(ctx, s, sc, "DeactivateVendor", vendorID, func(ctx context.Context) error {
		return s.vendors.DeactivateVendor(ctx, sc.CompanyID, vendorID)
	})
}

func (s *appService) ListCustomers(ctx context.Context, sc Scope, search string) ([]core.Customer, error) {
	return observe(ctx, s, sc, "ListCustomers", search, func(ctx context.Context) ([]core.Customer, error) {
		return s.customers.GetCustomers(ctx, sc.CompanyID, search)
	})
}

func (s *appService) GetCustomer(ctx context.Context, sc Scope, customerID int) (*core.Customer, error) {
	return observe(ctx, s, sc, "GetCustomer", customerID, func(ctx context.Context) (*core.Customer, error) {
		return s.customers.GetCustomer(ctx, sc.CompanyID, customerID)
	})
}

func (s *appService) CreateCustomer(ctx context.Context, sc Scope, input core.CustomerInput) (*core.Customer, error) {
	return observe(ctx, s, sc, "CreateCustomer", input.Name, func(ctx context.Context) (*core.Customer, error) {
		return s.customers.CreateCustomer(ctx, sc.CompanyID, input)
	})
}

func (s *appService) UpdateCustomer(ctx context.Context, sc Scope, customerID int, input core.CustomerInput) (*core.Customer, error) {
	return observe(ctx, s, sc, "UpdateCustomer", customerID, func(ctx context.Context) (*core.Customer, error) {
		return s.customers.UpdateCustomer(ctx, sc.CompanyID, customerID, input)
	})
}

func (s *appService) DeactivateCustomer(ctx context.Context, sc Scope, customerID int) error {
	return observeErr(ctx, s, sc, "DeactivateCustomer", customerID, func(ctx context.Context) error {
		return s.customers.DeactivateCustomer(ctx, sc.CompanyID, customerID)
	})
}

func (s *appService) ListProducts(ctx context.Context, sc Scope, filter core.ProductFilter) ([]core.Product, error) {
	return observe(ctx, s, sc, "ListProducts", filter, func(ctx context.Context) ([]core.Product, error) {
		return s.products.GetProducts(ctx, sc.CompanyID, filter)
	})
}

func (s *appService) GetProduct(ctx context.Context, sc Scope, productID int) (*core.Product, error) {
	return observe(ctx, s, sc, "GetProduct", productID, func(ctx context.Context) (*core.Product, error) {
		return s.products.GetProduct(ctx, sc.CompanyID, productID)
	})
}

func (s *appService) CreateProduct(ctx context.Context, sc Scope, input core.ProductInput) (*core.Product, error) {
	return observe(ctx, s, sc, "CreateProduct", input.Code, func(ctx context.Context) (*core.Product, error) {
		return s.products.CreateProduct(ctx, sc.CompanyID, input)
	})
}

func (s *appService) UpdateProduct(ctx context.Context, sc Scope, productID int, input core.ProductInput) (*core.Product, error) {
	return observe(ctx, s, sc, "UpdateProduct", productID, func(ctx context.Context) (*core.Product, error) {
		return s.products.UpdateProduct(ctx, sc.CompanyID, productID, input)
	})
}

func (s *appService) DeactivateProduct(ctx context.Context, sc Scope, productID int) error {
	return observeErr(ctx, s, sc, "DeactivateProduct", productID, func(ctx context.Context) error {
		return s.products.DeactivateProduct(ctx, sc.CompanyID, productID)
	})
}

func (s *appService) ListStockMovements(ctx context.Context, sc Scope, productID, limit int) ([]core.StockMovement, error) {
	return observe(ctx, s, sc, "ListStockMovements", productID, func(ctx context.Context) ([]core.StockMovement, error) {
		if _, err := s.products.GetProduct(ctx, sc.CompanyID, productID); err != nil {
			return nil, err
		}
		return s.stock.GetMovements(ctx, sc.CompanyID, productID, limit)
	})
}

func (s *appService) ListUsers(ctx context.Context, sc Scope) ([]core.User, error) {
	return observe(ctx, s, sc, "ListUsers", nil, func(ctx context.Context) ([]core.User, error) {
		return s.users.GetUsers(ctx, sc.CompanyID)
	})
}

// CreateUser adds a user to the scope's company. Only a superadmin may grant superadmin.
func (s *appService) CreateUser(ctx context.Context, sc Scope, input core.UserInput) (*core.User, error) {
	return observe(ctx, s, sc, "CreateUser", input.Username, func(ctx context.Context) (*core.User, error) {
		if err := checkRoleGrant(sc.Actor, input.Role); err != nil {
			return nil, err
		}
		return s.users.CreateUser(ctx, sc.CompanyID, input)
	})
}

func (s *appService) UpdateUser(ctx context.Context, sc Scope, userID int, input core.UserUpdate) (*core.User, error) {
	return observe(ctx, s, sc, "UpdateUser", userID, func(ctx context.Context) (*core.User, error) {
		if err := checkRoleGrant(sc.Actor, input.Role); err != nil {
			return nil, err
		}
		return s.users.UpdateUser(ctx, sc.CompanyID, userID, input)
	})
}

func (s *appService) DeactivateUser(ctx context.Context, sc Scope, userID int) error {
	return observeErr(ctx, s, sc, "DeactivateUser", userID, func(ctx context.Context) error {
		if userID == sc.Actor.UserID {
			return fmt.Errorf("%w: cannot deactivate your own user", core.ErrConflict)
		}
		return s.users.DeactivateUser(ctx, sc.CompanyID, userID)
	})
}

func checkRoleGrant(actor core.Principal, role core.Role) error {
	if role == core.RoleSuperAdmin && !actor.IsSuperuser() {
		return fmt.Errorf("granting role %s: %w", role, core.ErrForbidden)
	}
	return nil
}

// ── exports ───────────────────────────────────────────────────────────────────

func (s *appService) ExportCashFlow(ctx context.Context, sc Scope, q CashFlowQuery, w io.Writer) error {
	txs, err := s.ListCashFlow(ctx, sc, q)
	if err != nil {
		return err
	}
	return observeErr(ctx, s, sc, "ExportCashFlow", len(txs), func(context.Context) error {
		return report.CashFlow(w, txs)
	})
}

func (s *appService) ExportPayables(ctx context.Context, sc Scope, q PayableQuery, w io.Writer) error {
	payables, err := s.ListPayables(ctx, sc, q)
	if err != nil {
		return err
	}
	return observeErr(ctx, s, sc, "ExportPayables", len(payables), func(context.Context) error {
		return report.Payables(w, payables)
	})
}

func (s *appService) ExportBudgetVsActual(ctx context.Context, sc Scope, year, month int, w io.Writer) error {
	rows, err := s.GetBudgetVsActual(ctx, sc, year, month)
	if err != nil {
		return err
	}
	return observeErr(ctx, s, sc, "ExportBudgetVsActual", len(rows), func(context.Context) error {
		return report.BudgetVsActual(w, rows)
	})
}

func (s *appService) ExportSessions(ctx context.Context, sc Scope, q DateRange, w io.Writer) error {
	sessions, err := s.ListSessions(ctx, sc, q)
	if err != nil {
		return err
	}
	return observeErr(ctx, s, sc, "ExportSessions", len(sessions), func(context.Context) error {
		return report.Sessions(w, sessions)
	})
}

// ── private helpers ───────────────────────────────────────────────────────────

// withLock runs fn while holding key. A key held elsewhere is reported as a conflict.
func (s *appService) withLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	release, err := s.locker.Obtain(ctx, key)
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			return fmt.Errorf("%w: %v", core.ErrConflict, err)
		}
		return err
	}
	defer release()
	return fn(ctx)
}

// observe runs fn inside a span named after op. Errors outside the expected classes
// are logged with the tenant and data before being returned.
func observe[T any](ctx context.Context, s *appService, sc Scope, op string, data any, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := s.tracer.Start(ctx, "app."+op, trace.WithAttributes(
		attribute.String("company.code", sc.CompanyCode),
		attribute.Int("actor.id", sc.Actor.UserID),
	))
	defer span.End()

	out, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if IsUnexpected(err) {
			logger.LogError(logger.FromContext(ctx, s.log), "app", op, sc.CompanyCode, data, err)
		}
	}
	return out, err
}

func observeErr(ctx context.Context, s *appService, sc Scope, op string, data any, fn func(context.Context) error) error {
	_, err := observe(ctx, s, sc, op, data, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// IsUnexpected reports whether err falls outside the validation, authorization,
// not-found and conflict classes, i.e. whether callers should answer with a generic failure.
func IsUnexpected(err error) bool {
	for _, known := range []error{
		core.ErrValidation, core.ErrNotFound, core.ErrConflict, core.ErrForbidden,
		core.ErrInvalidCredentials, ErrAIUnavailable, context.Canceled,
	} {
		if errors.Is(err, known) {
			return false
		}
	}
	return true
}
