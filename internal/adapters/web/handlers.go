package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"cashflow/internal/app"
	"cashflow/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// Options configures the HTTP adapter.
type Options struct {
	AllowedOrigins []string
	JWTSecret      string
	TokenTTL       time.Duration
}

// Handler holds the ApplicationService and the auth settings shared by all routes.
type Handler struct {
	svc       app.ApplicationService
	log       logrus.FieldLogger
	jwtSecret string
	tokenTTL  time.Duration
}

// scopedHandler is a handler that runs after the tenant guard resolved the company.
type scopedHandler func(w http.ResponseWriter, r *http.Request, sc app.Scope)

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, opts Options, log logrus.FieldLogger) http.Handler {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 12 * time.Hour
	}
	h := &Handler{
		svc:       svc,
		log:       log,
		jwtSecret: opts.JWTSecret,
		tokenTTL:  opts.TokenTTL,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recoverer(log))
	r.Use(CORS(opts.AllowedOrigins))
	r.Use(RequestBodyLimit(1 << 20)) // 1 MB

	// ── Public ────────────────────────────────────────────────────────────────
	r.Get("/api/health", h.health)
	r.Post("/api/auth/login", h.login)
	r.Post("/api/auth/logout", h.logout)

	// ── Protected API routes (401 JSON if unauthenticated) ────────────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)

		r.Get("/api/auth/me", h.me)
		r.Post("/api/auth/password", h.changePassword)

		r.With(h.requirePermission(core.ActCompaniesManage)).Get("/api/companies", h.listCompanies)
		r.With(h.requirePermission(core.ActCompaniesManage)).Post("/api/companies", h.createCompany)

		r.Route("/api/companies/{code}", func(r chi.Router) {
			route := func(method, pattern string, action core.Action, fn scopedHandler) {
				r.With(h.requirePermission(action)).Method(method, pattern, h.scoped(fn))
			}

			// Invoices
			route(http.MethodGet, "/invoices", core.ActInvoicesRead, h.listInvoices)
			route(http.MethodPost, "/invoices", core.ActInvoicesWrite, h.createInvoice)
			route(http.MethodPost, "/invoices/extract", core.ActInvoicesWrite, h.extractInvoice)
			route(http.MethodGet, "/invoices/{id}", core.ActInvoicesRead, h.getInvoice)
			route(http.MethodPut, "/invoices/{id}", core.ActInvoicesWrite, h.updateInvoice)
			route(http.MethodDelete, "/invoices/{id}", core.ActInvoicesWrite, h.deleteInvoice)
			route(http.MethodPost, "/invoices/{id}/process", core.ActInvoicesWrite, h.processInvoice)
			route(http.MethodPost, "/invoices/{id}/cancel", core.ActInvoicesCancel, h.cancelInvoice)

			// Accounts payable
			route(http.MethodGet, "/payables", core.ActPayablesRead, h.listPayables)
			route(http.MethodPost, "/payables", core.ActPayablesWrite, h.createPayable)
			route(http.MethodGet, "/payables/export", core.ActPayablesRead, h.exportPayables)
			route(http.MethodGet, "/payables/{id}", core.ActPayablesRead, h.getPayable)
			route(http.MethodPut, "/payables/{id}", core.ActPayablesWrite, h.updatePayable)
			route(http.MethodDelete, "/payables/{id}", core.ActPayablesWrite, h.deletePayable)
			route(http.MethodPost, "/payables/{id}/pay", core.ActPayablesWrite, h.payPayable)

			// Budgets
			route(http.MethodGet, "/budgets", core.ActBudgetsRead, h.listBudgets)
			route(http.MethodPost, "/budgets", core.ActBudgetsWrite, h.createBudget)
			route(http.MethodGet, "/budgets/vs-actual", core.ActBudgetsRead, h.budgetVsActual)
			route(http.MethodGet, "/budgets/vs-actual/export", core.ActBudgetsRead, h.exportBudgetVsActual)
			route(http.MethodGet, "/budgets/{id}", core.ActBudgetsRead, h.getBudget)
			route(http.MethodPut, "/budgets/{id}", core.ActBudgetsWrite, h.updateBudget)
			route(http.MethodDelete, "/budgets/{id}", core.ActBudgetsWrite, h.deleteBudget)

			// Cash flow
			route(http.MethodGet, "/cashflow", core.ActCashFlowRead, h.listCashFlow)
			route(http.MethodPost, "/cashflow", core.ActCashFlowWrite, h.createCashFlow)
			route(http.MethodGet, "/cashflow/summary", core.ActCashFlowRead, h.dailySummary)
			route(http.MethodGet, "/cashflow/export", core.ActCashFlowRead, h.exportCashFlow)
			route(http.MethodGet, "/cashflow/{id}", core.ActCashFlowRead, h.getCashFlow)
			route(http.MethodDelete, "/cashflow/{id}", core.ActCashFlowWrite, h.deleteCashFlow)

			// Cash register sessions
			route(http.MethodGet, "/cash-sessions", core.ActCashFlowRead, h.listSessions)
			route(http.MethodPost, "/cash-sessions", core.ActCashSessions, h.openSession)
			route(http.MethodGet, "/cash-sessions/current", core.ActCashFlowRead, h.currentSession)
			route(http.MethodGet, "/cash-sessions/export", core.ActCashFlowRead, h.exportSessions)
			route(http.MethodGet, "/cash-sessions/{id}", core.ActCashFlowRead, h.getSession)
			route(http.MethodPost, "/cash-sessions/{id}/close", core.ActCashSessions, h.closeSession)
			route(http.MethodGet, "/cash-sessions/{id}/withdrawals", core.ActCashFlowRead, h.listWithdrawals)
			route(http.MethodPost, "/cash-sessions/{id}/withdrawals", core.ActCashSessions, h.recordWithdrawal)

			// Master data
			route(http.MethodGet, "/vendors", core.ActVendorsRead, h.listVendors)
			route(http.MethodPost, "/vendors", core.ActVendorsWrite, h.createVendor)
			route(http.MethodGet, "/vendors/{id}", core.ActVendorsRead, h.getVendor)
			route(http.MethodPut, "/vendors/{id}", core.ActVendorsWrite, h.updateVendor)
			route(http.MethodDelete, "/vendors/{id}", core.ActVendorsWrite, h.deactivateVendor)

			route(http.MethodGet, "/customers", core.ActCustomersRead, h.listCustomers)
			route(http.MethodPost, "/customers", core.ActCustomersWrite, h.createCustomer)
			route(http.MethodGet, "/customers/{id}", core.ActCustomersRead, h.getCustomer)
			route(http.MethodPut, "/customers/{id}", core.ActCustomersWrite, h.updateCustomer)
			route(http.MethodDelete, "/customers/{id}", core.ActCustomersWrite, h.deactivateCustomer)

			route(http.MethodGet, "/products", core.ActProductsRead, h.listProducts)
			route(http.MethodPost, "/products", core.ActProductsWrite, h.createProduct)
			route(http.MethodGet, "/products/{id}", core.ActProductsRead, h.getProduct)
			route(http.MethodPut, "/products/{id}", core.ActProductsWrite, h.updateProduct)
			route(http.MethodDelete, "/products/{id}", core.ActProductsWrite, h.deactivateProduct)
			route(http.MethodGet, "/products/{id}/movements", core.ActProductsRead, h.listMovements)

			// Users
			route(http.MethodGet, "/users", core.ActUsersManage, h.listUsers)
			route(http.MethodPost, "/users", core.ActUsersManage, h.createUser)
			route(http.MethodPut, "/users/{id}", core.ActUsersManage, h.updateUser)
			route(http.MethodDelete, "/users/{id}", core.ActUsersManage, h.deactivateUser)
		})
	})

	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
		Time   string `json:"time"`
	}
	writeJSON(w, response{Status: "ok", Time: time.Now().UTC().Format(time.RFC3339)})
}

// companyCode extracts the {code} URL parameter.
func companyCode(r *http.Request) string {
	return chi.URLParam(r, "code")
}

// pathID parses the {id} URL parameter, writing 400 when it is not a positive integer.
func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, r, "invalid id", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter; absent means 0.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		writeError(w, r, "invalid "+name+" parameter", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

// dateRange reads the from/to query parameters.
func dateRange(r *http.Request) app.DateRange {
	q := r.URL.Query()
	return app.DateRange{From: q.Get("from"), To: q.Get("to")}
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
