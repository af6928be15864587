package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cashflow/internal/ai"
	"cashflow/internal/app"
	"cashflow/internal/core"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// fakeService implements the methods the tests exercise; anything else panics
// through the nil embedded interface.
type fakeService struct {
	app.ApplicationService

	companies map[string]int
	invoices  []core.Invoice
	cancelErr error
	lastReq   app.InvoiceRequest
	closeIn   core.CloseSessionInput
	listErr   error
}

func newFake() *fakeService {
	return &fakeService{companies: map[string]int{"ACME": 1, "BETA": 2}}
}

func (f *fakeService) AuthenticateUser(_ context.Context, username, password string) (*app.UserSession, error) {
	if username != "ana" || password != "s3cret-pass" {
		return nil, core.ErrInvalidCredentials
	}
	u := &core.User{ID: 10, CompanyID: 1, Username: "ana", Role: core.RoleOperator, IsActive: true}
	return &app.UserSession{User: u, Principal: u.Principal(), CompanyCode: "ACME"}, nil
}

func (f *fakeService) ResolveScope(_ context.Context, actor core.Principal, code string) (app.Scope, error) {
	id, ok := f.companies[code]
	if !ok {
		return app.Scope{}, fmt.Errorf("company %s: %w", code, core.ErrNotFound)
	}
	if !actor.CanAccessCompany(id) {
		return app.Scope{}, fmt.Errorf("company %s: %w", code, core.ErrForbidden)
	}
	return app.Scope{CompanyID: id, CompanyCode: code, Actor: actor}, nil
}

func (f *fakeService) ListInvoices(context.Context, app.Scope, app.InvoiceQuery) ([]core.Invoice, error) {
	return f.invoices, f.listErr
}

func (f *fakeService) CreateInvoice(_ context.Context, sc app.Scope, req app.InvoiceRequest) (*core.Invoice, error) {
	f.lastReq = req
	if req.IssueDate == "" {
		return nil, &core.ValidationError{Message: "invalid date", Fields: map[string]string{"issueDate": "required"}}
	}
	return &core.Invoice{ID: 1, CompanyID: sc.CompanyID, Number: req.Number, Series: req.Series, State: core.InvoiceProcessed}, nil
}

func (f *fakeService) CancelInvoice(_ context.Context, _ app.Scope, id int, reason string) (*core.Invoice, error) {
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	return &core.Invoice{ID: id, Number: "100", Series: "1", State: core.InvoiceCancelled, CancellationReason: &reason}, nil
}

func (f *fakeService) ExtractInvoice(context.Context, app.Scope, string) (*ai.InvoiceDraft, error) {
	return nil, app.ErrAIUnavailable
}

func (f *fakeService) CloseSession(_ context.Context, _ app.Scope, id int, in core.CloseSessionInput) (*core.CashSession, error) {
	f.closeIn = in
	fig := core.ComputeClose(decimal.NewFromInt(100), decimal.NewFromInt(500), decimal.NewFromInt(50), in.ClosingAmount)
	return &core.CashSession{
		ID: id, Status: core.SessionClosed,
		ExpectedAmount: decimal.NewNullDecimal(fig.Expected),
		Difference:     decimal.NewNullDecimal(fig.Difference),
		ClosingAmount:  decimal.NewNullDecimal(in.ClosingAmount),
	}, nil
}

func (f *fakeService) ExportCashFlow(_ context.Context, _ app.Scope, q app.CashFlowQuery, w io.Writer) error {
	if q.From == "bad" {
		return &core.ValidationError{Fields: map[string]string{"from": "date"}}
	}
	_, err := w.Write([]byte("PK"))
	return err
}

func newTestHandler(t *testing.T, svc app.ApplicationService) (http.Handler, *logtest.Hook) {
	t.Helper()
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.InfoLevel)
	return NewHandler(svc, Options{JWTSecret: testSecret, TokenTTL: time.Hour}, log), hook
}

func tokenFor(t *testing.T, p core.Principal) string {
	t.Helper()
	tok, err := issueToken(testSecret, time.Hour, p)
	require.NoError(t, err)
	return tok
}

func operator() core.Principal {
	return core.Principal{UserID: 10, CompanyID: 1, Role: core.RoleOperator,
		Permissions: core.EffectivePermissions(core.RoleOperator, nil)}
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t, newFake())
	rec := do(t, h, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestLogin_IssuesUsableToken(t *testing.T) {
	svc := newFake()
	svc.invoices = []core.Invoice{{ID: 1, Number: "100"}}
	h, _ := newTestHandler(t, svc)

	rec := do(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "ana", "password": "s3cret-pass"})
	require.Equal(t, http.StatusOK, rec.Code)

	var session sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.Equal(t, "ACME", session.CompanyCode)
	assert.NotEmpty(t, session.Token)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "auth_token", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	// Cookie and bearer token are both accepted.
	req := httptest.NewRequest(http.MethodGet, "/api/companies/ACME/invoices", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/companies/ACME/invoices", session.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogin_WrongPassword(t *testing.T) {
	h, _ := newTestHandler(t, newFake())
	rec := do(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "ana", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Code)
}

func TestRequireAuth(t *testing.T) {
	h, _ := newTestHandler(t, newFake())

	rec := do(t, h, http.MethodGet, "/api/companies/ACME/invoices", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/companies/ACME/invoices", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	forged, err := issueToken("another-secret-another-secret-xx", time.Hour, operator())
	require.NoError(t, err)
	rec = do(t, h, http.MethodGet, "/api/companies/ACME/invoices", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expired, err := issueToken(testSecret, -time.Minute, operator())
	require.NoError(t, err)
	rec = do(t, h, http.MethodGet, "/api/companies/ACME/invoices", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPermissionGuard(t *testing.T) {
	h, _ := newTestHandler(t, newFake())
	viewer := core.Principal{UserID: 11, CompanyID: 1, Role: core.RoleViewer,
		Permissions: core.EffectivePermissions(core.RoleViewer, nil)}

	rec := do(t, h, http.MethodPost, "/api/companies/ACME/invoices/1/cancel", tokenFor(t, viewer), map[string]string{"reason": "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Operators may write invoices but not cancel them.
	rec = do(t, h, http.MethodPost, "/api/companies/ACME/invoices/1/cancel", tokenFor(t, operator()), map[string]string{"reason": "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/companies", tokenFor(t, operator()), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTenantGuard(t *testing.T) {
	h, _ := newTestHandler(t, newFake())
	tok := tokenFor(t, operator())

	rec := do(t, h, http.MethodGet, "/api/companies/BETA/invoices", tok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// An unknown company looks the same as a foreign one.
	rec = do(t, h, http.MethodGet, "/api/companies/NOPE/invoices", tok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	super := core.Principal{UserID: 1, CompanyID: 1, Role: core.RoleSuperAdmin}
	rec = do(t, h, http.MethodGet, "/api/companies/BETA/invoices", tokenFor(t, super), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/companies/NOPE/invoices", tokenFor(t, super), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateInvoice(t *testing.T) {
	svc := newFake()
	h, _ := newTestHandler(t, svc)
	tok := tokenFor(t, operator())

	body := map[string]any{
		"vendorId": 3, "nfeNumber": "100", "nfeSeries": "1", "issueDate": "2024-01-05",
		"totalInvoice": "53.50", "paymentStatus": "paid",
		"items": []map[string]any{{"productId": 1, "quantity": "2", "unitPrice": "25.00"}},
	}
	rec := do(t, h, http.MethodPost, "/api/companies/ACME/invoices", tok, body)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "2024-01-05", svc.lastReq.IssueDate)
	assert.Equal(t, "53.5", svc.lastReq.TotalInvoice.String())

	delete(body, "issueDate")
	rec = do(t, h, http.MethodPost, "/api/companies/ACME/invoices", tok, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	assert.Equal(t, "required", resp.Fields["issueDate"])
	assert.NotEmpty(t, resp.RequestID)
}

func TestCreateInvoice_MalformedBody(t *testing.T) {
	h, _ := newTestHandler(t, newFake())
	req := httptest.NewRequest(http.MethodPost, "/api/companies/ACME/invoices", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, operator()))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BAD_REQUEST", decodeError(t, rec).Code)
}

func TestCancelInvoice(t *testing.T) {
	svc := newFake()
	h, _ := newTestHandler(t, svc)
	manager := core.Principal{UserID: 12, CompanyID: 1, Role: core.RoleManager,
		Permissions: core.EffectivePermissions(core.RoleManager, nil)}
	tok := tokenFor(t, manager)

	rec := do(t, h, http.MethodPost, "/api/companies/ACME/invoices/7/cancel", tok, map[string]string{"reason": "wrong vendor"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)

	svc.cancelErr = &core.InsufficientStockError{ProductCode: "W-1", ProductName: "Widget", Available: 1, Required: 3}
	rec = do(t, h, http.MethodPost, "/api/companies/ACME/invoices/7/cancel", tok, map[string]string{"reason": "wrong vendor"})
	require.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "INSUFFICIENT_STOCK", resp.Code)
	assert.Contains(t, resp.Error, "W-1")

	svc.cancelErr = fmt.Errorf("%w: invoice 100/1 is already cancelled", core.ErrConflict)
	rec = do(t, h, http.MethodPost, "/api/companies/ACME/invoices/7/cancel", tok, map[string]string{"reason": "again"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", decodeError(t, rec).Code)

	rec = do(t, h, http.MethodPost, "/api/companies/ACME/invoices/abc/cancel", tok, map[string]string{"reason": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnexpectedErrorIsGeneric(t *testing.T) {
	svc := newFake()
	svc.listErr = errors.New("pq: relation invoices does not exist")
	h, hook := newTestHandler(t, svc)

	rec := do(t, h, http.MethodGet, "/api/companies/ACME/invoices", tokenFor(t, operator()), nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "internal server error", resp.Error)
	assert.NotContains(t, rec.Body.String(), "relation")

	assert.NotEmpty(t, resp.RequestID)

	// The application layer logs unexpected errors; the handler only records the request line.
	for _, e := range hook.AllEntries() {
		assert.NotEqual(t, logrus.ErrorLevel, e.Level, e.Message)
	}
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "request", entry.Message)
	assert.Equal(t, http.StatusInternalServerError, entry.Data["status"])
	assert.Equal(t, resp.RequestID, entry.Data["request_id"])
}

func TestExtractInvoice_Unavailable(t *testing.T) {
	h, _ := newTestHandler(t, newFake())
	rec := do(t, h, http.MethodPost, "/api/companies/ACME/invoices/extract", tokenFor(t, operator()), map[string]string{"text": "NF-e 100"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCloseSession(t *testing.T) {
	svc := newFake()
	h, _ := newTestHandler(t, svc)

	rec := do(t, h, http.MethodPost, "/api/companies/ACME/cash-sessions/4/close", tokenFor(t, operator()),
		map[string]string{"closingAmount": "545.00"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "545", svc.closeIn.ClosingAmount.String())

	var cs core.CashSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cs))
	assert.Equal(t, "550", cs.ExpectedAmount.Decimal.String())
	assert.Equal(t, "-5", cs.Difference.Decimal.String())
}

func TestExportCashFlow(t *testing.T) {
	h, _ := newTestHandler(t, newFake())
	tok := tokenFor(t, operator())

	rec := do(t, h, http.MethodGet, "/api/companies/ACME/cashflow/export?from=2024-01-01", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "cashflow-ACME.xlsx")
	assert.Equal(t, "PK", rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/companies/ACME/cashflow/export?from=bad", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestCORS(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	h := NewHandler(newFake(), Options{JWTSecret: testSecret, AllowedOrigins: []string{"https://app.example.com"}}, log)

	req := httptest.NewRequest(http.MethodOptions, "/api/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
