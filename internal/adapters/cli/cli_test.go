package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"cashflow/internal/app"
	"cashflow/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	app.ApplicationService

	scopeActor core.Principal
	scopeCode  string
	userInput  core.UserInput
	companyIn  core.CompanyInput
	cashQuery  app.CashFlowQuery
	payQuery   app.PayableQuery
	sessions   []core.CashSession
	exportErr  error
}

func (f *fakeService) ResolveScope(_ context.Context, actor core.Principal, code string) (app.Scope, error) {
	f.scopeActor, f.scopeCode = actor, code
	if code == "NOPE" {
		return app.Scope{}, core.ErrNotFound
	}
	return app.Scope{CompanyID: 7, CompanyCode: code, Actor: actor}, nil
}

func (f *fakeService) CreateCompany(_ context.Context, in core.CompanyInput) (*core.Company, error) {
	f.companyIn = in
	return &core.Company{ID: 3, CompanyCode: in.CompanyCode, Name: in.Name, IsActive: true}, nil
}

func (f *fakeService) CreateUser(_ context.Context, sc app.Scope, in core.UserInput) (*core.User, error) {
	f.userInput = in
	return &core.User{ID: 11, CompanyID: sc.CompanyID, Username: in.Username, Role: in.Role}, nil
}

func (f *fakeService) ExportCashFlow(_ context.Context, _ app.Scope, q app.CashFlowQuery, w io.Writer) error {
	f.cashQuery = q
	if f.exportErr != nil {
		return f.exportErr
	}
	_, err := w.Write([]byte("xlsx"))
	return err
}

func (f *fakeService) ExportPayables(_ context.Context, _ app.Scope, q app.PayableQuery, w io.Writer) error {
	f.payQuery = q
	_, err := w.Write([]byte("xlsx"))
	return err
}

func (f *fakeService) ListSessions(context.Context, app.Scope, app.DateRange) ([]core.CashSession, error) {
	return f.sessions, nil
}

func run(t *testing.T, svc app.ApplicationService, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := Execute(context.Background(), Deps{Service: svc, Out: &out}, args)
	return out.String(), err
}

func TestCompanyCreate(t *testing.T) {
	svc := &fakeService{}
	out, err := run(t, svc, "company", "create", "--code", "ACME", "--name", "Acme Ltda", "--currency", "BRL")
	require.NoError(t, err)
	assert.Contains(t, out, "Company ACME created (id 3)")
	assert.Equal(t, "Acme Ltda", svc.companyIn.Name)
	assert.Equal(t, "BRL", svc.companyIn.BaseCurrency)
}

func TestCompanyCreate_RequiresFlags(t *testing.T) {
	_, err := run(t, &fakeService{}, "company", "create", "--code", "ACME")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}

func TestUserCreate_ActsAsSuperadmin(t *testing.T) {
	svc := &fakeService{}
	out, err := run(t, svc, "user", "create",
		"--company", "ACME", "--username", "maria", "--email", "maria@acme.com.br",
		"--password", "s3cret-pass", "--role", "operator")
	require.NoError(t, err)

	assert.True(t, svc.scopeActor.IsSuperuser())
	assert.Equal(t, "ACME", svc.scopeCode)
	assert.Equal(t, core.RoleOperator, svc.userInput.Role)
	assert.Contains(t, out, "User maria created in ACME with role operator")
}

func TestUserCreate_UnknownCompany(t *testing.T) {
	_, err := run(t, &fakeService{}, "user", "create",
		"--company", "NOPE", "--username", "maria", "--email", "m@x.io", "--password", "s3cret-pass")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestExportCashFlow_WritesFile(t *testing.T) {
	svc := &fakeService{}
	path := filepath.Join(t.TempDir(), "march.xlsx")

	out, err := run(t, svc, "export", "cashflow", "--company", "ACME",
		"--from", "2024-03-01", "--to", "2024-03-31", "--type", "exit", "-o", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "xlsx", string(data))
	assert.Equal(t, app.CashFlowQuery{
		DateRange: app.DateRange{From: "2024-03-01", To: "2024-03-31"},
		Type:      "exit",
	}, svc.cashQuery)
	assert.Contains(t, out, "Wrote "+path)
}

func TestExportCashFlow_RemovesFileOnFailure(t *testing.T) {
	svc := &fakeService{exportErr: &core.ValidationError{Message: "invalid date", Fields: map[string]string{"from": "date"}}}
	path := filepath.Join(t.TempDir(), "bad.xlsx")

	_, err := run(t, svc, "export", "cashflow", "--company", "ACME", "--from", "03/01", "-o", path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrValidation))

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExportPayables_OverdueFlag(t *testing.T) {
	svc := &fakeService{}
	path := filepath.Join(t.TempDir(), "payables.xlsx")

	_, err := run(t, svc, "export", "payables", "--company", "ACME", "--overdue", "-o", path)
	require.NoError(t, err)
	assert.True(t, svc.payQuery.OverdueOnly)
}

func TestSessionReport(t *testing.T) {
	svc := &fakeService{sessions: []core.CashSession{
		{
			SessionDate:   "2024-03-01",
			Status:        core.SessionClosed,
			OpeningAmount: decimal.NewFromInt(100),
			TotalEntries:  decimal.NewNullDecimal(decimal.NewFromInt(500)),
			TotalExits:    decimal.NewNullDecimal(decimal.NewFromInt(50)),
			ClosingAmount: decimal.NewNullDecimal(decimal.NewFromInt(545)),
			Difference:    decimal.NewNullDecimal(decimal.NewFromInt(-5)),
		},
		{
			SessionDate:   "2024-03-02",
			Status:        core.SessionOpen,
			OpeningAmount: decimal.NewFromInt(80),
		},
	}}

	out, err := run(t, svc, "session", "report", "--company", "ACME")
	require.NoError(t, err)
	assert.Contains(t, out, "CASH SESSIONS  ACME")
	assert.Regexp(t, `2024-03-01\s+closed\s+100\.00\s+500\.00\s+50\.00\s+545\.00\s+-5\.00`, out)
	assert.Regexp(t, `2024-03-02\s+open\s+80\.00\s+-\s+-\s+-\s+-`, out)
}

func TestMigrate(t *testing.T) {
	var out bytes.Buffer
	deps := Deps{
		Service: &fakeService{},
		Out:     &out,
		Migrate: func(context.Context) ([]string, error) {
			return []string{"004_finance.sql", "005_cash_sessions.sql"}, nil
		},
	}
	require.NoError(t, Execute(context.Background(), deps, []string{"migrate"}))
	assert.Equal(t, "applied 004_finance.sql\napplied 005_cash_sessions.sql\n", out.String())

	out.Reset()
	deps.Migrate = func(context.Context) ([]string, error) { return nil, nil }
	require.NoError(t, Execute(context.Background(), deps, []string{"migrate"}))
	assert.Equal(t, "Schema is up to date.\n", out.String())
}

func TestMigrate_WithoutDatabase(t *testing.T) {
	_, err := run(t, &fakeService{}, "migrate")
	assert.EqualError(t, err, "migrate: no database configured")
}
