package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/lock"
	"cashflow/internal/logger"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

type busyLocker struct{ keys []string }

func (l *busyLocker) Obtain(_ context.Context, key string) (func(), error) {
	l.keys = append(l.keys, key)
	return func() {}, fmt.Errorf("%w: %s", lock.ErrBusy, key)
}

func newTestService(t *testing.T) (*appService, *logtest.Hook) {
	t.Helper()
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return &appService{
		locker: lock.Noop{},
		log:    log,
		tracer: noop.NewTracerProvider().Tracer("test"),
		now:    func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) },
	}, hook
}

func TestWithLock_BusyIsConflict(t *testing.T) {
	s, _ := newTestService(t)
	locker := &busyLocker{}
	s.locker = locker

	called := false
	err := s.withLock(context.Background(), lock.TenantKey("invoice", "ACME"), func(context.Context) error {
		called = true
		return nil
	})

	assert.False(t, called)
	assert.True(t, errors.Is(err, core.ErrConflict))
	assert.Equal(t, []string{"invoice:ACME"}, locker.keys)
}

func TestOpenSession_LocksPerDate(t *testing.T) {
	s, _ := newTestService(t)
	locker := &busyLocker{}
	s.locker = locker

	_, err := s.OpenSession(context.Background(), Scope{CompanyID: 1, CompanyCode: "ACME"}, OpenSessionRequest{})
	assert.True(t, errors.Is(err, core.ErrConflict))
	assert.Equal(t, []string{"cash-session:ACME:2024-03-01"}, locker.keys)
}

func TestAuthorizeCompany(t *testing.T) {
	acme := &core.Company{ID: 1, CompanyCode: "ACME", IsActive: true}
	closed := &core.Company{ID: 2, CompanyCode: "OLD", IsActive: false}

	tests := []struct {
		name    string
		actor   core.Principal
		company *core.Company
		wantErr bool
	}{
		{"own company", core.Principal{CompanyID: 1, Role: core.RoleViewer}, acme, false},
		{"other company", core.Principal{CompanyID: 2, Role: core.RoleAdmin}, acme, true},
		{"superadmin anywhere", core.Principal{CompanyID: 2, Role: core.RoleSuperAdmin}, acme, false},
		{"inactive company", core.Principal{CompanyID: 2, Role: core.RoleAdmin}, closed, true},
		{"superadmin inactive", core.Principal{CompanyID: 1, Role: core.RoleSuperAdmin}, closed, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := authorizeCompany(tt.actor, tt.company)
			if tt.wantErr {
				assert.True(t, errors.Is(err, core.ErrForbidden))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckRoleGrant(t *testing.T) {
	admin := core.Principal{Role: core.RoleAdmin}
	assert.NoError(t, checkRoleGrant(admin, core.RoleOperator))
	assert.True(t, errors.Is(checkRoleGrant(admin, core.RoleSuperAdmin), core.ErrForbidden))
	assert.NoError(t, checkRoleGrant(core.Principal{Role: core.RoleSuperAdmin}, core.RoleSuperAdmin))
}

func TestDeactivateUser_RefusesSelf(t *testing.T) {
	s, _ := newTestService(t)
	err := s.DeactivateUser(context.Background(), Scope{CompanyID: 1, Actor: core.Principal{UserID: 7}}, 7)
	assert.True(t, errors.Is(err, core.ErrConflict))
}

func TestExtractInvoice_WithoutAgent(t *testing.T) {
	s, _ := newTestService(t)
	_, err := s.ExtractInvoice(context.Background(), Scope{CompanyID: 1}, "NF-e")
	assert.ErrorIs(t, err, ErrAIUnavailable)
}

func TestObserve_LogsOnlyUnexpectedErrors(t *testing.T) {
	s, hook := newTestService(t)
	sc := Scope{CompanyCode: "ACME"}

	err := observeErr(context.Background(), s, sc, "ListInvoices", 42, func(context.Context) error {
		return &core.ValidationError{Message: "bad input"}
	})
	require.Error(t, err)
	assert.Empty(t, hook.AllEntries())

	err = observeErr(context.Background(), s, sc, "ListInvoices", 42, func(context.Context) error {
		return errors.New("connection reset")
	})
	require.Error(t, err)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "ListInvoices", entry.Data["funcName"])
	assert.Equal(t, "ACME", entry.Data["context"])
	assert.Equal(t, 42, entry.Data["data"])
}

func TestObserve_LogsRequestID(t *testing.T) {
	s, hook := newTestService(t)
	ctx := logger.WithRequestID(context.Background(), "req-1")

	err := observeErr(ctx, s, Scope{CompanyCode: "ACME"}, "ListPayables", nil, func(context.Context) error {
		return errors.New("connection reset")
	})
	require.Error(t, err)
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, "req-1", hook.LastEntry().Data["request_id"])
}

func TestObserveErr_WriterFailureIsLogged(t *testing.T) {
	s, hook := newTestService(t)
	w := failingWriter{err: errors.New("disk full")}

	err := observeErr(context.Background(), s, Scope{CompanyCode: "ACME"}, "ExportCashFlow", 0, func(context.Context) error {
		_, err := w.Write([]byte("xlsx"))
		return err
	})
	require.Error(t, err)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "ExportCashFlow", entry.Data["funcName"])
	assert.Equal(t, "disk full", entry.Message)
}

type failingWriter struct{ err error }

func (f failingWriter) Write([]byte) (int, error) { return 0, f.err }

func TestIsUnexpected(t *testing.T) {
	assert.False(t, IsUnexpected(fmt.Errorf("invoice 9: %w", core.ErrNotFound)))
	assert.False(t, IsUnexpected(&core.InsufficientStockError{ProductCode: "W-1"}))
	assert.False(t, IsUnexpected(core.ErrInvalidCredentials))
	assert.True(t, IsUnexpected(errors.New("pool closed")))
}
