package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"cashflow/internal/core"

	"github.com/shopspring/decimal"
)

func manualCash(t *testing.T, svc services, typ core.CashFlowType, amount, day string) {
	t.Helper()
	_, err := svc.cashFlow.CreateTransaction(context.Background(), companyA, userA, core.CashFlowInput{
		Type:            typ,
		Category:        "Sales",
		Description:     "counter " + string(typ),
		Amount:          decimal.RequireFromString(amount),
		TransactionDate: date(t, day),
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
}

func TestCashSession_OpenClose(t *testing.T) {
	pool := setupTestDB(t)
	svc := newServices(pool)
	ctx := context.Background()

	session, err := svc.sessions.OpenSession(ctx, companyA, userA, core.OpenSessionInput{
		SessionDate:   date(t, "2024-03-01"),
		OpeningAmount: decimal.RequireFromString("100.00"),
	})
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if session.Status != core.SessionOpen || session.ExpectedAmount.Valid {
		t.Errorf("expected open session without closing figures, got %+v", session)
	}

	manualCash(t, svc, core.CashEntry, "300.00", "2024-03-01")
	manualCash(t, svc, core.CashEntry, "200.00", "2024-03-01")
	manualCash(t, svc, core.CashExit, "50.00", "2024-03-01")
	manualCash(t, svc, core.CashEntry, "999.00", "2024-03-02")

	// Sangria is tracked separately and does not change the close.
	if _, err := svc.sessions.RecordWithdrawal(ctx, companyA, session.ID, userA, core.WithdrawalInput{
		Amount: decimal.RequireFromString("80.00"),
		Reason: "bank deposit",
	}); err != nil {
		t.Fatalf("RecordWithdrawal: %v", err)
	}

	closed, err := svc.sessions.CloseSession(ctx, companyA, session.ID, userA, core.CloseSessionInput{
		ClosingAmount: decimal.RequireFromString("545.00"),
	})
	if err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if closed.Status != core.SessionClosed || closed.ClosedAt == nil {
		t.Errorf("expected closed session, got %s", closed.Status)
	}
	if !closed.ExpectedAmount.Decimal.Equal(decimal.RequireFromString("550.00")) {
		t.Errorf("expected 550.00, got %s", closed.ExpectedAmount.Decimal)
	}
	if !closed.Difference.Decimal.Equal(decimal.RequireFromString("-5.00")) {
		t.Errorf("expected difference -5.00, got %s", closed.Difference.Decimal)
	}
	if !closed.TotalEntries.Decimal.Equal(decimal.RequireFromString("500.00")) || !closed.TotalExits.Decimal.Equal(decimal.RequireFromString("50.00")) {
		t.Errorf("unexpected totals: entries=%s exits=%s", closed.TotalEntries.Decimal, closed.TotalExits.Decimal)
	}

	if _, err := svc.sessions.CloseSession(ctx, companyA, session.ID, userA, core.CloseSessionInput{}); !errors.Is(err, core.ErrConflict) {
		t.Errorf("expected conflict closing twice, got %v", err)
	}
	if _, err := svc.sessions.RecordWithdrawal(ctx, companyA, session.ID, userA, core.WithdrawalInput{
		Amount: decimal.NewFromInt(1), Reason: "late",
	}); !errors.Is(err, core.ErrConflict) {
		t.Errorf("expected conflict for withdrawal on closed session, got %v", err)
	}

	ws, err := svc.sessions.ListWithdrawals(ctx, companyA, session.ID)
	if err != nil {
		t.Fatalf("ListWithdrawals: %v", err)
	}
	if len(ws) != 1 || !core.WithdrawalTotal(ws).Equal(decimal.RequireFromString("80.00")) {
		t.Errorf("expected one 80.00 withdrawal, got %+v", ws)
	}
}

func TestCashSession_OnePerDay(t *testing.T) {
	pool := setupTestDB(t)
	svc := newServices(pool)
	ctx := context.Background()

	open := core.OpenSessionInput{SessionDate: date(t, "2024-04-02"), OpeningAmount: decimal.NewFromInt(50)}
	first, err := svc.sessions.OpenSession(ctx, companyA, userA, open)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if _, err := svc.sessions.OpenSession(ctx, companyA, userA, open); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected conflict for second open session, got %v", err)
	}

	// Another company has its own register.
	if _, err := svc.sessions.OpenSession(ctx, companyB, userB, open); err != nil {
		t.Fatalf("OpenSession company B: %v", err)
	}

	current, err := svc.sessions.GetOpenSession(ctx, companyA, date(t, "2024-04-02"))
	if err != nil || current.ID != first.ID {
		t.Fatalf("GetOpenSession: %v", err)
	}

	if _, err := svc.sessions.CloseSession(ctx, companyA, first.ID, userA, core.CloseSessionInput{ClosingAmount: decimal.NewFromInt(50)}); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if _, err := svc.sessions.GetOpenSession(ctx, companyA, date(t, "2024-04-02")); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected no open session after close, got %v", err)
	}
}

func TestCashSession_ConcurrentOpen(t *testing.T) {
	pool := setupTestDB(t)
	svc := newServices(pool)
	ctx := context.Background()

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		opened    int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.sessions.OpenSession(ctx, companyA, userA, core.OpenSessionInput{
				SessionDate:   date(t, "2024-05-06"),
				OpeningAmount: decimal.NewFromInt(10),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				opened++
			case errors.Is(err, core.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if opened != 1 || conflicts != workers-1 {
		t.Errorf("expected 1 open and %d conflicts, got %d and %d", workers-1, opened, conflicts)
	}
	if n := countRows(t, pool, "SELECT COUNT(*) FROM cash_register_sessions WHERE company_id = $1 AND status = 'open'", companyA); n != 1 {
		t.Errorf("expected exactly one open session row, got %d", n)
	}
}

func TestCashSession_Validation(t *testing.T) {
	pool := setupTestDB(t)
	svc := newServices(pool)
	ctx := context.Background()

	_, err := svc.sessions.OpenSession(ctx, companyA, userA, core.OpenSessionInput{OpeningAmount: decimal.NewFromInt(-1)})
	if !errors.Is(err, core.ErrValidation) {
		t.Errorf("expected validation error for negative opening, got %v", err)
	}
	if n := countRows(t, pool, "SELECT COUNT(*) FROM cash_register_sessions"); n != 0 {
		t.Errorf("expected no session rows, got %d", n)
	}
}
