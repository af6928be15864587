package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type cashSessionService struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewCashSessionService(pool *pgxpool.Pool) CashSessionService {
	return &cashSessionService{pool: pool, now: time.Now}
}

const sessionColumns = `id, company_id, session_date::text, status, opening_amount, opening_notes, opened_by, opened_at,
	total_entries, total_exits, expected_amount, closing_amount, difference, closing_notes, closed_by, closed_at`

func scanSession(row interface{ Scan(...any) error }, cs *CashSession) error {
	return row.Scan(&cs.ID, &cs.CompanyID, &cs.SessionDate, &cs.Status, &cs.OpeningAmount, &cs.OpeningNotes,
		&cs.OpenedBy, &cs.OpenedAt, &cs.TotalEntries, &cs.TotalExits, &cs.ExpectedAmount, &cs.ClosingAmount,
		&cs.Difference, &cs.ClosingNotes, &cs.ClosedBy, &cs.ClosedAt)
}

func (s *cashSessionService) OpenSession(ctx context.Context, companyID, actorID int, input OpenSessionInput) (*CashSession, error) {
	if err := Validate(input); err != nil {
		return nil, err
	}
	date := input.SessionDate
	if date.IsZero() {
		date = s.now()
	}
	date = dateOnly(date)
	day := date.Format(DateLayout)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Serialises concurrent opens for the same company.
	var locked int
	if err := tx.QueryRow(ctx, "SELECT id FROM companies WHERE id = $1 FOR UPDATE", companyID).Scan(&locked); err != nil {
		return nil, notFoundOr(err, "company %d", companyID)
	}

	var exists bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM cash_register_sessions
		              WHERE company_id = $1 AND session_date = $2 AND status = 'open')`,
		companyID, date,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check open session: %w", err)
	}
	if exists {
		return nil, conflictf("a cash session is already open for %s", day)
	}

	cs := &CashSession{}
	err = scanSession(tx.QueryRow(ctx, `
		INSERT INTO cash_register_sessions (company_id, session_date, status, opening_amount, opening_notes, opened_by)
		VALUES ($1, $2, 'open', $3, $4, $5)
		RETURNING `+sessionColumns,
		companyID, date, input.OpeningAmount, toPtr(input.OpeningNotes), intPtr(actorID),
	), cs)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, conflictf("a cash session is already open for %s", day)
		}
		return nil, fmt.Errorf("insert cash session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit cash session open: %w", err)
	}
	return cs, nil
}

func (s *cashSessionService) CloseSession(ctx context.Context, companyID, sessionID, actorID int, input CloseSessionInput) (*CashSession, error) {
	if err := Validate(input); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	cs := &CashSession{}
	if err := scanSession(tx.QueryRow(ctx,
		"SELECT "+sessionColumns+" FROM cash_register_sessions WHERE company_id = $1 AND id = $2 FOR UPDATE",
		companyID, sessionID,
	), cs); err != nil {
		return nil, notFoundOr(err, "cash session %d", sessionID)
	}
	if cs.Status != SessionOpen {
		return nil, conflictf("cash session %d is already closed", sessionID)
	}

	date, err := time.Parse(DateLayout, cs.SessionDate)
	if err != nil {
		return nil, fmt.Errorf("parse session date %q: %w", cs.SessionDate, err)
	}
	entries, exits, err := sumForDate(ctx, tx, companyID, date)
	if err != nil {
		return nil, err
	}
	figures := ComputeClose(cs.OpeningAmount, entries, exits, input.ClosingAmount)

	closed := &CashSession{}
	if err := scanSession(tx.QueryRow(ctx, `
		UPDATE cash_register_sessions
		SET status = 'closed', total_entries = $2, total_exits = $3, expected_amount = $4,
		    closing_amount = $5, difference = $6, closing_notes = $7, closed_by = $8, closed_at = NOW()
		WHERE id = $1
		RETURNING `+sessionColumns,
		sessionID, entries, exits, figures.Expected, input.ClosingAmount, figures.Difference,
		toPtr(input.ClosingNotes), intPtr(actorID),
	), closed); err != nil {
		return nil, fmt.Errorf("close cash session %d: %w", sessionID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit cash session close: %w", err)
	}
	return closed, nil
}

func (s *cashSessionService) GetSession(ctx context.Context, companyID, sessionID int) (*CashSession, error) {
	cs := &CashSession{}
	if err := scanSession(s.pool.QueryRow(ctx,
		"SELECT "+sessionColumns+" FROM cash_register_sessions WHERE company_id = $1 AND id = $2",
		companyID, sessionID,
	), cs); err != nil {
		return nil, notFoundOr(err, "cash session %d", sessionID)
	}
	return cs, nil
}

func (s *cashSessionService) GetOpenSession(ctx context.Context, companyID int, date time.Time) (*CashSession, error) {
	if date.IsZero() {
		date = s.now()
	}
	cs := &CashSession{}
	if err := scanSession(s.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM cash_register_sessions
		WHERE company_id = $1 AND session_date = $2 AND status = 'open'`,
		companyID, dateOnly(date),
	), cs); err != nil {
		return nil, notFoundOr(err, "open cash session for %s", dateOnly(date).Format(DateLayout))
	}
	return cs, nil
}

func (s *cashSessionService) ListSessions(ctx context.Context, companyID int, from, to *time.Time) ([]CashSession, error) {
	query := "SELECT " + sessionColumns + " FROM cash_register_sessions WHERE company_id = $1"
	args := []any{companyID}
	if from != nil {
		args = append(args, dateOnly(*from))
		query += fmt.Sprintf(" AND session_date >= $%d", len(args))
	}
	if to != nil {
		args = append(args, dateOnly(*to))
		query += fmt.Sprintf(" AND session_date <= $%d", len(args))
	}
	query += " ORDER BY session_date DESC, id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cash sessions: %w", err)
	}
	defer rows.Close()

	var sessions []CashSession
	for rows.Next() {
		var cs CashSession
		if err := scanSession(rows, &cs); err != nil {
			return nil, fmt.Errorf("scan cash session: %w", err)
		}
		sessions = append(sessions, cs)
	}
	return sessions, rows.Err()
}

func (s *cashSessionService) RecordWithdrawal(ctx context.Context, companyID, sessionID, actorID int, input WithdrawalInput) (*Withdrawal, error) {
	if err := Validate(input); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Holding the session row keeps a concurrent close from slipping in between.
	var status SessionStatus
	if err := tx.QueryRow(ctx,
		"SELECT status FROM cash_register_sessions WHERE company_id = $1 AND id = $2 FOR UPDATE",
		companyID, sessionID,
	).Scan(&status); err != nil {
		return nil, notFoundOr(err, "cash session %d", sessionID)
	}
	if status != SessionOpen {
		return nil, conflictf("cash session %d is closed", sessionID)
	}

	w := &Withdrawal{}
	if err := tx.QueryRow(ctx, `
		INSERT INTO cash_withdrawals (company_id, session_id, amount, reason, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, company_id, session_id, amount, reason, created_by, created_at`,
		companyID, sessionID, input.Amount, input.Reason, intPtr(actorID),
	).Scan(&w.ID, &w.CompanyID, &w.SessionID, &w.Amount, &w.Reason, &w.CreatedBy, &w.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert withdrawal: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit withdrawal: %w", err)
	}
	return w, nil
}

func (s *cashSessionService) ListWithdrawals(ctx context.Context, companyID, sessionID int) ([]Withdrawal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, company_id, session_id, amount, reason, created_by, created_at
		FROM cash_withdrawals
		WHERE company_id = $1 AND session_id = $2
		ORDER BY created_at, id`,
		companyID, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	defer rows.Close()

	var out []Withdrawal
	for rows.Next() {
		var w Withdrawal
		if err := rows.Scan(&w.ID, &w.CompanyID, &w.SessionID, &w.Amount, &w.Reason, &w.CreatedBy, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan withdrawal: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// WithdrawalTotal sums a session's sangria entries.
func WithdrawalTotal(ws []Withdrawal) decimal.Decimal {
	total := decimal.Zero
	for _, w := range ws {
		total = total.Add(w.Amount)
	}
	return total
}
