package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type SessionStatus string

const (
	SessionOpen   SessionStatus = "open"
	SessionClosed SessionStatus = "closed"
)

// CashSession is one cash register session: open -> closed, at most one open per company per date.
// The closing figures are null until the session is closed.
type CashSession struct {
	ID             int                 `json:"id"`
	CompanyID      int                 `json:"companyId"`
	SessionDate    string              `json:"sessionDate"`
	Status         SessionStatus       `json:"status"`
	OpeningAmount  decimal.Decimal     `json:"openingAmount"`
	OpeningNotes   *string             `json:"openingNotes,omitempty"`
	OpenedBy       *int                `json:"openedBy,omitempty"`
	OpenedAt       time.Time           `json:"openedAt"`
	TotalEntries   decimal.NullDecimal `json:"totalEntries"`
	TotalExits     decimal.NullDecimal `json:"totalExits"`
	ExpectedAmount decimal.NullDecimal `json:"expectedAmount"`
	ClosingAmount  decimal.NullDecimal `json:"closingAmount"`
	Difference     decimal.NullDecimal `json:"difference"`
	ClosingNotes   *string             `json:"closingNotes,omitempty"`
	ClosedBy       *int                `json:"closedBy,omitempty"`
	ClosedAt       *time.Time          `json:"closedAt,omitempty"`
}

type OpenSessionInput struct {
	// SessionDate defaults to today when zero.
	SessionDate   time.Time       `json:"sessionDate"`
	OpeningAmount decimal.Decimal `json:"openingAmount" validate:"gte=0,places=2"`
	OpeningNotes  string          `json:"openingNotes" validate:"omitempty,max=1000"`
}

type CloseSessionInput struct {
	ClosingAmount decimal.Decimal `json:"closingAmount" validate:"gte=0,places=2"`
	ClosingNotes  string          `json:"closingNotes" validate:"omitempty,max=1000"`
}

// Withdrawal is a sangria: cash removed from the register during an open session.
type Withdrawal struct {
	ID        int             `json:"id"`
	CompanyID int             `json:"companyId"`
	SessionID int             `json:"sessionId"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
	CreatedBy *int            `json:"createdBy,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

type WithdrawalInput struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0,places=2"`
	Reason string          `json:"reason" validate:"required,max=300"`
}

// CashSessionService runs the cash register open/close workflow and the sangria ledger.
type CashSessionService interface {
	OpenSession(ctx context.Context, companyID, actorID int, input OpenSessionInput) (*CashSession, error)

	// CloseSession computes expected = opening + entries - exits of the session date and
	// difference = counted - expected. Withdrawals are not netted here.
	CloseSession(ctx context.Context, companyID, sessionID, actorID int, input CloseSessionInput) (*CashSession, error)

	GetSession(ctx context.Context, companyID, sessionID int) (*CashSession, error)
	GetOpenSession(ctx context.Context, companyID int, date time.Time) (*CashSession, error)
	ListSessions(ctx context.Context, companyID int, from, to *time.Time) ([]CashSession, error)

	RecordWithdrawal(ctx context.Context, companyID, sessionID, actorID int, input WithdrawalInput) (*Withdrawal, error)
	ListWithdrawals(ctx context.Context, companyID, sessionID int) ([]Withdrawal, error)
}
