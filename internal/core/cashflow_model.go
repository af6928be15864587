package core

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// CashFlowType is the direction of a cash movement.
type CashFlowType string

const (
	CashEntry CashFlowType = "entry"
	CashExit  CashFlowType = "exit"
)

// CashFlowTransaction is one row of the cash ledger.
type CashFlowTransaction struct {
	ID              int             `json:"id"`
	CompanyID       int             `json:"companyId"`
	Type            CashFlowType    `json:"type"`
	Category        string          `json:"category"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionDate string          `json:"transactionDate"`
	PaymentMethod   *string         `json:"paymentMethod,omitempty"`
	VendorID        *int            `json:"vendorId,omitempty"`
	CustomerID      *int            `json:"customerId,omitempty"`
	SourceInvoiceID *int            `json:"sourceInvoiceId,omitempty"`
	SourcePayableID *int            `json:"sourcePayableId,omitempty"`
	CreatedBy       *int            `json:"createdBy,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// Generated reports whether the row was produced by an invoice or a payable payment.
func (t *CashFlowTransaction) Generated() bool {
	return t.SourceInvoiceID != nil || t.SourcePayableID != nil
}

// CashFlowInput holds the fields of a cash ledger row.
type CashFlowInput struct {
	Type            CashFlowType    `json:"type" validate:"required,oneof=entry exit"`
	Category        string          `json:"category" validate:"required,max=100"`
	Description     string          `json:"description" validate:"required,max=300"`
	Amount          decimal.Decimal `json:"amount" validate:"gt=0,places=2"`
	TransactionDate time.Time       `json:"transactionDate" validate:"required"`
	PaymentMethod   string          `json:"paymentMethod" validate:"omitempty,max=40"`
	VendorID        int             `json:"vendorId" validate:"omitempty,gt=0"`
	CustomerID      int             `json:"customerId" validate:"omitempty,gt=0"`
}

// CashFlowSource links a generated row to the record that produced it.
type CashFlowSource struct {
	InvoiceID int
	PayableID int
}

// CashFlowFilter narrows GetTransactions. Zero values mean "no filter".
type CashFlowFilter struct {
	Type     CashFlowType
	Category string
	From     *time.Time
	To       *time.Time
}

// DailySummary totals the ledger for one calendar date.
type DailySummary struct {
	Date    string          `json:"date"`
	Entries decimal.Decimal `json:"entries"`
	Exits   decimal.Decimal `json:"exits"`
	Net     decimal.Decimal `json:"net"`
}

// CashFlowService manages the cash ledger.
type CashFlowService interface {
	CreateTransaction(ctx context.Context, companyID, actorID int, input CashFlowInput) (*CashFlowTransaction, error)
	GetTransactions(ctx context.Context, companyID int, filter CashFlowFilter) ([]CashFlowTransaction, error)
	GetTransaction(ctx context.Context, companyID, transactionID int) (*CashFlowTransaction, error)

	// DeleteTransaction removes a manual row. Generated rows are removed only by their source's reversal.
	DeleteTransaction(ctx context.Context, companyID, transactionID int) error

	GetDailySummary(ctx context.Context, companyID int, date time.Time) (*DailySummary, error)

	// RecordTx inserts a ledger row inside the caller's transaction.
	RecordTx(ctx context.Context, tx pgx.Tx, companyID, actorID int, input CashFlowInput, src CashFlowSource) (*CashFlowTransaction, error)

	// DeleteForInvoiceTx removes the row generated by an invoice's intake, matched by source key.
	DeleteForInvoiceTx(ctx context.Context, tx pgx.Tx, companyID, invoiceID int) (int64, error)
}
