package core

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// PayableStatus is the stored settlement state of a payable. Overdue is derived at read time.
type PayableStatus string

const (
	PayablePending       PayableStatus = "pending"
	PayablePartiallyPaid PayableStatus = "partially_paid"
	PayablePaid          PayableStatus = "paid"
)

// Payable is an accounts payable entry, either manual or one installment of an invoice.
type Payable struct {
	ID                int             `json:"id"`
	CompanyID         int             `json:"companyId"`
	VendorID          *int            `json:"vendorId,omitempty"`
	VendorName        *string         `json:"vendorName,omitempty"`
	SourceInvoiceID   *int            `json:"sourceInvoiceId,omitempty"`
	Description       string          `json:"description"`
	Category          string          `json:"category"`
	Amount            decimal.Decimal `json:"amount"`
	PaidAmount        decimal.Decimal `json:"paidAmount"`
	DueDate           string          `json:"dueDate"`
	PaidAt            *string         `json:"paidAt,omitempty"`
	InstallmentNumber int             `json:"installmentNumber"`
	InstallmentCount  int             `json:"installmentCount"`
	Status            PayableStatus   `json:"status"`
	Overdue           bool            `json:"overdue"`
	Notes             *string         `json:"notes,omitempty"`
	CreatedBy         *int            `json:"createdBy,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// Outstanding is the amount still owed.
func (p *Payable) Outstanding() decimal.Decimal {
	return p.Amount.Sub(p.PaidAmount)
}

// PayableInput holds the fields of a manual payable.
type PayableInput struct {
	VendorID    int             `json:"vendorId" validate:"omitempty,gt=0"`
	Description string          `json:"description" validate:"required,max=300"`
	Category    string          `json:"category" validate:"omitempty,max=100"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0,places=2"`
	DueDate     time.Time       `json:"dueDate" validate:"required"`
	Notes       string          `json:"notes" validate:"omitempty,max=1000"`
}

// PaymentInput records a (possibly partial) payment of a payable.
type PaymentInput struct {
	Amount        decimal.Decimal `json:"amount" validate:"gt=0,places=2"`
	PaidAt        time.Time       `json:"paidAt" validate:"required"`
	PaymentMethod string          `json:"paymentMethod" validate:"omitempty,max=40"`
}

// PayableFilter narrows GetPayables. Zero values mean "no filter".
type PayableFilter struct {
	Status          PayableStatus
	VendorID        int
	SourceInvoiceID int
	DueFrom         *time.Time
	DueTo           *time.Time
	OverdueOnly     bool
}

// PayableService manages accounts payable.
type PayableService interface {
	CreatePayable(ctx context.Context, companyID, actorID int, input PayableInput) (*Payable, error)
	GetPayables(ctx context.Context, companyID int, filter PayableFilter) ([]Payable, error)
	GetPayable(ctx context.Context, companyID, payableID int) (*Payable, error)

	// UpdatePayable edits a pending payable that was not generated by an invoice.
	UpdatePayable(ctx context.Context, companyID, payableID int, input PayableInput) (*Payable, error)

	// PayPayable applies a payment and posts the matching cash-flow exit in one transaction.
	PayPayable(ctx context.Context, companyID, payableID, actorID int, input PaymentInput) (*Payable, error)

	// DeletePayable removes a pending manual payable.
	DeletePayable(ctx context.Context, companyID, payableID int) error

	// CreateInstallmentsTx creates the installment payables of an invoice inside the caller's transaction.
	CreateInstallmentsTx(ctx context.Context, tx pgx.Tx, inv *Invoice, firstDue time.Time, actorID int) (int, error)

	// DeletePendingForInvoiceTx removes the still-pending installments of an invoice.
	// Paid and partially paid installments are left in place.
	DeletePendingForInvoiceTx(ctx context.Context, tx pgx.Tx, companyID, invoiceID int) (int64, error)
}
