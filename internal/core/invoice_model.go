package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceState is the lifecycle of an NF-e invoice: DRAFT -> PROCESSED -> CANCELLED.
// A DRAFT may also be cancelled directly; nothing leaves CANCELLED.
type InvoiceState string

const (
	InvoiceDraft     InvoiceState = "DRAFT"
	InvoiceProcessed InvoiceState = "PROCESSED"
	InvoiceCancelled InvoiceState = "CANCELLED"
)

// Status is the coarse active/cancelled view of the state.
func (s InvoiceState) Status() string {
	if s == InvoiceCancelled {
		return "cancelled"
	}
	return "active"
}

// PaymentStatus is the payment situation declared on intake.
type PaymentStatus string

const (
	PaymentPending       PaymentStatus = "pending"
	PaymentPaid          PaymentStatus = "paid"
	PaymentPartiallyPaid PaymentStatus = "partially_paid"
	PaymentOverdue       PaymentStatus = "overdue"
)

// DefaultPurchaseCategory tags cash-flow and payable rows generated from invoices.
const DefaultPurchaseCategory = "Purchases"

// Invoice is an NF-e purchase invoice header with its items.
type Invoice struct {
	ID             int             `json:"id"`
	CompanyID      int             `json:"companyId"`
	VendorID       int             `json:"vendorId"`
	VendorName     string          `json:"vendorName"`
	Number         string          `json:"nfeNumber"`
	Series         string          `json:"nfeSeries"`
	AccessKey      *string         `json:"accessKey,omitempty"`
	IssueDate      string          `json:"issueDate"`
	ReceiptDate    string          `json:"receiptDate"`
	OperationType  string          `json:"operationType"`
	TotalProducts  decimal.Decimal `json:"totalProducts"`
	TotalTax       decimal.Decimal `json:"totalTax"`
	TotalFreight   decimal.Decimal `json:"totalFreight"`
	TotalInsurance decimal.Decimal `json:"totalInsurance"`
	TotalDiscount  decimal.Decimal `json:"totalDiscount"`
	TotalOther     decimal.Decimal `json:"totalOther"`
	TotalInvoice   decimal.Decimal `json:"totalInvoice"`
	ICMSBase       decimal.Decimal `json:"icmsBase"`
	ICMSValue      decimal.Decimal `json:"icmsValue"`
	IPIValue       decimal.Decimal `json:"ipiValue"`
	PISValue       decimal.Decimal `json:"pisValue"`
	COFINSValue    decimal.Decimal `json:"cofinsValue"`
	PaymentStatus  PaymentStatus   `json:"paymentStatus"`
	PaymentMethod  *string         `json:"paymentMethod,omitempty"`
	Installments   int             `json:"installments"`
	FirstDueDate   *string         `json:"firstDueDate,omitempty"`
	Category       string          `json:"category"`
	Notes          *string         `json:"notes,omitempty"`

	State              InvoiceState `json:"state"`
	Status             string       `json:"status"`
	StockUpdated       bool         `json:"stockUpdated"`
	StockUpdatedAt     *time.Time   `json:"stockUpdatedAt,omitempty"`
	StockUpdatedBy     *int         `json:"stockUpdatedBy,omitempty"`
	PayablesCreated    bool         `json:"accountsPayableCreated"`
	PayablesCreatedAt  *time.Time   `json:"accountsPayableCreatedAt,omitempty"`
	CancellationReason *string      `json:"cancellationReason,omitempty"`
	CancelledAt        *time.Time   `json:"cancelledAt,omitempty"`
	CancelledBy        *int         `json:"cancelledBy,omitempty"`
	CreatedBy          *int         `json:"createdBy,omitempty"`
	CreatedAt          time.Time    `json:"createdAt"`
	UpdatedAt          time.Time    `json:"updatedAt"`

	Items []InvoiceItem `json:"items,omitempty"`
}

// Editable reports whether header and items may still be replaced in place.
func (inv *Invoice) Editable() bool {
	return inv.State == InvoiceDraft && !inv.StockUpdated && !inv.PayablesCreated
}

// Ref is the human-readable number/series reference used in notes and descriptions.
func (inv *Invoice) Ref() string {
	return inv.Number + "/" + inv.Series
}

// InvoiceItem is one line of an invoice. Sequence is 1-based and fixes display order.
type InvoiceItem struct {
	ID          int             `json:"id"`
	InvoiceID   int             `json:"invoiceId"`
	Sequence    int             `json:"sequence"`
	ProductID   int             `json:"productId"`
	ProductCode string          `json:"productCode"`
	ProductName string          `json:"productName"`
	Description *string         `json:"description,omitempty"`
	NCM         *string         `json:"ncm,omitempty"`
	CFOP        *string         `json:"cfop,omitempty"`
	Unit        *string         `json:"unit,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
	ICMSValue   decimal.Decimal `json:"icmsValue"`
	IPIValue    decimal.Decimal `json:"ipiValue"`
}

// InvoiceInput is the intake/edit payload.
type InvoiceInput struct {
	VendorID       int             `json:"vendorId" validate:"required,gt=0"`
	Number         string          `json:"nfeNumber" validate:"required,max=20"`
	Series         string          `json:"nfeSeries" validate:"required,max=5"`
	AccessKey      string          `json:"accessKey" validate:"omitempty,len=44,numeric"`
	IssueDate      time.Time       `json:"issueDate" validate:"required"`
	ReceiptDate    *time.Time      `json:"receiptDate"`
	OperationType  string          `json:"operationType" validate:"omitempty,max=40"`
	TotalProducts  decimal.Decimal `json:"totalProducts" validate:"gte=0,places=2"`
	TotalTax       decimal.Decimal `json:"totalTax" validate:"gte=0,places=2"`
	TotalFreight   decimal.Decimal `json:"totalFreight" validate:"gte=0,places=2"`
	TotalInsurance decimal.Decimal `json:"totalInsurance" validate:"gte=0,places=2"`
	TotalDiscount  decimal.Decimal `json:"totalDiscount" validate:"gte=0,places=2"`
	TotalOther     decimal.Decimal `json:"totalOther" validate:"gte=0,places=2"`
	TotalInvoice   decimal.Decimal `json:"totalInvoice" validate:"gte=0,places=2"`
	ICMSBase       decimal.Decimal `json:"icmsBase" validate:"gte=0,places=2"`
	ICMSValue      decimal.Decimal `json:"icmsValue" validate:"gte=0,places=2"`
	IPIValue       decimal.Decimal `json:"ipiValue" validate:"gte=0,places=2"`
	PISValue       decimal.Decimal `json:"pisValue" validate:"gte=0,places=2"`
	COFINSValue    decimal.Decimal `json:"cofinsValue" validate:"gte=0,places=2"`
	PaymentStatus  PaymentStatus   `json:"paymentStatus" validate:"required,oneof=pending paid partially_paid overdue"`
	PaymentMethod  string          `json:"paymentMethod" validate:"omitempty,max=40"`
	Installments   int             `json:"installments" validate:"gte=0,lte=120"`
	FirstDueDate   *time.Time      `json:"firstDueDate"`
	Category       string          `json:"category" validate:"omitempty,max=100"`
	Notes          string          `json:"notes" validate:"omitempty,max=1000"`
	SaveAsDraft    bool            `json:"saveAsDraft"`

	Items []InvoiceItemInput `json:"items" validate:"required,min=1,dive"`
}

// InvoiceItemInput is one line of an InvoiceInput.
type InvoiceItemInput struct {
	ProductID   int             `json:"productId" validate:"required,gt=0"`
	Description string          `json:"description" validate:"omitempty,max=300"`
	NCM         string          `json:"ncm" validate:"omitempty,max=10"`
	CFOP        string          `json:"cfop" validate:"omitempty,max=5"`
	Unit        string          `json:"unit" validate:"omitempty,max=6"`
	Quantity    decimal.Decimal `json:"quantity" validate:"gt=0,places=4"`
	UnitPrice   decimal.Decimal `json:"unitPrice" validate:"gte=0,places=4"`
	TotalPrice  decimal.Decimal `json:"totalPrice" validate:"gte=0,places=2"`
	ICMSValue   decimal.Decimal `json:"icmsValue" validate:"gte=0,places=2"`
	IPIValue    decimal.Decimal `json:"ipiValue" validate:"gte=0,places=2"`
}

// InvoiceFilter narrows ListInvoices. Zero values mean "no filter".
type InvoiceFilter struct {
	State         InvoiceState
	PaymentStatus PaymentStatus
	VendorID      int
	From          *time.Time
	To            *time.Time
}

// InvoiceService runs the NF-e intake, edit and reversal workflows.
type InvoiceService interface {
	// CreateInvoice validates input and, in one transaction, persists the invoice and its items.
	// Unless input.SaveAsDraft is set it also applies stock, payables and cash-flow effects.
	CreateInvoice(ctx context.Context, companyID, actorID int, input InvoiceInput) (*Invoice, error)

	// ProcessInvoice applies stock, payables and cash-flow effects to a DRAFT invoice.
	ProcessInvoice(ctx context.Context, companyID, invoiceID, actorID int) (*Invoice, error)

	// UpdateInvoice replaces header and the whole item set of an unprocessed invoice.
	UpdateInvoice(ctx context.Context, companyID, invoiceID int, input InvoiceInput) (*Invoice, error)

	// CancelInvoice reverses every processing side effect and marks the invoice cancelled.
	CancelInvoice(ctx context.Context, companyID, invoiceID, actorID int, reason string) (*Invoice, error)

	// DeleteInvoice removes a DRAFT invoice and its items.
	DeleteInvoice(ctx context.Context, companyID, invoiceID int) error

	GetInvoice(ctx context.Context, companyID, invoiceID int) (*Invoice, error)
	ListInvoices(ctx context.Context, companyID int, filter InvoiceFilter) ([]Invoice, error)
}
