package app

import (
	"time"

	"cashflow/internal/core"
)

// Request types carry calendar dates as "YYYY-MM-DD" strings; the embedded core
// inputs hold time.Time values. Fields declared here shadow the embedded ones in JSON.

// InvoiceRequest is the intake and edit payload.
type InvoiceRequest struct {
	core.InvoiceInput
	IssueDate    string `json:"issueDate"`
	ReceiptDate  string `json:"receiptDate"`
	FirstDueDate string `json:"firstDueDate"`
}

func (r InvoiceRequest) toInput() (core.InvoiceInput, error) {
	in := r.InvoiceInput
	p := dateParser{}
	in.IssueDate = p.required("issueDate", r.IssueDate)
	in.ReceiptDate = p.optional("receiptDate", r.ReceiptDate)
	in.FirstDueDate = p.optional("firstDueDate", r.FirstDueDate)
	return in, p.err()
}

// PayableRequest is the manual payable create/update payload.
type PayableRequest struct {
	core.PayableInput
	DueDate string `json:"dueDate"`
}

func (r PayableRequest) toInput() (core.PayableInput, error) {
	in := r.PayableInput
	p := dateParser{}
	in.DueDate = p.required("dueDate", r.DueDate)
	return in, p.err()
}

// PaymentRequest settles all or part of a payable. An empty paidAt means today.
type PaymentRequest struct {
	core.PaymentInput
	PaidAt string `json:"paidAt"`
}

func (r PaymentRequest) toInput(now time.Time) (core.PaymentInput, error) {
	in := r.PaymentInput
	p := dateParser{}
	in.PaidAt = p.orDefault("paidAt", r.PaidAt, now)
	return in, p.err()
}

// CashFlowRequest is a manual cash-flow entry or exit.
type CashFlowRequest struct {
	core.CashFlowInput
	TransactionDate string `json:"transactionDate"`
}

func (r CashFlowRequest) toInput(now time.Time) (core.CashFlowInput, error) {
	in := r.CashFlowInput
	p := dateParser{}
	in.TransactionDate = p.orDefault("transactionDate", r.TransactionDate, now)
	return in, p.err()
}

// OpenSessionRequest opens the register. An empty sessionDate means today.
type OpenSessionRequest struct {
	core.OpenSessionInput
	SessionDate string `json:"sessionDate"`
}

func (r OpenSessionRequest) toInput(now time.Time) (core.OpenSessionInput, error) {
	in := r.OpenSessionInput
	p := dateParser{}
	in.SessionDate = p.orDefault("sessionDate", r.SessionDate, now)
	return in, p.err()
}

// DateRange bounds a listing; empty ends are open.
type DateRange struct {
	From string
	To   string
}

func (q DateRange) bounds() (from, to *time.Time, err error) {
	p := dateParser{}
	from = p.optional("from", q.From)
	to = p.optional("to", q.To)
	return from, to, p.err()
}

// InvoiceQuery filters ListInvoices.
type InvoiceQuery struct {
	DateRange
	State         string
	PaymentStatus string
	VendorID      int
}

func (q InvoiceQuery) toFilter() (core.InvoiceFilter, error) {
	from, to, err := q.bounds()
	return core.InvoiceFilter{
		State:         core.InvoiceState(q.State),
		PaymentStatus: core.PaymentStatus(q.PaymentStatus),
		VendorID:      q.VendorID,
		From:          from,
		To:            to,
	}, err
}

// PayableQuery filters ListPayables; the range applies to the due date.
type PayableQuery struct {
	DateRange
	Status          string
	VendorID        int
	SourceInvoiceID int
	OverdueOnly     bool
}

func (q PayableQuery) toFilter() (core.PayableFilter, error) {
	from, to, err := q.bounds()
	return core.PayableFilter{
		Status:          core.PayableStatus(q.Status),
		VendorID:        q.VendorID,
		SourceInvoiceID: q.SourceInvoiceID,
		DueFrom:         from,
		DueTo:           to,
		OverdueOnly:     q.OverdueOnly,
	}, err
}

// CashFlowQuery filters ListCashFlow and the cash-flow export.
type CashFlowQuery struct {
	DateRange
	Type     string
	Category string
}

func (q CashFlowQuery) toFilter() (core.CashFlowFilter, error) {
	from, to, err := q.bounds()
	return core.CashFlowFilter{
		Type:     core.CashFlowType(q.Type),
		Category: q.Category,
		From:     from,
		To:       to,
	}, err
}

// dateParser collects every malformed date of a payload into one ValidationError.
type dateParser struct {
	fields map[string]string
}

func (p *dateParser) fail(field, rule string) {
	if p.fields == nil {
		p.fields = map[string]string{}
	}
	p.fields[field] = rule
}

func (p *dateParser) parse(field, s string) (time.Time, bool) {
	t, err := time.Parse(core.DateLayout, s)
	if err != nil {
		p.fail(field, "date")
		return time.Time{}, false
	}
	return t, true
}

func (p *dateParser) required(field, s string) time.Time {
	if s == "" {
		p.fail(field, "required")
		return time.Time{}
	}
	t, _ := p.parse(field, s)
	return t
}

func (p *dateParser) optional(field, s string) *time.Time {
	if s == "" {
		return nil
	}
	if t, ok := p.parse(field, s); ok {
		return &t
	}
	return nil
}

func (p *dateParser) orDefault(field, s string, def time.Time) time.Time {
	if s == "" {
		y, m, d := def.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	t, _ := p.parse(field, s)
	return t
}

func (p *dateParser) err() error {
	if len(p.fields) == 0 {
		return nil
	}
	return &core.ValidationError{Message: "invalid date", Fields: p.fields}
}
