package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// installmentSpacingDays is the gap between consecutive installment due dates.
const installmentSpacingDays = 30

// Installment is one scheduled payable derived from an invoice total.
type Installment struct {
	Number  int
	Count   int
	DueDate time.Time
	Amount  decimal.Decimal
}

// StockIncrement is the whole-unit stock delta for a fractional item quantity.
// Quantities are truncated, never rounded: 10.7 -> 10.
func StockIncrement(qty decimal.Decimal) int64 {
	return qty.Floor().IntPart()
}

// BuildInstallments splits total evenly over count installments, the first due on firstDue
// and each following one 30 days later. Each amount is total/count rounded to cents;
// the rounding remainder is not redistributed.
func BuildInstallments(total decimal.Decimal, count int, firstDue time.Time) []Installment {
	if count <= 0 {
		return nil
	}
	amount := total.DivRound(decimal.NewFromInt(int64(count)), 2)
	first := dateOnly(firstDue)
	out := make([]Installment, count)
	for i := 0; i < count; i++ {
		out[i] = Installment{
			Number:  i + 1,
			Count:   count,
			DueDate: first.AddDate(0, 0, installmentSpacingDays*i),
			Amount:  amount,
		}
	}
	return out
}

// InstallmentDescription embeds the invoice reference and, for split payments, the installment index.
func InstallmentDescription(ref string, number, count int) string {
	if count > 1 {
		return fmt.Sprintf("NF-e %s - installment %d/%d", ref, number, count)
	}
	return fmt.Sprintf("NF-e %s", ref)
}

// Normalize fills derived fields: item totals, the products total, the grand total when not
// declared, and defaults for receipt date, category and operation type.
func (in *InvoiceInput) Normalize(today time.Time) {
	var products decimal.Decimal
	for i := range in.Items {
		it := &in.Items[i]
		if it.TotalPrice.IsZero() {
			it.TotalPrice = it.Quantity.Mul(it.UnitPrice).Round(2)
		}
		products = products.Add(it.TotalPrice)
	}
	if in.TotalProducts.IsZero() {
		in.TotalProducts = products
	}
	if in.TotalInvoice.IsZero() {
		in.TotalInvoice = in.TotalProducts.
			Add(in.TotalTax).
			Add(in.TotalFreight).
			Add(in.TotalInsurance).
			Add(in.TotalOther).
			Sub(in.TotalDiscount)
	}
	if in.ReceiptDate == nil {
		d := dateOnly(today)
		in.ReceiptDate = &d
	}
	if in.Category == "" {
		in.Category = DefaultPurchaseCategory
	}
	if in.OperationType == "" {
		in.OperationType = "purchase"
	}
}

// Check runs every precondition that must hold before a transaction is opened.
// Call Normalize first so a computed grand total is taken into account. Amounts must be
// exact at the decimal places their columns store.
func (in *InvoiceInput) Check() error {
	if err := Validate(in); err != nil {
		return err
	}
	if !in.TotalInvoice.IsPositive() {
		return &ValidationError{Message: "invalid input", Fields: map[string]string{"totalInvoice": "gt=0"}}
	}
	return nil
}

// GeneratesPayables reports whether processing creates installment payables.
func (in *InvoiceInput) GeneratesPayables() bool {
	return generatesPayables(in.PaymentStatus, in.FirstDueDate != nil, in.Installments)
}

func generatesPayables(status PaymentStatus, hasFirstDue bool, installments int) bool {
	return status == PaymentPending && hasFirstDue && installments > 0
}

// CashFigures is the outcome of a cash register close.
type CashFigures struct {
	Expected   decimal.Decimal
	Difference decimal.Decimal
}

// ComputeClose returns expected = opening + entries - exits and difference = counted - expected.
// Withdrawals are not part of this computation.
func ComputeClose(opening, entries, exits, counted decimal.Decimal) CashFigures {
	expected := opening.Add(entries).Sub(exits)
	return CashFigures{Expected: expected, Difference: counted.Sub(expected)}
}
