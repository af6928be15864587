// Package report renders back-office listings as XLSX workbooks.
package report

import (
	"fmt"
	"io"

	"cashflow/internal/core"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ContentType is the MIME type of the workbooks written here.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const sheet = "Sheet1"

// table writes a header row and one row per record into a fresh workbook.
type table struct {
	f   *excelize.File
	row int
}

func newTable(headers ...string) (*table, error) {
	f := excelize.NewFile()
	if _, err := f.NewSheet(sheet); err != nil {
		return nil, err
	}
	t := &table{f: f, row: 1}
	cells := make([]any, len(headers))
	for i, h := range headers {
		cells[i] = h
	}
	if err := t.append(cells...); err != nil {
		return nil, err
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(headers), 1)
		_ = f.SetCellStyle(sheet, "A1", last, style)
	}
	return t, nil
}

func (t *table) append(values ...any) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, t.row)
		if err != nil {
			return err
		}
		if err := t.f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("set %s: %w", cell, err)
		}
	}
	t.row++
	return nil
}

func (t *table) write(w io.Writer) error {
	defer t.f.Close()
	return t.f.Write(w)
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

// CashFlow writes the ledger rows followed by entry, exit and net totals.
func CashFlow(w io.Writer, txs []core.CashFlowTransaction) error {
	t, err := newTable("Date", "Type", "Category", "Description", "Payment Method", "Amount")
	if err != nil {
		return err
	}
	entries, exits := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		if tx.Type == core.CashEntry {
			entries = entries.Add(tx.Amount)
		} else {
			exits = exits.Add(tx.Amount)
		}
		if err := t.append(tx.TransactionDate, string(tx.Type), tx.Category, tx.Description,
			deref(tx.PaymentMethod, ""), money(tx.Amount)); err != nil {
			return err
		}
	}
	t.row++
	for _, total := range []struct {
		label string
		value decimal.Decimal
	}{
		{"Total entries", entries},
		{"Total exits", exits},
		{"Net", entries.Sub(exits)},
	} {
		if err := t.append("", "", "", "", total.label, money(total.value)); err != nil {
			return err
		}
	}
	return t.write(w)
}

// Payables writes one row per payable.
func Payables(w io.Writer, payables []core.Payable) error {
	t, err := newTable("Due Date", "Vendor", "Description", "Category", "Installment", "Amount", "Paid", "Outstanding", "Status")
	if err != nil {
		return err
	}
	for _, p := range payables {
		status := string(p.Status)
		if p.Overdue {
			status = "overdue"
		}
		if err := t.append(p.DueDate, deref(p.VendorName, ""), p.Description, p.Category,
			fmt.Sprintf("%d/%d", p.InstallmentNumber, p.InstallmentCount),
			money(p.Amount), money(p.PaidAmount), money(p.Outstanding()), status); err != nil {
			return err
		}
	}
	return t.write(w)
}

// BudgetVsActual writes the monthly comparison.
func BudgetVsActual(w io.Writer, rows []core.BudgetVsActual) error {
	t, err := newTable("Period", "Category", "Planned", "Actual", "Variance", "Used %")
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := t.append(fmt.Sprintf("%04d-%02d", r.Year, r.Month), r.Category,
			money(r.Planned), money(r.Actual), money(r.Variance), money(r.UsedPercent)); err != nil {
			return err
		}
	}
	return t.write(w)
}

// Sessions writes closed and open cash register sessions.
func Sessions(w io.Writer, sessions []core.CashSession) error {
	t, err := newTable("Date", "Status", "Opening", "Entries", "Exits", "Expected", "Counted", "Difference")
	if err != nil {
		return err
	}
	nullable := func(d decimal.NullDecimal) any {
		if !d.Valid {
			return ""
		}
		return money(d.Decimal)
	}
	for _, s := range sessions {
		if err := t.append(s.SessionDate, string(s.Status), money(s.OpeningAmount),
			nullable(s.TotalEntries), nullable(s.TotalExits), nullable(s.ExpectedAmount),
			nullable(s.ClosingAmount), nullable(s.Difference)); err != nil {
			return err
		}
	}
	return t.write(w)
}
