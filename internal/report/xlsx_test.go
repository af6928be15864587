package report

import (
	"bytes"
	"testing"

	"cashflow/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func readRows(t *testing.T, buf *bytes.Buffer) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func TestCashFlow(t *testing.T) {
	method := "pix"
	txs := []core.CashFlowTransaction{
		{TransactionDate: "2024-03-01", Type: core.CashEntry, Category: "Sales", Description: "counter", Amount: decimal.RequireFromString("500.00"), PaymentMethod: &method},
		{TransactionDate: "2024-03-01", Type: core.CashExit, Category: "Purchases", Description: "NF-e 100/1", Amount: decimal.RequireFromString("53.50")},
	}

	var buf bytes.Buffer
	require.NoError(t, CashFlow(&buf, txs))

	rows := readRows(t, &buf)
	require.Len(t, rows, 7)
	assert.Equal(t, []string{"Date", "Type", "Category", "Description", "Payment Method", "Amount"}, rows[0])
	assert.Equal(t, "pix", rows[1][4])
	assert.Equal(t, "53.5", rows[2][5])
	assert.Equal(t, "Net", rows[6][4])
	assert.Equal(t, "446.5", rows[6][5])
}

func TestPayables_MarksOverdue(t *testing.T) {
	vendor := "Fornecedor Alfa"
	var buf bytes.Buffer
	require.NoError(t, Payables(&buf, []core.Payable{{
		DueDate: "2024-01-10", VendorName: &vendor, Description: "NF-e 200/1 - installment 1/3",
		Category: "Purchases", InstallmentNumber: 1, InstallmentCount: 3,
		Amount: decimal.NewFromInt(100), PaidAmount: decimal.NewFromInt(40),
		Status: core.PayablePartiallyPaid, Overdue: true,
	}}))

	rows := readRows(t, &buf)
	require.Len(t, rows, 2)
	assert.Equal(t, "Fornecedor Alfa", rows[1][1])
	assert.Equal(t, "1/3", rows[1][4])
	assert.Equal(t, "60", rows[1][7])
	assert.Equal(t, "overdue", rows[1][8])
}

func TestBudgetVsActual(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, BudgetVsActual(&buf, []core.BudgetVsActual{
		core.NewBudgetVsActual("Purchases", 2024, 1, decimal.NewFromInt(200), decimal.RequireFromString("53.50")),
	}))

	rows := readRows(t, &buf)
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-01", rows[1][0])
	assert.Equal(t, "146.5", rows[1][4])
}

func TestSessions_OpenSessionHasBlankFigures(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Sessions(&buf, []core.CashSession{
		{SessionDate: "2024-03-01", Status: core.SessionOpen, OpeningAmount: decimal.NewFromInt(100)},
	}))

	rows := readRows(t, &buf)
	require.Len(t, rows, 2)
	assert.Equal(t, "open", rows[1][1])
	assert.Equal(t, "100", rows[1][2])
	for _, cell := range rows[1][3:] {
		assert.Empty(t, cell)
	}
}
