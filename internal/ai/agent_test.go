package ai

import (
	"testing"

	"cashflow/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraftSchema_IsStrict(t *testing.T) {
	schema, err := draftSchema()
	require.NoError(t, err)

	assert.Equal(t, false, schema["additionalProperties"])
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	for _, name := range []string{"vendorId", "nfeNumber", "nfeSeries", "issueDate", "totalInvoice", "items"} {
		assert.Contains(t, props, name)
	}
	required, ok := schema["required"].([]any)
	require.True(t, ok)
	assert.Len(t, required, len(props))
}

func TestDraft_NormalizeAmounts(t *testing.T) {
	d := InvoiceDraft{
		Number:        " 1234 ",
		AccessKey:     "3524 0112 3456",
		TotalInvoice:  "R$ 1.234,50",
		TotalFreight:  "abc",
		PaymentStatus: "overdue",
		Confidence:    1.7,
		Items:         []DraftItem{{Quantity: "2", UnitPrice: "10,5"}},
	}
	d.Normalize()

	assert.Equal(t, "1234", d.Number)
	assert.Equal(t, "1", d.Series)
	assert.Equal(t, "352401123456", d.AccessKey)
	assert.Equal(t, "1234.50", d.TotalInvoice)
	assert.Equal(t, "", d.TotalFreight)
	assert.Equal(t, string(core.PaymentPending), d.PaymentStatus)
	assert.Equal(t, 1.0, d.Confidence)
	assert.Equal(t, "2.00", d.Items[0].Quantity)
	assert.Equal(t, "10.50", d.Items[0].UnitPrice)
}

func TestDraft_Validate(t *testing.T) {
	valid := func() InvoiceDraft {
		return InvoiceDraft{Number: "10", IssueDate: "2024-01-05", Items: []DraftItem{{Quantity: "1.00"}}}
	}

	d := valid()
	assert.NoError(t, d.Validate())

	d = valid()
	d.IssueDate = "05/01/2024"
	assert.Error(t, d.Validate())

	d = valid()
	d.FirstDueDate = "soon"
	assert.Error(t, d.Validate())

	d = valid()
	d.Items = nil
	assert.Error(t, d.Validate())
}

func TestBuildPrompt_ListsCatalogs(t *testing.T) {
	doc := "12345678000199"
	prompt := buildPrompt("NF-e 10",
		[]core.Vendor{{ID: 4, Name: "Fornecedor Alfa", Document: &doc}},
		[]core.Product{{ID: 9, Code: "W-1", Name: "Widget"}})

	assert.Contains(t, prompt, "4 | Fornecedor Alfa | 12345678000199")
	assert.Contains(t, prompt, "9 | W-1 | Widget")
	assert.Contains(t, prompt, "NF-e 10")
}
