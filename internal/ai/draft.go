package ai

import (
	"fmt"
	"strings"
	"time"

	"cashflow/internal/core"

	"github.com/shopspring/decimal"
)

// InvoiceDraft is a suggested intake payload read from NF-e text. Its JSON
// field names match the intake endpoint so a client can post it back after review.
type InvoiceDraft struct {
	VendorID      int         `json:"vendorId" jsonschema_description:"Id of the matching vendor from the catalog, 0 when none matches"`
	VendorName    string      `json:"vendorName" jsonschema_description:"Issuer name as printed on the document"`
	Number        string      `json:"nfeNumber"`
	Series        string      `json:"nfeSeries"`
	AccessKey     string      `json:"accessKey" jsonschema_description:"44 digit access key, empty when absent"`
	IssueDate     string      `json:"issueDate" jsonschema_description:"YYYY-MM-DD"`
	TotalProducts string      `json:"totalProducts" jsonschema_description:"Decimal string, e.g. 100.00"`
	TotalFreight  string      `json:"totalFreight"`
	TotalDiscount string      `json:"totalDiscount"`
	TotalTax      string      `json:"totalTax"`
	TotalInvoice  string      `json:"totalInvoice"`
	PaymentStatus string      `json:"paymentStatus" jsonschema:"enum=pending,enum=paid"`
	Installments  int         `json:"installments"`
	FirstDueDate  string      `json:"firstDueDate" jsonschema_description:"YYYY-MM-DD, empty when not stated"`
	Items         []DraftItem `json:"items"`
	Confidence    float64     `json:"confidence" jsonschema_description:"0.0 to 1.0"`
	Reasoning     string      `json:"reasoning"`
}

// DraftItem is one product line of an InvoiceDraft.
type DraftItem struct {
	ProductID   int    `json:"productId" jsonschema_description:"Id of the matching product from the catalog, 0 when none matches"`
	Description string `json:"description"`
	NCM         string `json:"ncm"`
	CFOP        string `json:"cfop"`
	Unit        string `json:"unit"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unitPrice"`
	TotalPrice  string `json:"totalPrice"`
}

// Normalize trims text fields and blanks amounts the model left unparsable.
func (d *InvoiceDraft) Normalize() {
	d.Number = strings.TrimSpace(d.Number)
	d.Series = strings.TrimSpace(d.Series)
	d.AccessKey = strings.Map(keepDigits, d.AccessKey)
	if d.Series == "" {
		d.Series = "1"
	}
	if d.PaymentStatus != string(core.PaymentPaid) {
		d.PaymentStatus = string(core.PaymentPending)
	}
	if d.Installments < 0 {
		d.Installments = 0
	}
	for _, a := range []*string{&d.TotalProducts, &d.TotalFreight, &d.TotalDiscount, &d.TotalTax, &d.TotalInvoice} {
		*a = normalizeAmount(*a)
	}
	for i := range d.Items {
		it := &d.Items[i]
		it.Quantity = normalizeAmount(it.Quantity)
		it.UnitPrice = normalizeAmount(it.UnitPrice)
		it.TotalPrice = normalizeAmount(it.TotalPrice)
	}
	if d.Confidence < 0 {
		d.Confidence = 0
	} else if d.Confidence > 1 {
		d.Confidence = 1
	}
}

// Validate rejects drafts a reviewer could not post back as-is.
func (d *InvoiceDraft) Validate() error {
	if d.Number == "" {
		return fmt.Errorf("draft has no invoice number")
	}
	if _, err := time.Parse(core.DateLayout, d.IssueDate); err != nil {
		return fmt.Errorf("draft issue date %q: %w", d.IssueDate, err)
	}
	if d.FirstDueDate != "" {
		if _, err := time.Parse(core.DateLayout, d.FirstDueDate); err != nil {
			return fmt.Errorf("draft first due date %q: %w", d.FirstDueDate, err)
		}
	}
	if len(d.Items) == 0 {
		return fmt.Errorf("draft has no items")
	}
	for i, it := range d.Items {
		if it.Quantity == "" {
			return fmt.Errorf("draft item %d has no quantity", i+1)
		}
	}
	return nil
}

func keepDigits(r rune) rune {
	if r >= '0' && r <= '9' {
		return r
	}
	return -1
}

// normalizeAmount accepts "1.234,56" as well as "1234.56" and returns a plain decimal string.
func normalizeAmount(s string) string {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "R$"))
	if s == "" {
		return ""
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ""
	}
	return d.StringFixed(2)
}
