package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cashflow/internal/core"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
)

// Extractor turns NF-e text into an intake draft. It never persists anything.
type Extractor interface {
	ExtractInvoice(ctx context.Context, text string, vendors []core.Vendor, products []core.Product) (*InvoiceDraft, error)
}

type Agent struct {
	client *openai.Client
	model  string
}

func NewAgent(apiKey, model string) *Agent {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	if model == "" {
		model = string(shared.ChatModelGPT4o)
	}
	return &Agent{client: &client, model: model}
}

func (a *Agent) ExtractInvoice(ctx context.Context, text string, vendors []core.Vendor, products []core.Product) (*InvoiceDraft, error) {
	prompt := buildPrompt(text, vendors, products)

	schemaMap, err := draftSchema()
	if err != nil {
		return nil, err
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(a.model),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(prompt),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "nfe_invoice_draft",
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt("A purchase invoice intake draft read from an NF-e document"),
				},
			},
		},
	}

	resp, err := a.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses error: %w", err)
	}

	content := resp.OutputText()
	if content == "" {
		return nil, fmt.Errorf("empty response content")
	}

	var draft InvoiceDraft
	if err := json.Unmarshal([]byte(content), &draft); err != nil {
		return nil, fmt.Errorf("failed to parse completion: %w", err)
	}

	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, fmt.Errorf("draft validation failed: %w", err)
	}
	return &draft, nil
}

func buildPrompt(text string, vendors []core.Vendor, products []core.Product) string {
	var vb, pb strings.Builder
	for _, v := range vendors {
		doc := ""
		if v.Document != nil {
			doc = *v.Document
		}
		fmt.Fprintf(&vb, "%d | %s | %s\n", v.ID, v.Name, doc)
	}
	for _, p := range products {
		fmt.Fprintf(&pb, "%d | %s | %s\n", p.ID, p.Code, p.Name)
	}

	return fmt.Sprintf(`You read Brazilian NF-e purchase invoices and prepare an intake draft.
Rules:
1. Use ONLY vendor and product ids from the catalogs below; use 0 when nothing matches.
2. Dates are YYYY-MM-DD.
3. Amounts are decimal strings with a dot separator (e.g. "1234.56").
4. paymentStatus is "paid" only when the document states payment on delivery or cash.
5. Provide a confidence score (0.0-1.0) and explain your reasoning.

Vendors (id | name | document):
%s
Products (id | code | name):
%s
Document:
%s`, vb.String(), pb.String(), text)
}

func draftSchema() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schemaJSON, err := json.Marshal(reflector.Reflect(&InvoiceDraft{}))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}
	return schemaMap, nil
}
