package web

import (
	"net/http"
	"strings"

	"cashflow/internal/app"
)

// maxExtractText bounds the document text sent to the model.
const maxExtractText = 100_000

// extractInvoice handles POST /api/companies/{code}/invoices/extract.
// The draft is returned for review; nothing is persisted.
func (h *Handler) extractInvoice(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	var req struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	text := strings.TrimSpace(req.Text)
	if len(text) > maxExtractText {
		writeError(w, r, "document text too long", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
		return
	}
	draft, err := h.svc.ExtractInvoice(r.Context(), sc, text)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, draft)
}
