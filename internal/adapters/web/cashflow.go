package web

import (
	"bytes"
	"net/http"

	"cashflow/internal/app"
	"cashflow/internal/report"
)

func cashFlowQuery(r *http.Request) app.CashFlowQuery {
	q := r.URL.Query()
	return app.CashFlowQuery{DateRange: dateRange(r), Type: q.Get("type"), Category: q.Get("category")}
}

// listCashFlow handles GET /api/companies/{code}/cashflow.
func (h *Handler) listCashFlow(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	txs, err := h.svc.ListCashFlow(r.Context(), sc, cashFlowQuery(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, txs)
}

// createCashFlow handles POST /api/companies/{code}/cashflow: manual entry or exit.
func (h *Handler) createCashFlow(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	var req app.CashFlowRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tx, err := h.svc.CreateCashFlow(r.Context(), sc, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, tx)
}

func (h *Handler) getCashFlow(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	tx, err := h.svc.GetCashFlow(r.Context(), sc, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, tx)
}

func (h *Handler) deleteCashFlow(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteCashFlow(r.Context(), sc, id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// dailySummary handles GET /api/companies/{code}/cashflow/summary?date=YYYY-MM-DD.
func (h *Handler) dailySummary(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	summary, err := h.svc.GetDailySummary(r.Context(), sc, r.URL.Query().Get("date"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, summary)
}

// exportCashFlow handles GET /api/companies/{code}/cashflow/export.
func (h *Handler) exportCashFlow(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	q := cashFlowQuery(r)
	h.writeAttachment(w, r, "cashflow-"+sc.CompanyCode+".xlsx", report.ContentType, func(buf *bytes.Buffer) error {
		return h.svc.ExportCashFlow(r.Context(), sc, q, buf)
	})
}
