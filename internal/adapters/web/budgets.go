package web

import (
	"bytes"
	"fmt"
	"net/http"

	"cashflow/internal/app"
	"cashflow/internal/core"
	"cashflow/internal/report"
)

func period(w http.ResponseWriter, r *http.Request) (year, month int, ok bool) {
	if year, ok = queryInt(w, r, "year"); !ok {
		return 0, 0, false
	}
	if month, ok = queryInt(w, r, "month"); !ok {
		return 0, 0, false
	}
	return year, month, true
}

// listBudgets handles GET /api/companies/{code}/budgets?year=&month=.
func (h *Handler) listBudgets(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	year, month, ok := period(w, r)
	if !ok {
		return
	}
	budgets, err := h.svc.ListBudgets(r.Context(), sc, year, month)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, budgets)
}

func (h *Handler) createBudget(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	var input core.BudgetInput
	if !decodeJSON(w, r, &input) {
		return
	}
	b, err := h.svc.CreateBudget(r.Context(), sc, input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, b)
}

func (h *Handler) getBudget(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b, err := h.svc.GetBudget(r.Context(), sc, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, b)
}

func (h *Handler) updateBudget(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var input core.BudgetInput
	if !decodeJSON(w, r, &input) {
		return
	}
	b, err := h.svc.UpdateBudget(r.Context(), sc, id, input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, b)
}

func (h *Handler) deleteBudget(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteBudget(r.Context(), sc, id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// budgetVsActual handles GET /api/companies/{code}/budgets/vs-actual?year=&month=.
func (h *Handler) budgetVsActual(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	year, month, ok := period(w, r)
	if !ok {
		return
	}
	rows, err := h.svc.GetBudgetVsActual(r.Context(), sc, year, month)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, rows)
}

func (h *Handler) exportBudgetVsActual(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	year, month, ok := period(w, r)
	if !ok {
		return
	}
	name := fmt.Sprintf("budget-%s-%04d-%02d.xlsx", sc.CompanyCode, year, month)
	h.writeAttachment(w, r, name, report.ContentType, func(buf *bytes.Buffer) error {
		return h.svc.ExportBudgetVsActual(r.Context(), sc, year, month, buf)
	})
}
