package web

import (
	"bytes"
	"net/http"

	"cashflow/internal/app"
	"cashflow/internal/core"
	"cashflow/internal/report"
)

// listSessions handles GET /api/companies/{code}/cash-sessions?from=&to=.
func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	sessions, err := h.svc.ListSessions(r.Context(), sc, dateRange(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, sessions)
}

// openSession handles POST /api/companies/{code}/cash-sessions.
func (h *Handler) openSession(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	var req app.OpenSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cs, err := h.svc.OpenSession(r.Context(), sc, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, cs)
}

// currentSession handles GET /api/companies/{code}/cash-sessions/current?date=.
func (h *Handler) currentSession(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	cs, err := h.svc.CurrentSession(r.Context(), sc, r.URL.Query().Get("date"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, cs)
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	cs, err := h.svc.GetSession(r.Context(), sc, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, cs)
}

// closeSession handles POST /api/companies/{code}/cash-sessions/{id}/close.
// The response carries the computed expectedAmount and difference.
func (h *Handler) closeSession(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var input core.CloseSessionInput
	if !decodeJSON(w, r, &input) {
		return
	}
	cs, err := h.svc.CloseSession(r.Context(), sc, id, input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, cs)
}

func (h *Handler) listWithdrawals(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	withdrawals, err := h.svc.ListWithdrawals(r.Context(), sc, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, withdrawals)
}

// recordWithdrawal handles POST /api/companies/{code}/cash-sessions/{id}/withdrawals (sangria).
func (h *Handler) recordWithdrawal(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var input core.WithdrawalInput
	if !decodeJSON(w, r, &input) {
		return
	}
	wd, err := h.svc.RecordWithdrawal(r.Context(), sc, id, input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, wd)
}

func (h *Handler) exportSessions(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	q := dateRange(r)
	h.writeAttachment(w, r, "cash-sessions-"+sc.CompanyCode+".xlsx", report.ContentType, func(buf *bytes.Buffer) error {
		return h.svc.ExportSessions(r.Context(), sc, q, buf)
	})
}
