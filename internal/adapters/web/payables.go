package web

import (
	"bytes"
	"net/http"

	"cashflow/internal/app"
	"cashflow/internal/report"
)

func payableQuery(w http.ResponseWriter, r *http.Request) (app.PayableQuery, bool) {
	vendorID, ok := queryInt(w, r, "vendorId")
	if !ok {
		return app.PayableQuery{}, false
	}
	invoiceID, ok := queryInt(w, r, "invoiceId")
	if !ok {
		return app.PayableQuery{}, false
	}
	q := r.URL.Query()
	return app.PayableQuery{
		DateRange:       dateRange(r),
		Status:          q.Get("status"),
		VendorID:        vendorID,
		SourceInvoiceID: invoiceID,
		OverdueOnly:     q.Get("overdue") == "true",
	}, true
}

// listPayables handles GET /api/companies/{code}/payables.
func (h *Handler) listPayables(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	q, ok := payableQuery(w, r)
	if !ok {
		return
	}
	payables, err := h.svc.ListPayables(r.Context(), sc, q)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, payables)
}

// exportPayables handles GET /api/companies/{code}/payables/export.
func (h *Handler) exportPayables(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	q, ok := payableQuery(w, r)
	if !ok {
		return
	}
	h.writeAttachment(w, r, "payables-"+sc.CompanyCode+".xlsx", report.ContentType, func(buf *bytes.Buffer) error {
		return h.svc.ExportPayables(r.Context(), sc, q, buf)
	})
}

func (h *Handler) createPayable(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	var req app.PayableRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.CreatePayable(r.Context(), sc, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, p)
}

func (h *Handler) getPayable(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.GetPayable(r.Context(), sc, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, p)
}

func (h *Handler) updatePayable(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req app.PayableRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.UpdatePayable(r.Context(), sc, id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, p)
}

// payPayable handles POST /api/companies/{code}/payables/{id}/pay.
func (h *Handler) payPayable(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req app.PaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.PayPayable(r.Context(), sc, id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, p)
}

func (h *Handler) deletePayable(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeletePayable(r.Context(), sc, id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
