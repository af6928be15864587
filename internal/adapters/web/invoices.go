package web

import (
	"net/http"

	"cashflow/internal/app"
)

// listInvoices handles GET /api/companies/{code}/invoices.
func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	vendorID, ok := queryInt(w, r, "vendorId")
	if !ok {
		return
	}
	q := r.URL.Query()
	invoices, err := h.svc.ListInvoices(r.Context(), sc, app.InvoiceQuery{
		DateRange:     dateRange(r),
		State:         q.Get("state"),
		PaymentStatus: q.Get("paymentStatus"),
		VendorID:      vendorID,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, invoices)
}

// createInvoice handles POST /api/companies/{code}/invoices: NF-e intake.
func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	var req app.InvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := h.svc.CreateInvoice(r.Context(), sc, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, inv)
}

// getInvoice handles GET /api/companies/{code}/invoices/{id}.
func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	inv, err := h.svc.GetInvoice(r.Context(), sc, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, inv)
}

// updateInvoice handles PUT /api/companies/{code}/invoices/{id}. Drafts only.
func (h *Handler) updateInvoice(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req app.InvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := h.svc.UpdateInvoice(r.Context(), sc, id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, inv)
}

// deleteInvoice handles DELETE /api/companies/{code}/invoices/{id}. Drafts only.
func (h *Handler) deleteInvoice(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteInvoice(r.Context(), sc, id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// processInvoice handles POST /api/companies/{code}/invoices/{id}/process.
func (h *Handler) processInvoice(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	inv, err := h.svc.ProcessInvoice(r.Context(), sc, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, inv)
}

// cancelInvoice handles POST /api/companies/{code}/invoices/{id}/cancel: invoice reversal.
func (h *Handler) cancelInvoice(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := h.svc.CancelInvoice(r.Context(), sc, id, req.Reason)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	type response struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Invoice any    `json:"invoice"`
	}
	writeJSON(w, response{Success: true, Message: "invoice " + inv.Ref() + " cancelled", Invoice: inv})
}
