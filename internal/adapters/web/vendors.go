package web

import (
	"net/http"

	"cashflow/internal/app"
	"cashflow/internal/core"
)

// ── Vendors ───────────────────────────────────────────────────────────────────

// listVendors handles GET /api/companies/{code}/vendors.
func (h *Handler) listVendors(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	vendors, err := h.svc.ListVendors(r.Context(), sc)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, vendors)
}

// createVendor handles POST /api/companies/{code}/vendors.
func (h *Handler) createVendor(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	var input core.VendorInput
	if !decodeJSON(w, r, &input) {
		return
	}
	v, err := h.svc.CreateVendor(r.Context(), sc, input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, v)
}

// getVendor handles GET /api/companies/{code}/vendors/{id}.
func (h *Handler) getVendor(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := h.svc.GetVendor(r.Context(), sc, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, v)
}

func (h *Handler) updateVendor(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var input core.VendorInput
	if !decodeJSON(w, r, &input) {
		return
	}
	v, err := h.svc.UpdateVendor(r.Context(), sc, id, input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, v)
}

func (h *Handler) deactivateVendor(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeactivateVendor(r.Context(), sc, id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Customers ─────────────────────────────────────────────────────────────────

// listCustomers handles GET /api/companies/{code}/customers?search=.
func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	customers, err := h.svc.ListCustomers(r.Context(), sc, r.URL.Query().Get("search"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, customers)
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	var input core.CustomerInput
	if !decodeJSON(w, r, &input) {
		return
	}
	c, err := h.svc.CreateCustomer(r.Context(), sc, input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, c)
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := h.svc.GetCustomer(r.Context(), sc, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, c)
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var input core.CustomerInput
	if !decodeJSON(w, r, &input) {
		return
	}
	c, err := h.svc.UpdateCustomer(r.Context(), sc, id, input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, c)
}

func (h *Handler) deactivateCustomer(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeactivateCustomer(r.Context(), sc, id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
