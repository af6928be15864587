package web

import (
	"net/http"

	"cashflow/internal/app"
	"cashflow/internal/core"
)

// listProducts handles GET /api/companies/{code}/products?search=&lowStock=true.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	q := r.URL.Query()
	products, err := h.svc.ListProducts(r.Context(), sc, core.ProductFilter{
		Search:       q.Get("search"),
		LowStockOnly: q.Get("lowStock") == "true",
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, products)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	var input core.ProductInput
	if !decodeJSON(w, r, &input) {
		return
	}
	p, err := h.svc.CreateProduct(r.Context(), sc, input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, p)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.GetProduct(r.Context(), sc, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, p)
}

// updateProduct handles PUT /api/companies/{code}/products/{id}. Quantity is not writable here.
func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var input core.ProductInput
	if !decodeJSON(w, r, &input) {
		return
	}
	p, err := h.svc.UpdateProduct(r.Context(), sc, id, input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, p)
}

func (h *Handler) deactivateProduct(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeactivateProduct(r.Context(), sc, id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listMovements handles GET /api/companies/{code}/products/{id}/movements?limit=.
func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	movements, err := h.svc.ListStockMovements(r.Context(), sc, id, limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, movements)
}
