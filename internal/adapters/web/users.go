package web

import (
	"net/http"

	"cashflow/internal/app"
	"cashflow/internal/core"
)

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	users, err := h.svc.ListUsers(r.Context(), sc)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, users)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	var input core.UserInput
	if !decodeJSON(w, r, &input) {
		return
	}
	u, err := h.svc.CreateUser(r.Context(), sc, input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, u)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var input core.UserUpdate
	if !decodeJSON(w, r, &input) {
		return
	}
	u, err := h.svc.UpdateUser(r.Context(), sc, id, input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, u)
}

func (h *Handler) deactivateUser(w http.ResponseWriter, r *http.Request, sc app.Scope) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeactivateUser(r.Context(), sc, id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
