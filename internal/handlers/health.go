package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"statusgen/internal/session"
)

type HealthHandler struct {
	store   *session.Store
	version string
}

func NewHealthHandler(store *session.Store, version string) *HealthHandler {
	return &HealthHandler{store: store, version: version}
}

func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.health)
}

func (h *HealthHandler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  h.version,
		"sessions": h.store.Len(),
	})
}
