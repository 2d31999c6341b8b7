// Package api provides shared HTTP handler utilities and the health endpoint.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/romanwi-dev/pl-descent-navigator/internal/store"
)

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// HealthHandler reports service and database health.
type HealthHandler struct {
	repo store.Repository
}

// NewHealthHandler creates a health handler backed by the given repository.
func NewHealthHandler(repo store.Repository) *HealthHandler {
	return &HealthHandler{repo: repo}
}

// HandleHealthz handles GET /healthz. It reports degraded with a 503 when the
// database is unreachable.
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Ping(r.Context()); err != nil {
		JSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "degraded",
			"database": err.Error(),
		})
		return
	}
	JSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"database": "ok",
	})
}
