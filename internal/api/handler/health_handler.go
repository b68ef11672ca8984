package handler

import (
	"net/http"
	"time"
)

// HealthHandler serves the liveness probe endpoint.
type HealthHandler struct {
	started time.Time
	workers int
}

func NewHealthHandler(workers int) *HealthHandler {
	return &HealthHandler{started: time.Now(), workers: workers}
}

// Health handles GET /health
//
// @Summary  Liveness probe
// @Tags     system
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"workers":        h.workers,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}
