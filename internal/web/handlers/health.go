package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/logger"
)

// Pinger is anything whose reachability /health reports.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports whether the service can reach its record store.
type HealthHandler struct {
	store   Pinger
	timeout time.Duration
	log     *logger.Logger
}

func NewHealthHandler(store Pinger, log *logger.Logger) *HealthHandler {
	return &HealthHandler{store: store, timeout: 2 * time.Second, log: log}
}

// Check handles GET /health: 200 when the store answers a ping, 503 otherwise.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.log.Warn("health check: store unreachable", "error", err)
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"store":  "unreachable",
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"store":  "ok",
	})
}
