package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/care-messaging/pkg/logger"
)

const readyTimeout = 3 * time.Second

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	service Messaging
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(svc Messaging) *HealthHandler {
	return &HealthHandler{service: svc}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready. Storage must be reachable and provisioned;
// realtime is reported but does not fail readiness, since clients fall
// back to polling.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := h.service.Ready(ctx); err != nil {
		logger.FromContext(ctx).Warn("readiness check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "storage unavailable",
		})
		return
	}

	realtime := "ok"
	if err := h.service.RealtimeReady(ctx); err != nil {
		realtime = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"realtime": realtime,
	})
}
