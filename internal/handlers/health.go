package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthHandler responds with service health information.
type HealthHandler struct {
	Database Pinger
}

// Handle implements GET /healthz. The database is pinged when configured.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.Database != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := h.Database.Ping(pingCtx); err != nil {
			respondJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{
				"status":   "degraded",
				"database": err.Error(),
			})
			return
		}
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}
