package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/socialapp/backend/internal/friendships"
	"github.com/socialapp/backend/internal/logging"
)

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	respondJSON(ctx, w, status, map[string]string{"error": message})
}

// respondServiceError maps friendship sentinels onto HTTP statuses. Anything
// unclassified is an infrastructure failure and is not echoed to the caller.
func respondServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, friendships.ErrNotFound):
		respondError(ctx, w, http.StatusNotFound, err.Error())
	case errors.Is(err, friendships.ErrConflict):
		respondError(ctx, w, http.StatusConflict, err.Error())
	default:
		logging.FromContext(ctx).Error("friendship operation failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "internal server error")
	}
}
