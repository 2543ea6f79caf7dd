package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/socialapp/backend/internal/auth"
	"github.com/socialapp/backend/internal/logging"
)

// FriendshipHandler exposes the friendship graph to authenticated callers.
type FriendshipHandler struct {
	Friendships FriendshipService
}

type sendRequestPayload struct {
	RequesteeID string `json:"requesteeId"`
}

// ListFriends handles GET /api/v1/friendships.
func (h FriendshipHandler) ListFriends(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	pageNo, pageSize := pageParams(r)
	page, err := h.Friendships.GetFriends(ctx, userID, pageNo, pageSize)
	if err != nil {
		respondServiceError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, page)
}

// ListOutgoing handles GET /api/v1/friendships/requests/outgoing.
func (h FriendshipHandler) ListOutgoing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	pageNo, pageSize := pageParams(r)
	page, err := h.Friendships.GetFriendRequests(ctx, userID, pageNo, pageSize)
	if err != nil {
		respondServiceError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, page)
}

// ListIncoming handles GET /api/v1/friendships/requests/incoming.
func (h FriendshipHandler) ListIncoming(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	pageNo, pageSize := pageParams(r)
	page, err := h.Friendships.GetFriendRequestsToUser(ctx, userID, pageNo, pageSize)
	if err != nil {
		respondServiceError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, page)
}

// GetFriendship handles GET /api/v1/friendships/users/{userId}.
func (h FriendshipHandler) GetFriendship(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	other := strings.TrimSpace(mux.Vars(r)["userId"])
	edge, err := h.Friendships.GetFriendship(ctx, userID, other)
	if err != nil {
		respondServiceError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, edge)
}

// SendRequest handles POST /api/v1/friendships/requests.
func (h FriendshipHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req sendRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid friend request payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.RequesteeID = strings.TrimSpace(req.RequesteeID)
	if req.RequesteeID == "" {
		respondError(ctx, w, http.StatusBadRequest, "requesteeId is required")
		return
	}

	edge, err := h.Friendships.SendFriendRequest(ctx, userID, req.RequesteeID)
	if err != nil {
		respondServiceError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, edge)
}

// AcceptRequest handles POST /api/v1/friendships/requests/{requestId}/accept.
func (h FriendshipHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	edge, err := h.Friendships.AcceptFriendRequest(ctx, userID, mux.Vars(r)["requestId"])
	if err != nil {
		respondServiceError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, edge)
}

// RejectRequest handles POST /api/v1/friendships/requests/{requestId}/reject.
func (h FriendshipHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	edge, err := h.Friendships.RejectFriendRequest(ctx, userID, mux.Vars(r)["requestId"])
	if err != nil {
		respondServiceError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, edge)
}

// Unfriend handles DELETE /api/v1/friendships/users/{userId}.
func (h FriendshipHandler) Unfriend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	if err := h.Friendships.Unfriend(ctx, userID, strings.TrimSpace(mux.Vars(r)["userId"])); err != nil {
		respondServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// NewFriendsCount handles GET /api/v1/friendships/stats/new.
func (h FriendshipHandler) NewFriendsCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	days := queryInt(r, "days", 0)
	view, err := h.Friendships.CountNewFriends(ctx, userID, days)
	if err != nil {
		respondServiceError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, view)
}

func (h FriendshipHandler) currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	ctx := r.Context()
	if h.Friendships == nil {
		logging.FromContext(ctx).Error("friendship service unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "friendship service unavailable")
		return "", false
	}

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	return userID, true
}

// pageParams reads ?page=&pageSize=. Out-of-range values are clamped by the service.
func pageParams(r *http.Request) (int, int) {
	return queryInt(r, "page", 1), queryInt(r, "pageSize", 0)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
