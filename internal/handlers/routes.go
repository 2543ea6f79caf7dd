package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/socialapp/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Friendships FriendshipService
	Tokens      middleware.TokenVerifier
	Limiter     middleware.RateLimiter
	Database    Pinger
	Metrics     http.Handler
}

// RegisterRoutes wires HTTP handlers into the provided router. Everything under
// /api/v1 requires a bearer token; mutations are additionally rate limited.
func RegisterRoutes(router *mux.Router, deps Dependencies) {
	health := HealthHandler{Database: deps.Database}
	friends := FriendshipHandler{Friendships: deps.Friendships}

	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	router.HandleFunc("/healthz", health.Handle).Methods(http.MethodGet)
	if deps.Metrics != nil {
		router.Handle("/metrics", deps.Metrics).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	// A subrouter reports method mismatches as 404 unless it has its own handler.
	api.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	api.Use(middleware.Authenticate(deps.Tokens))

	api.HandleFunc("/friendships", friends.ListFriends).Methods(http.MethodGet)
	api.HandleFunc("/friendships/requests/outgoing", friends.ListOutgoing).Methods(http.MethodGet)
	api.HandleFunc("/friendships/requests/incoming", friends.ListIncoming).Methods(http.MethodGet)
	api.HandleFunc("/friendships/users/{userId}", friends.GetFriendship).Methods(http.MethodGet)
	api.HandleFunc("/friendships/stats/new", friends.NewFriendsCount).Methods(http.MethodGet)

	limited := middleware.RateLimit(deps.Limiter, "friendships")
	api.Handle("/friendships/requests", limited(http.HandlerFunc(friends.SendRequest))).Methods(http.MethodPost)
	api.Handle("/friendships/requests/{requestId}/accept", limited(http.HandlerFunc(friends.AcceptRequest))).Methods(http.MethodPost)
	api.Handle("/friendships/requests/{requestId}/reject", limited(http.HandlerFunc(friends.RejectRequest))).Methods(http.MethodPost)
	api.Handle("/friendships/users/{userId}", limited(http.HandlerFunc(friends.Unfriend))).Methods(http.MethodDelete)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondError(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed")
}
