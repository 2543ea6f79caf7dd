package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/socialapp/backend/internal/auth"
	"github.com/socialapp/backend/internal/logging"
)

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Authenticate requires a valid bearer token and stores the caller's user id on
// the request context. The request logger is enriched with the user id.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			userID, err := verifier.Verify(token)
			if err != nil {
				logging.FromContext(r.Context()).Info("rejected access token", slog.Any("error", err))
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := auth.WithUserID(r.Context(), userID)
			ctx = logging.WithLogger(ctx, logging.FromContext(ctx).With(slog.String("user_id", userID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
