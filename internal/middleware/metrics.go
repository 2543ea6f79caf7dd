package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// RequestObserver records HTTP request outcomes.
type RequestObserver interface {
	ObserveRequest(method, route string, status int, seconds float64)
}

const unmatchedRoute = "unmatched"

type routeSlotKey struct{}

type routeSlot struct {
	template string
}

// Metrics records request counts and latency. It wraps the router from the
// outside so 404 and 405 responses are counted too; those are labelled
// "unmatched" unless RouteTemplate saw a matched route.
func Metrics(observer RequestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapWriter(w)
			slot := &routeSlot{template: unmatchedRoute}

			next.ServeHTTP(wrapped, r.WithContext(context.WithValue(r.Context(), routeSlotKey{}, slot)))

			observer.ObserveRequest(r.Method, slot.template, wrapped.Status(), time.Since(start).Seconds())
		})
	}
}

// RouteTemplate reports the matched mux path template to an enclosing Metrics.
func RouteTemplate() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if slot, ok := r.Context().Value(routeSlotKey{}).(*routeSlot); ok {
				if current := mux.CurrentRoute(r); current != nil {
					if tmpl, err := current.GetPathTemplate(); err == nil {
						slot.template = tmpl
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
