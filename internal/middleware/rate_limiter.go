package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/socialapp/backend/internal/auth"
	"github.com/socialapp/backend/internal/logging"
)

// RateLimiter controls how frequently a caller may perform an action.
type RateLimiter interface {
	Allow(key string) bool
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedRateLimiter keeps one token bucket per caller key. Buckets idle for
// longer than ttl are dropped by a sweep that runs at most once per ttl.
type KeyedRateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewKeyedRateLimiter allows requests events per window for each key, plus burst.
// Non-positive arguments fall back to 1 event per second, burst 1, and a five
// minute idle ttl.
func NewKeyedRateLimiter(requests int, window time.Duration, burst int, ttl time.Duration) *KeyedRateLimiter {
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Second
	}
	if burst <= 0 {
		burst = 1
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &KeyedRateLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Every(window / time.Duration(requests)),
		burst:   burst,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Allow consumes one token from the bucket for key.
func (l *KeyedRateLimiter) Allow(key string) bool {
	if key == "" {
		key = "unknown"
	}

	l.mu.Lock()
	now := l.now()
	if now.Sub(l.lastSweep) > l.ttl {
		l.sweepLocked(now)
	}
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	return b.limiter.AllowN(now, 1)
}

// Len reports how many keys are currently tracked.
func (l *KeyedRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *KeyedRateLimiter) sweepLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.ttl {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

// WithNowFunc allows tests to override the time source.
func (l *KeyedRateLimiter) WithNowFunc(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// RateLimit rejects requests with 429 once the caller exceeds the limiter for
// scope. Authenticated callers are keyed by user id, others by client IP.
func RateLimit(limiter RateLimiter, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := rateLimitKey(r, scope)
			if !limiter.Allow(key) {
				logging.FromContext(r.Context()).Warn("rate limit exceeded", "key", key)
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rateLimitKey(r *http.Request, scope string) string {
	caller := clientIP(r)
	if userID, ok := auth.UserIDFromContext(r.Context()); ok {
		caller = "user:" + userID
	}
	if scope == "" {
		return caller
	}
	return fmt.Sprintf("%s:%s", scope, caller)
}

func clientIP(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
