package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"payrolladmin/internal/platform/metrics"
	"payrolladmin/internal/transport/http/api"
	"payrolladmin/internal/transport/http/shared"
)

type RateLimitKeyFunc func(r *http.Request) string

// Decision is the outcome of one hit against a limiter.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

// Limiter counts hits per key. Implementations must be safe for concurrent
// use.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
	Limit() int
}

type RateLimitOption func(*rateLimiter)

type rateLimiter struct {
	limiter Limiter
	keyFn   RateLimitKeyFunc
	scope   string
}

func WithKeyFunc(fn RateLimitKeyFunc) RateLimitOption {
	return func(rl *rateLimiter) {
		if fn != nil {
			rl.keyFn = fn
		}
	}
}

// WithLimiter swaps the in-memory limiter, for example for Redis.
func WithLimiter(l Limiter) RateLimitOption {
	return func(rl *rateLimiter) {
		if l != nil {
			rl.limiter = l
		}
	}
}

func RateLimit(limit int, window time.Duration, opts ...RateLimitOption) func(http.Handler) http.Handler {
	rl := &rateLimiter{limiter: NewMemoryLimiter(limit, window), keyFn: actorOrIPKey, scope: "global"}
	for _, opt := range opts {
		opt(rl)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.enforce(w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SensitiveMutationRateLimit applies a tighter per-actor budget to the
// expensive batch endpoints (generation, sending, closure, gdpr).
func SensitiveMutationRateLimit(baseLimit int, window time.Duration, opts ...RateLimitOption) func(http.Handler) http.Handler {
	rl := &rateLimiter{limiter: NewMemoryLimiter(max(baseLimit/4, 1), window), keyFn: actorOrIPKey, scope: "sensitive"}
	for _, opt := range opts {
		opt(rl)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSensitiveMutation(r) && !rl.enforce(w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func actorOrIPKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.TenantID + ":" + user.UserID
	}
	return "ip:" + shared.ClientIP(r)
}

func (rl *rateLimiter) enforce(w http.ResponseWriter, r *http.Request) bool {
	if rl.limiter == nil || rl.limiter.Limit() <= 0 {
		return true
	}

	key := rl.keyFn(r)
	if key == "" {
		key = "ip:" + shared.ClientIP(r)
	}
	d, err := rl.limiter.Allow(r.Context(), rl.scope+":"+key)
	if err != nil {
		// fail open
		slog.Warn("rate limiter unavailable", "scope", rl.scope, "err", err)
		return true
	}

	resetIn := durationSeconds(d.ResetIn)
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limiter.Limit()))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(d.Remaining, 0)))
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(resetIn))

	if !d.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(max(resetIn, 1)))
		metrics.RateLimited.Inc()
		slog.Warn("rate limit exceeded",
			"key", key,
			"scope", rl.scope,
			"path", r.URL.Path,
			"method", r.Method,
			"limit", rl.limiter.Limit(),
		)
		api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
		return false
	}
	return true
}

func durationSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	seconds := int(d.Seconds())
	if seconds <= 0 {
		return 1
	}
	return seconds
}

func isSensitiveMutation(r *http.Request) bool {
	if r.Method != http.MethodPost {
		return false
	}
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch path {
	case "/api/admin/payslips/generate",
		"/api/admin/payslips/send",
		"/api/admin/payslips/import",
		"/api/admin/pay-periods/close",
		"/api/gdpr/data-export",
		"/api/gdpr/data-deletion",
		"/api/teamwork/refresh":
		return true
	}
	return false
}
