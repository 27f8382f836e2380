package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"

	"payrolladmin/internal/platform/metrics"
)

// Logger writes one structured line per request.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)

		level := slog.LevelInfo
		switch {
		case m.Code >= 500:
			level = slog.LevelError
		case m.Code >= 400:
			level = slog.LevelWarn
		}
		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", m.Code,
			"bytes", m.Written,
			"durationMs", m.Duration.Milliseconds(),
			"requestId", GetRequestID(r.Context()),
		}
		if user, ok := GetUser(r.Context()); ok {
			attrs = append(attrs, "tenantId", user.TenantID, "userId", user.UserID)
		}
		slog.Log(r.Context(), level, "http request", attrs...)
	})
}

// Metrics records request counts and latency per normalised route.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		path := metrics.NormalizePath(r.URL.Path)
		metrics.HTTPRequests.WithLabelValues(r.Method, path, strconv.Itoa(m.Code)).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, path).Observe(m.Duration.Seconds())
	})
}
