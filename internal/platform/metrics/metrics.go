package metrics

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payroll_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payroll_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payroll_http_rate_limited_total",
		Help: "Requests rejected by the rate limiter.",
	})

	PayslipsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payroll_payslips_generated_total",
			Help: "Payslip generation attempts by rendering method and outcome.",
		},
		[]string{"method", "outcome"},
	)

	PayslipRenderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payroll_payslip_render_duration_seconds",
			Help:    "Time spent rendering one payslip PDF, by backend.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		},
		[]string{"backend"},
	)

	BrowserLaunchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payroll_browser_launch_failures_total",
		Help: "Batches that fell back because the browser could not start.",
	})

	ClosureRecordsMoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payroll_closure_records_moved_total",
		Help: "Payroll records archived by pay-period closures.",
	})

	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payroll_payslip_emails_total",
			Help: "Payslip emails by delivery status.",
		},
		[]string{"status"},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}

// NormalizePath replaces UUID path segments with {id} to bound label
// cardinality.
func NormalizePath(path string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		if len(segment) == 36 {
			if _, err := uuid.Parse(segment); err == nil {
				segments[i] = "{id}"
			}
		}
	}
	normalized := strings.Join(segments, "/")
	if strings.HasPrefix(normalized, "/storage/") {
		return "/storage/{object}"
	}
	return normalized
}
