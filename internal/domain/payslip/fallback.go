package payslip

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"payrolladmin/internal/platform/metrics"
)

var ErrNoBackends = errors.New("no rendering backends configured")

// ChainError is returned when every backend of a chain failed.
type ChainError struct {
	Failures []*RenderError
}

func (e *ChainError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}
	if len(e.Failures) == 1 {
		return fmt.Sprintf("%s rendering failed: %s", e.Failures[0].Backend, parts[0])
	}
	return fmt.Sprintf("Both %s and fallback rendering failed: %s", e.Failures[0].Backend, strings.Join(parts, "; "))
}

func (e *ChainError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f)
	}
	return out
}

// GenerateWithFallback tries each backend in order and returns the first
// PDF produced along with the name of the backend that produced it.
func GenerateWithFallback(ctx context.Context, doc Document, backends ...Backend) ([]byte, string, error) {
	if len(backends) == 0 {
		return nil, "", ErrNoBackends
	}
	var failures []*RenderError
	for _, backend := range backends {
		started := time.Now()
		pdf, err := backend.Render(ctx, doc)
		metrics.PayslipRenderDuration.WithLabelValues(backend.Name()).Observe(time.Since(started).Seconds())
		if err == nil && len(pdf) == 0 {
			err = errors.New("empty pdf output")
		}
		if err == nil {
			return pdf, backend.Name(), nil
		}
		var renderErr *RenderError
		if !errors.As(err, &renderErr) || renderErr.Backend != backend.Name() {
			renderErr = &RenderError{Backend: backend.Name(), Err: err}
		}
		failures = append(failures, renderErr)
	}
	return nil, "", &ChainError{Failures: failures}
}
