package payslip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"payrolladmin/internal/domain/payroll"
	"payrolladmin/internal/platform/metrics"
)

const (
	FallbackMessage = "Generated using fallback method"
	contentTypePDF  = "application/pdf"
)

type RecordStore interface {
	Get(ctx context.Context, tenantID, id string) (payroll.Record, error)
	SaveArtifact(ctx context.Context, tenantID, id string, artifact payroll.Artifact) error
}

type ObjectStore interface {
	Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error
	PublicURL(bucket, key string) (string, error)
}

// Browser is a launched PDF printer owned by one batch.
type Browser interface {
	PDFPrinter
	Close()
}

type LaunchFunc func(ctx context.Context) (Browser, error)

type Result struct {
	BatchID  string   `json:"batch_id"`
	OK       bool     `json:"ok"`
	Message  string   `json:"message,omitempty"`
	Method   string   `json:"method,omitempty"`
	URL      string   `json:"url,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

type Generator struct {
	Records      RecordStore
	Objects      ObjectStore
	Launch       LaunchFunc
	Layout       Backend
	Minimal      Backend
	Bucket       string
	TemplatePath string
	Now          func() time.Time
	NewToken     func() string
}

func NewGenerator(records RecordStore, objects ObjectStore, launch LaunchFunc, bucket, templatePath string) *Generator {
	return &Generator{
		Records:      records,
		Objects:      objects,
		Launch:       launch,
		Layout:       LayoutBackend{},
		Minimal:      MinimalBackend{},
		Bucket:       bucket,
		TemplatePath: templatePath,
		Now:          time.Now,
		NewToken:     uuid.NewString,
	}
}

// DedupeIDs drops blank and repeated ids, keeping first occurrences in order.
func DedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Generate renders, uploads and links a payslip for every distinct id.
// Records are processed one at a time; a failing record never stops the
// batch. Only request-level problems such as an unreadable template are
// returned as an error.
func (g *Generator) Generate(ctx context.Context, tenantID string, ids []string) ([]Result, error) {
	ids = DedupeIDs(ids)
	if len(ids) == 0 {
		return nil, payroll.ErrNoIDs
	}
	tpl, err := LoadTemplate(g.TemplatePath)
	if err != nil {
		return nil, err
	}

	chain := []Backend{g.Layout, g.Minimal}
	if g.Launch != nil {
		browser, err := g.Launch(ctx)
		if err != nil {
			metrics.BrowserLaunchFailures.Inc()
			slog.Warn("browser launch failed, using fallback rendering for batch", "tenantId", tenantID, "records", len(ids), "err", err)
		} else {
			defer browser.Close()
			chain = []Backend{BrowserBackend{Printer: browser}, g.Layout}
		}
	}

	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		results = append(results, g.generateOne(ctx, tenantID, id, tpl, chain))
	}
	return results, nil
}

func (g *Generator) generateOne(ctx context.Context, tenantID, id string, tpl *Template, chain []Backend) (res Result) {
	res = Result{BatchID: id}
	fail := func(method, format string, args ...any) Result {
		if method == "" {
			method = "none"
		}
		metrics.PayslipsGenerated.WithLabelValues(method, "failed").Inc()
		res.OK = false
		res.Message = fmt.Sprintf(format, args...)
		return res
	}
	defer func() {
		if p := recover(); p != nil {
			slog.Error("payslip generation panicked", "tenantId", tenantID, "recordId", id, "panic", p)
			res = fail("", "internal error: %v", p)
		}
	}()

	rec, err := g.Records.Get(ctx, tenantID, id)
	if errors.Is(err, payroll.ErrRecordNotFound) {
		return fail("", "record not found")
	}
	if err != nil {
		return fail("", "fetch record failed: %v", err)
	}

	token := rec.PayslipToken
	if token == "" {
		token = g.NewToken()
		rec.PayslipToken = token
	}
	for _, w := range payroll.CheckTotals(rec) {
		res.Warnings = append(res.Warnings, w.String())
	}

	fields, err := BuildFields(rec)
	if err != nil {
		return fail("", "render template: %v", err)
	}
	html, err := tpl.Render(fields)
	if err != nil {
		return fail("", "render template: %v", err)
	}

	doc := Document{Record: rec, Fields: fields, HTML: html, Token: token}
	pdf, method, err := GenerateWithFallback(ctx, doc, chain...)
	if err != nil {
		slog.Warn("payslip rendering failed", "tenantId", tenantID, "recordId", id, "err", err)
		return fail("", "%v", err)
	}
	res.Method = method

	key := ObjectKey(rec.EmployeeName, token)
	if err := g.Objects.Upload(ctx, g.Bucket, key, pdf, contentTypePDF); err != nil {
		return fail(method, "upload failed: %v", err)
	}
	url, err := g.Objects.PublicURL(g.Bucket, key)
	if err != nil {
		return fail(method, "public url failed: %v", err)
	}
	artifact := payroll.Artifact{Token: token, URL: url, Method: method, GeneratedAt: g.Now().UTC()}
	if err := g.Records.SaveArtifact(ctx, tenantID, id, artifact); err != nil {
		return fail(method, "update record failed: %v", err)
	}

	metrics.PayslipsGenerated.WithLabelValues(method, "ok").Inc()
	res.OK = true
	res.URL = url
	if method != MethodBrowser {
		res.Message = FallbackMessage
	}
	return res
}
