package payslipshandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payrolladmin/internal/domain/audit"
	"payrolladmin/internal/domain/auth"
	"payrolladmin/internal/domain/distribution"
	"payrolladmin/internal/domain/imports"
	"payrolladmin/internal/domain/payroll"
	"payrolladmin/internal/domain/payslip"
	"payrolladmin/internal/platform/events"
	"payrolladmin/internal/platform/jobs"
	"payrolladmin/internal/transport/http/middleware"
)

const (
	idA = "11111111-1111-1111-1111-111111111111"
	idB = "22222222-2222-2222-2222-222222222222"
	idC = "33333333-3333-3333-3333-333333333333"
)

type stubGenerator struct {
	calls [][]string
	err   error
	ctxOK bool
}

func (g *stubGenerator) Generate(ctx context.Context, _ string, ids []string) ([]payslip.Result, error) {
	g.calls = append(g.calls, ids)
	g.ctxOK = ctx.Err() == nil
	if g.err != nil {
		return nil, g.err
	}
	out := make([]payslip.Result, 0, len(ids))
	for _, id := range ids {
		out = append(out, payslip.Result{BatchID: id, OK: true, Method: "layout"})
	}
	return out, nil
}

type stubRecords struct {
	rows     []payroll.Record
	filter   payroll.ListFilter
	resolved []string
	deleted  []string
	restored []string
}

func (s *stubRecords) List(_ context.Context, _ string, filter payroll.ListFilter) ([]payroll.Record, int, error) {
	s.filter = filter
	return s.rows, len(s.rows), nil
}

func (s *stubRecords) ResolveIDs(_ context.Context, _ string, ids []string) ([]string, error) {
	var out []string
	for _, id := range ids {
		for _, known := range s.resolved {
			if id == known {
				out = append(out, id)
			}
		}
	}
	return out, nil
}

func (s *stubRecords) SoftDelete(_ context.Context, _ string, ids []string) (int64, error) {
	s.deleted = ids
	return int64(len(ids)), nil
}

func (s *stubRecords) Restore(_ context.Context, _ string, ids []string) (int64, error) {
	s.restored = ids
	return int64(len(ids)), nil
}

type stubImporter struct {
	body   string
	result imports.Result
	err    error
}

func (s *stubImporter) Import(_ context.Context, _ string, r io.Reader) (imports.Result, int, error) {
	data, _ := io.ReadAll(r)
	s.body = string(data)
	if s.err != nil {
		return imports.Result{}, 0, s.err
	}
	if s.result.HasErrors() {
		return s.result, 0, nil
	}
	return s.result, s.result.TotalRows, nil
}

type stubSender struct{}

func (stubSender) Send(_ context.Context, _ string, ids []string) ([]distribution.SendResult, error) {
	out := make([]distribution.SendResult, 0, len(ids))
	for _, id := range ids {
		out = append(out, distribution.SendResult{BatchID: id, OK: true, Status: distribution.StatusSent})
	}
	return out, nil
}

type recordingAudit struct{ entries []audit.Entry }

func (a *recordingAudit) Record(_ context.Context, e audit.Entry) error {
	a.entries = append(a.entries, e)
	return nil
}

type recordingJobs struct{ types []string }

func (j *recordingJobs) RunNow(ctx context.Context, jobType, _ string, run jobs.RunFunc) (any, error) {
	j.types = append(j.types, jobType)
	return run(ctx)
}

type recordingEvents struct{ subjects []string }

func (p *recordingEvents) Publish(_ context.Context, subject string, _ events.Event) error {
	p.subjects = append(p.subjects, subject)
	return nil
}

func (p *recordingEvents) Close() {}

type fixture struct {
	handler   *Handler
	generator *stubGenerator
	records   *stubRecords
	importer  *stubImporter
	audit     *recordingAudit
	jobs      *recordingJobs
	events    *recordingEvents
	router    http.Handler
}

func newFixture() *fixture {
	f := &fixture{
		generator: &stubGenerator{},
		records:   &stubRecords{},
		importer:  &stubImporter{},
		audit:     &recordingAudit{},
		jobs:      &recordingJobs{},
		events:    &recordingEvents{},
	}
	f.handler = &Handler{
		Generator: f.generator,
		Records:   f.records,
		Importer:  f.importer,
		Sender:    stubSender{},
		Jobs:      f.jobs,
		Audit:     f.audit,
		Events:    f.events,
		Perms:     auth.StaticPermissions{},
	}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			user := auth.UserContext{UserID: "user-1", TenantID: "tenant-1", RoleName: auth.RoleAdmin}
			next.ServeHTTP(w, req.WithContext(middleware.WithUser(req.Context(), user)))
		})
	})
	r.Route("/api", f.handler.RegisterRoutes)
	f.router = r
	return f
}

func (f *fixture) do(method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) postJSON(path string, payload any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(payload)
	return f.do(http.MethodPost, path, bytes.NewReader(data), "application/json")
}

type generateResponse struct {
	Results []payslip.Result `json:"results"`
}

func TestGenerateWithBatchIDs(t *testing.T) {
	f := newFixture()
	rec := f.postJSON("/api/admin/payslips/generate", map[string]any{"batchIds": []string{idA, idB, idA}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body generateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Results, 2)
	assert.Equal(t, idA, body.Results[0].BatchID)
	assert.Equal(t, idB, body.Results[1].BatchID)
	assert.True(t, f.generator.ctxOK)
	assert.Equal(t, []string{jobs.JobPayslipGenerate}, f.jobs.types)
	assert.Equal(t, []string{events.SubjectPayslipsGenerated}, f.events.subjects)
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, audit.ActionPayslipsGenerate, f.audit.entries[0].Action)
	assert.Equal(t, "tenant-1", f.audit.entries[0].TenantID)
}

func TestGenerateWithFiltersReportsUnresolvedIDs(t *testing.T) {
	f := newFixture()
	f.records.resolved = []string{idB}

	rec := f.postJSON("/api/admin/payslips/generate", map[string]any{"filters": map[string]any{"ids": []string{idA, idB, idC}}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body generateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Results, 3)
	assert.Equal(t, []string{idB}, f.generator.calls[0])
	assert.False(t, body.Results[0].OK)
	assert.Equal(t, "record not found", body.Results[0].Message)
	assert.True(t, body.Results[1].OK)
	assert.Equal(t, idC, body.Results[2].BatchID)
	assert.False(t, body.Results[2].OK)
}

func TestGenerateFiltersWithNothingResolvedSkipsGenerator(t *testing.T) {
	f := newFixture()
	rec := f.postJSON("/api/admin/payslips/generate", map[string]any{"filters": map[string]any{"ids": []string{idA}}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.generator.calls)
}

func TestGenerateValidation(t *testing.T) {
	f := newFixture()
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed", body: "{"},
		{name: "empty", body: `{"batchIds":[]}`},
		{name: "not uuid", body: `{"batchIds":["nope"]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/api/admin/payslips/generate", strings.NewReader(tc.body), "application/json")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, f.generator.calls)
}

func TestGenerateFailureReturnsErrorBody(t *testing.T) {
	f := newFixture()
	f.generator.err = errors.New("storage offline")

	rec := f.postJSON("/api/admin/payslips/generate", map[string]any{"batchIds": []string{idA}})
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "storage offline", body["error"])
	assert.Empty(t, f.events.subjects)
}

func TestListParsesFilters(t *testing.T) {
	f := newFixture()
	f.records.rows = []payroll.Record{{ID: idA}}

	rec := f.do(http.MethodGet, "/api/admin/payslips/list?limit=10&offset=20&sortBy=employeeName&sortDir=asc&employers=Acme,Globex&dates=2026-01-31&currency=aed&includeDeleted=true", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Rows  []payroll.Record `json:"rows"`
		Total int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Total)
	assert.Equal(t, 10, f.records.filter.Limit)
	assert.Equal(t, 20, f.records.filter.Offset)
	assert.Equal(t, []string{"Acme", "Globex"}, f.records.filter.Employers)
	assert.Len(t, f.records.filter.PeriodEnds, 1)
	assert.True(t, f.records.filter.IncludeDeleted)
}

func TestListRejectsBadQuery(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodGet, "/api/admin/payslips/list?sortDir=sideways&dates=31-01-2026", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportCSV(t *testing.T) {
	f := newFixture()
	f.records.rows = []payroll.Record{{ID: idA, EmployeeName: "Jane Doe"}}

	rec := f.do(http.MethodGet, "/api/admin/payslips/export?format=csv", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, imports.ContentType(imports.FormatCSV), rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".csv")
	assert.Contains(t, rec.Body.String(), "Jane Doe")
	assert.Equal(t, maxExportRows, f.records.filter.Limit)
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodGet, "/api/admin/payslips/export?format=pdf", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportMultipart(t *testing.T) {
	f := newFixture()
	f.importer.result = imports.Result{TotalRows: 2}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "payroll.csv")
	require.NoError(t, err)
	_, _ = part.Write([]byte("employee_id,net_salary\n"))
	require.NoError(t, mw.Close())

	rec := f.do(http.MethodPost, "/api/admin/payslips/import", &buf, mw.FormDataContentType())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "employee_id,net_salary\n", f.importer.body)
	assert.JSONEq(t, `{"inserted":2,"totalRows":2}`, rec.Body.String())
}

func TestImportValidationErrors(t *testing.T) {
	f := newFixture()
	f.importer.result = imports.Result{
		TotalRows: 1,
		Errors:    []imports.RowError{{Row: 2, Field: "iban", Message: "invalid checksum"}},
	}

	rec := f.do(http.MethodPost, "/api/admin/payslips/import", strings.NewReader("a,b\n1,2\n"), "text/csv")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid checksum")
	assert.Empty(t, f.audit.entries)
}

func TestImportEmptyFile(t *testing.T) {
	f := newFixture()
	f.importer.err = imports.ErrEmptyFile
	rec := f.do(http.MethodPost, "/api/admin/payslips/import", strings.NewReader(""), "text/csv")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "empty_file")
}

func TestSendRecordsJobAndEvent(t *testing.T) {
	f := newFixture()
	rec := f.postJSON("/api/admin/payslips/send", map[string]any{"batchIds": []string{idA}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"batch_id":"`+idA+`"`)
	assert.Equal(t, []string{jobs.JobPayslipSend}, f.jobs.types)
	assert.Equal(t, []string{events.SubjectPayslipsSent}, f.events.subjects)
}

func TestDeleteAndRestore(t *testing.T) {
	f := newFixture()
	rec := f.postJSON("/api/admin/payslips/delete", map[string]any{"batchIds": []string{idA, idA, idB}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{idA, idB}, f.records.deleted)
	assert.JSONEq(t, `{"affected":2}`, rec.Body.String())

	rec = f.postJSON("/api/admin/payslips/restore", map[string]any{"batchIds": []string{idB}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{idB}, f.records.restored)
	require.Len(t, f.audit.entries, 2)
	assert.Equal(t, audit.ActionPayrollRestore, f.audit.entries[1].Action)
}

func TestRoutesRequirePermission(t *testing.T) {
	f := newFixture()
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			user := auth.UserContext{UserID: "user-2", TenantID: "tenant-1", RoleName: auth.RoleEmployee}
			next.ServeHTTP(w, req.WithContext(middleware.WithUser(req.Context(), user)))
		})
	})
	r.Route("/api", f.handler.RegisterRoutes)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/payslips/generate", strings.NewReader(`{"batchIds":["`+idA+`"]}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, f.generator.calls)
}
