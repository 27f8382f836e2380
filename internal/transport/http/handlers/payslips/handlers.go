package payslipshandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"payrolladmin/internal/domain/audit"
	"payrolladmin/internal/domain/auth"
	"payrolladmin/internal/domain/distribution"
	"payrolladmin/internal/domain/imports"
	"payrolladmin/internal/domain/payroll"
	"payrolladmin/internal/domain/payslip"
	"payrolladmin/internal/platform/events"
	"payrolladmin/internal/platform/jobs"
	"payrolladmin/internal/transport/http/api"
	"payrolladmin/internal/transport/http/middleware"
	"payrolladmin/internal/transport/http/shared"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
	maxExportRows   = 50000
)

type Generator interface {
	Generate(ctx context.Context, tenantID string, ids []string) ([]payslip.Result, error)
}

type Records interface {
	List(ctx context.Context, tenantID string, filter payroll.ListFilter) ([]payroll.Record, int, error)
	ResolveIDs(ctx context.Context, tenantID string, ids []string) ([]string, error)
	SoftDelete(ctx context.Context, tenantID string, ids []string) (int64, error)
	Restore(ctx context.Context, tenantID string, ids []string) (int64, error)
}

type Importer interface {
	Import(ctx context.Context, tenantID string, r io.Reader) (imports.Result, int, error)
}

type Sender interface {
	Send(ctx context.Context, tenantID string, ids []string) ([]distribution.SendResult, error)
}

type JobRunner interface {
	RunNow(ctx context.Context, jobType, tenantID string, run jobs.RunFunc) (any, error)
}

type Auditor interface {
	Record(ctx context.Context, e audit.Entry) error
}

type Handler struct {
	Generator Generator
	Records   Records
	Importer  Importer
	Sender    Sender
	Jobs      JobRunner
	Audit     Auditor
	Events    events.Publisher
	Perms     middleware.PermissionStore
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/admin/payslips", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermPayslipsGenerate, h.Perms)).Post("/generate", h.handleGenerate)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/list", h.handleList)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/export", h.handleExport)
		r.With(middleware.RequirePermission(auth.PermPayrollWrite, h.Perms)).Post("/import", h.handleImport)
		r.With(middleware.RequirePermission(auth.PermPayslipsSend, h.Perms)).Post("/send", h.handleSend)
		r.With(middleware.RequirePermission(auth.PermPayrollWrite, h.Perms)).Post("/delete", h.handleDelete)
		r.With(middleware.RequirePermission(auth.PermPayrollWrite, h.Perms)).Post("/restore", h.handleRestore)
	})
}

type idsRequest struct {
	BatchIDs []string `json:"batchIds"`
	Filters  *struct {
		IDs []string `json:"ids"`
	} `json:"filters"`
}

func (req idsRequest) fromFilters() bool {
	return len(req.BatchIDs) == 0 && req.Filters != nil
}

func (req idsRequest) ids() []string {
	if len(req.BatchIDs) > 0 {
		return req.BatchIDs
	}
	if req.Filters != nil {
		return req.Filters.IDs
	}
	return nil
}

func decodeIDs(w http.ResponseWriter, r *http.Request) (idsRequest, bool) {
	requestID := middleware.GetRequestID(r.Context())
	var req idsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return req, false
	}
	v := shared.NewValidator()
	ids := payslip.DedupeIDs(req.ids())
	if len(ids) == 0 {
		v.Add("batchIds", "must contain at least 1 item(s)")
	}
	for i, id := range ids {
		v.UUID(fmt.Sprintf("batchIds[%d]", i), id)
	}
	if v.Reject(w, requestID) {
		return req, false
	}
	return req, true
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())
	req, ok := decodeIDs(w, r)
	if !ok {
		return
	}

	// an accepted batch runs to completion even if the client goes away
	ctx := context.WithoutCancel(r.Context())
	requested := payslip.DedupeIDs(req.ids())

	out, err := h.runJob(ctx, jobs.JobPayslipGenerate, user.TenantID, func(ctx context.Context) (any, error) {
		return h.generate(ctx, user.TenantID, requested, req.fromFilters())
	})
	if err != nil {
		slog.Error("payslip generation failed", "tenantId", user.TenantID, "requestId", requestID, "err", err)
		api.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	results, _ := out.([]payslip.Result)

	succeeded := 0
	for _, res := range results {
		if res.OK {
			succeeded++
		}
	}
	h.audit(ctx, r, audit.Entry{
		Action:     audit.ActionPayslipsGenerate,
		EntityType: "payroll_records",
		After:      map[string]int{"requested": len(results), "succeeded": succeeded},
	})
	events.PublishBestEffort(ctx, h.Events, events.SubjectPayslipsGenerated, events.Event{
		Type:     events.SubjectPayslipsGenerated,
		TenantID: user.TenantID,
		ActorID:  user.UserID,
		Data:     results,
	})
	api.Success(w, map[string]any{"results": results}, requestID)
}

// generate reports every requested id. Ids given as filters are resolved
// first; ids that do not resolve are reported as not found.
func (h *Handler) generate(ctx context.Context, tenantID string, requested []string, resolve bool) ([]payslip.Result, error) {
	ids := requested
	if resolve {
		resolved, err := h.Records.ResolveIDs(ctx, tenantID, requested)
		if err != nil {
			return nil, fmt.Errorf("resolve ids: %w", err)
		}
		ids = resolved
	}
	byID := map[string]payslip.Result{}
	if len(ids) > 0 {
		results, err := h.Generator.Generate(ctx, tenantID, ids)
		if err != nil {
			return nil, err
		}
		for _, res := range results {
			byID[res.BatchID] = res
		}
	}
	out := make([]payslip.Result, 0, len(requested))
	for _, id := range requested {
		res, ok := byID[id]
		if !ok {
			res = payslip.Result{BatchID: id, Message: "record not found"}
		}
		out = append(out, res)
	}
	return out, nil
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())
	filter, ok := parseListFilter(w, r)
	if !ok {
		return
	}
	page := shared.ParsePagination(r, defaultPageSize, maxPageSize)
	filter.Limit = page.Limit
	filter.Offset = page.Offset

	rows, total, err := h.Records.List(r.Context(), user.TenantID, filter)
	if err != nil {
		slog.Error("list payroll records failed", "tenantId", user.TenantID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "list_failed", "failed to list payroll records", requestID)
		return
	}
	if rows == nil {
		rows = []payroll.Record{}
	}
	api.Success(w, map[string]any{"rows": rows, "total": total}, requestID)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = imports.FormatCSV
	}
	if format != imports.FormatCSV && format != imports.FormatXLSX {
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "format", Reason: "must be one of csv xlsx"}})
		return
	}
	filter, ok := parseListFilter(w, r)
	if !ok {
		return
	}
	filter.Limit = maxExportRows

	rows, _, err := h.Records.List(r.Context(), user.TenantID, filter)
	if err != nil {
		slog.Error("export payroll records failed", "tenantId", user.TenantID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "export_failed", "failed to export payroll records", requestID)
		return
	}
	var buf bytes.Buffer
	if err := imports.Export(&buf, format, rows); err != nil {
		slog.Error("render export failed", "format", format, "err", err)
		api.Fail(w, http.StatusInternalServerError, "export_failed", "failed to export payroll records", requestID)
		return
	}
	filename := fmt.Sprintf("payroll-%s.%s", time.Now().UTC().Format("20060102"), format)
	w.Header().Set("Content-Type", imports.ContentType(format))
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())

	body, closeBody, err := importBody(r)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", err.Error(), requestID)
		return
	}
	defer closeBody()

	result, inserted, err := h.Importer.Import(r.Context(), user.TenantID, body)
	switch {
	case errors.Is(err, imports.ErrEmptyFile):
		api.Fail(w, http.StatusBadRequest, "empty_file", "the uploaded file has no data rows", requestID)
		return
	case err != nil:
		slog.Error("payroll import failed", "tenantId", user.TenantID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "import_failed", "failed to import payroll records", requestID)
		return
	}
	if result.HasErrors() {
		api.FailWithDetails(w, http.StatusBadRequest, "validation_error", "import validation failed",
			map[string]any{"errors": result.Errors, "totalRows": result.TotalRows}, requestID)
		return
	}
	h.audit(r.Context(), r, audit.Entry{
		Action:     audit.ActionPayrollImport,
		EntityType: "payroll_records",
		After:      map[string]int{"inserted": inserted, "totalRows": result.TotalRows},
	})
	api.Created(w, map[string]any{"inserted": inserted, "totalRows": result.TotalRows}, requestID)
}

// importBody accepts a multipart upload in the "file" field or a raw CSV
// body.
func importBody(r *http.Request) (io.Reader, func(), error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, nil, errors.New("multipart field \"file\" is required")
		}
		return file, func() { _ = file.Close() }, nil
	}
	return r.Body, func() {}, nil
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())
	req, ok := decodeIDs(w, r)
	if !ok {
		return
	}
	ctx := context.WithoutCancel(r.Context())

	out, err := h.runJob(ctx, jobs.JobPayslipSend, user.TenantID, func(ctx context.Context) (any, error) {
		return h.Sender.Send(ctx, user.TenantID, req.ids())
	})
	if err != nil {
		slog.Error("payslip send failed", "tenantId", user.TenantID, "err", err)
		api.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	results, _ := out.([]distribution.SendResult)

	h.audit(ctx, r, audit.Entry{
		Action:     audit.ActionPayslipsSend,
		EntityType: "payroll_records",
		After:      map[string]int{"requested": len(results)},
	})
	events.PublishBestEffort(ctx, h.Events, events.SubjectPayslipsSent, events.Event{
		Type:     events.SubjectPayslipsSent,
		TenantID: user.TenantID,
		ActorID:  user.UserID,
		Data:     results,
	})
	api.Success(w, map[string]any{"results": results}, requestID)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	h.changeDeleted(w, r, audit.ActionPayrollDelete, h.Records.SoftDelete)
}

func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	h.changeDeleted(w, r, audit.ActionPayrollRestore, h.Records.Restore)
}

func (h *Handler) changeDeleted(w http.ResponseWriter, r *http.Request, action string, apply func(context.Context, string, []string) (int64, error)) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())
	req, ok := decodeIDs(w, r)
	if !ok {
		return
	}
	ids := payslip.DedupeIDs(req.ids())
	affected, err := apply(r.Context(), user.TenantID, ids)
	if err != nil {
		slog.Error("payroll soft delete change failed", "action", action, "tenantId", user.TenantID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "update_failed", "failed to update payroll records", requestID)
		return
	}
	h.audit(r.Context(), r, audit.Entry{
		Action:     action,
		EntityType: "payroll_records",
		EntityID:   strings.Join(ids, ","),
		After:      map[string]int64{"affected": affected},
	})
	api.Success(w, map[string]any{"affected": affected}, requestID)
}

func (h *Handler) runJob(ctx context.Context, jobType, tenantID string, run jobs.RunFunc) (any, error) {
	if h.Jobs == nil {
		return run(ctx)
	}
	return h.Jobs.RunNow(ctx, jobType, tenantID, run)
}

func (h *Handler) audit(ctx context.Context, r *http.Request, e audit.Entry) {
	if h.Audit == nil {
		return
	}
	user, _ := middleware.GetUser(r.Context())
	e.TenantID = user.TenantID
	e.ActorID = user.UserID
	e.RequestID = middleware.GetRequestID(r.Context())
	e.IP = shared.ClientIP(r)
	if err := h.Audit.Record(ctx, e); err != nil {
		slog.Warn("audit record failed", "action", e.Action, "err", err)
	}
}

func parseListFilter(w http.ResponseWriter, r *http.Request) (payroll.ListFilter, bool) {
	q := r.URL.Query()
	requestID := middleware.GetRequestID(r.Context())
	v := shared.NewValidator()

	filter := payroll.ListFilter{
		SortBy:    q.Get("sortBy"),
		SortDir:   q.Get("sortDir"),
		Search:    q.Get("search"),
		Employers: shared.SplitList(q.Get("employers")),
		Currency:  q.Get("currency"),
	}
	v.Enum("sortDir", filter.SortDir, []string{"asc", "desc"}, "must be asc or desc")
	dates, err := shared.ParseDateList(q.Get("dates"))
	if err != nil {
		v.Add("dates", "must be a comma separated list of YYYY-MM-DD dates")
	}
	filter.PeriodEnds = dates
	if raw := q.Get("includeDeleted"); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			v.Add("includeDeleted", "must be true or false")
		}
		filter.IncludeDeleted = include
	}
	if v.Reject(w, requestID) {
		return filter, false
	}
	return filter, true
}
