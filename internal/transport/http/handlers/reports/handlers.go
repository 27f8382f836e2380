package reportshandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"payrolladmin/internal/domain/auth"
	"payrolladmin/internal/domain/distribution"
	"payrolladmin/internal/platform/jobs"
	"payrolladmin/internal/transport/http/api"
	"payrolladmin/internal/transport/http/middleware"
	"payrolladmin/internal/transport/http/shared"
)

var jobStatuses = []string{"running", "completed", "failed"}

type JobRuns interface {
	ListRuns(ctx context.Context, tenantID string, f jobs.RunFilter) ([]jobs.Run, int, error)
	GetRun(ctx context.Context, tenantID, runID string) (jobs.Run, error)
}

type SendHistory interface {
	Events(ctx context.Context, tenantID, batchID string) ([]distribution.SendEvent, error)
}

type Handler struct {
	Jobs  JobRuns
	Sends SendHistory
	Perms middleware.PermissionStore
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/admin/reports", func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.PermPayrollRead, h.Perms))
		r.Get("/jobs", h.handleListJobs)
		r.Get("/jobs/{id}", h.handleGetJob)
		r.Get("/send-events/{batchId}", h.handleSendEvents)
	})
}

func (h *Handler) handleListJobs(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())
	q := r.URL.Query()

	v := shared.NewValidator()
	filter := jobs.RunFilter{JobType: q.Get("jobType"), Status: q.Get("status")}
	v.Enum("status", filter.Status, jobStatuses, "must be one of running completed failed")
	if raw := q.Get("startedFrom"); raw != "" {
		filter.StartedFrom, _ = v.Date("startedFrom", raw)
	}
	if raw := q.Get("startedTo"); raw != "" {
		filter.StartedTo, _ = v.Date("startedTo", raw)
	}
	v.DateOrder("startedFrom", filter.StartedFrom, "startedTo", filter.StartedTo)
	if v.Reject(w, requestID) {
		return
	}
	page := shared.ParsePagination(r, 50, 200)
	filter.Limit = page.Limit
	filter.Offset = page.Offset

	runs, total, err := h.Jobs.ListRuns(r.Context(), user.TenantID, filter)
	if err != nil {
		slog.Error("list job runs failed", "tenantId", user.TenantID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "jobs_list_failed", "failed to list job runs", requestID)
		return
	}
	if runs == nil {
		runs = []jobs.Run{}
	}
	api.Success(w, map[string]any{"rows": runs, "total": total}, requestID)
}

func (h *Handler) handleGetJob(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())
	runID := chi.URLParam(r, "id")

	v := shared.NewValidator()
	v.UUID("id", runID)
	if v.Reject(w, requestID) {
		return
	}
	run, err := h.Jobs.GetRun(r.Context(), user.TenantID, runID)
	if errors.Is(err, jobs.ErrRunNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", err.Error(), requestID)
		return
	}
	if err != nil {
		slog.Error("get job run failed", "tenantId", user.TenantID, "runId", runID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "job_get_failed", "failed to load job run", requestID)
		return
	}
	api.Success(w, run, requestID)
}

func (h *Handler) handleSendEvents(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())
	batchID := chi.URLParam(r, "batchId")

	v := shared.NewValidator()
	v.UUID("batchId", batchID)
	if v.Reject(w, requestID) {
		return
	}
	events, err := h.Sends.Events(r.Context(), user.TenantID, batchID)
	if err != nil {
		slog.Error("list send events failed", "tenantId", user.TenantID, "batchId", batchID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "send_events_failed", "failed to list send events", requestID)
		return
	}
	if events == nil {
		events = []distribution.SendEvent{}
	}
	api.Success(w, map[string]any{"rows": events}, requestID)
}
