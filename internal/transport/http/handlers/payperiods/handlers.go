package payperiodshandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"payrolladmin/internal/domain/audit"
	"payrolladmin/internal/domain/auth"
	"payrolladmin/internal/domain/closure"
	"payrolladmin/internal/platform/events"
	"payrolladmin/internal/platform/jobs"
	"payrolladmin/internal/transport/http/api"
	"payrolladmin/internal/transport/http/middleware"
	"payrolladmin/internal/transport/http/shared"
)

const closeEndpoint = "pay-periods.close"

type Closer interface {
	Close(ctx context.Context, tenantID, actorID string, periodEnds []time.Time, notes string) (closure.Summary, error)
	ListActive(ctx context.Context, tenantID string) ([]closure.ActivePeriod, error)
	ListHistory(ctx context.Context, tenantID string, limit, offset int) ([]closure.HistoryBatch, int, error)
}

type Idempotency interface {
	Check(ctx context.Context, tenantID, userID, endpoint, key, requestHash string) (json.RawMessage, bool, error)
	Save(ctx context.Context, tenantID, userID, endpoint, key, requestHash string, response json.RawMessage) error
}

type JobRunner interface {
	RunNow(ctx context.Context, jobType, tenantID string, run jobs.RunFunc) (any, error)
}

type Auditor interface {
	Record(ctx context.Context, e audit.Entry) error
}

type Handler struct {
	Service     Closer
	Idempotency Idempotency
	Jobs        JobRunner
	Audit       Auditor
	Events      events.Publisher
	Perms       middleware.PermissionStore
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/admin/pay-periods", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermPeriodsClose, h.Perms)).Post("/close", h.handleClose)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/list-active", h.handleListActive)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/history", h.handleHistory)
	})
}

type closeRequest struct {
	PeriodEndDates []string `json:"period_end_dates"`
	Notes          string   `json:"notes"`
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	var req closeRequest
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}

	v := shared.NewValidator()
	if len(req.PeriodEndDates) == 0 {
		v.Add("period_end_dates", "must contain at least 1 item(s)")
	}
	periodEnds := make([]time.Time, 0, len(req.PeriodEndDates))
	for i, rawDate := range req.PeriodEndDates {
		if d, ok := v.Date(fmt.Sprintf("period_end_dates[%d]", i), rawDate); ok {
			periodEnds = append(periodEnds, d)
		}
	}
	if len(req.Notes) > 2000 {
		v.Add("notes", "must be at most 2000 characters")
	}
	if v.Reject(w, requestID) {
		return
	}

	key := r.Header.Get(middleware.IdempotencyHeader)
	hash := middleware.RequestHash(raw)
	if h.Idempotency != nil && key != "" {
		stored, found, err := h.Idempotency.Check(r.Context(), user.TenantID, user.UserID, closeEndpoint, key, hash)
		if errors.Is(err, middleware.ErrIdempotencyConflict) {
			api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key was used with a different request", requestID)
			return
		}
		if err != nil {
			slog.Error("idempotency check failed", "tenantId", user.TenantID, "err", err)
			api.Fail(w, http.StatusInternalServerError, "close_failed", "failed to close pay periods", requestID)
			return
		}
		if found {
			w.Header().Set("Idempotent-Replay", "true")
			api.Success(w, stored, requestID)
			return
		}
	}

	ctx := context.WithoutCancel(r.Context())
	run := func(ctx context.Context) (any, error) {
		return h.Service.Close(ctx, user.TenantID, user.UserID, periodEnds, req.Notes)
	}
	var out any
	if h.Jobs != nil {
		out, err = h.Jobs.RunNow(ctx, jobs.JobPeriodClose, user.TenantID, run)
	} else {
		out, err = run(ctx)
	}
	switch {
	case errors.Is(err, closure.ErrNoPeriods):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "period_end_dates", Reason: err.Error()}})
		return
	case errors.Is(err, closure.ErrNothingToClose):
		api.Fail(w, http.StatusNotFound, "nothing_to_close", err.Error(), requestID)
		return
	case err != nil:
		slog.Error("close pay periods failed", "tenantId", user.TenantID, "err", err)
		api.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	summary, _ := out.(closure.Summary)
	body := map[string]any{"summary": summary}

	if h.Idempotency != nil && key != "" {
		encoded, err := json.Marshal(body)
		if err == nil {
			err = h.Idempotency.Save(ctx, user.TenantID, user.UserID, closeEndpoint, key, hash, encoded)
		}
		if err != nil {
			slog.Warn("idempotency save failed", "tenantId", user.TenantID, "err", err)
		}
	}
	if h.Audit != nil {
		if err := h.Audit.Record(ctx, audit.Entry{
			TenantID:   user.TenantID,
			ActorID:    user.UserID,
			Action:     audit.ActionPeriodsClose,
			EntityType: "payroll_history",
			EntityID:   summary.BatchID,
			RequestID:  requestID,
			IP:         shared.ClientIP(r),
			After:      summary,
		}); err != nil {
			slog.Warn("audit record failed", "action", audit.ActionPeriodsClose, "err", err)
		}
	}
	events.PublishBestEffort(ctx, h.Events, events.SubjectPeriodsClosed, events.Event{
		Type:     events.SubjectPeriodsClosed,
		TenantID: user.TenantID,
		ActorID:  user.UserID,
		Data:     summary,
	})
	api.Success(w, body, requestID)
}

func (h *Handler) handleListActive(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())
	periods, err := h.Service.ListActive(r.Context(), user.TenantID)
	if err != nil {
		slog.Error("list active periods failed", "tenantId", user.TenantID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "list_failed", "failed to list active periods", requestID)
		return
	}
	if periods == nil {
		periods = []closure.ActivePeriod{}
	}
	api.Success(w, map[string]any{"periods": periods}, requestID)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, 20, 100)
	batches, total, err := h.Service.ListHistory(r.Context(), user.TenantID, page.Limit, page.Offset)
	if err != nil {
		slog.Error("list closure history failed", "tenantId", user.TenantID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "list_failed", "failed to list closure history", requestID)
		return
	}
	if batches == nil {
		batches = []closure.HistoryBatch{}
	}
	api.Success(w, map[string]any{"rows": batches, "total": total}, requestID)
}
