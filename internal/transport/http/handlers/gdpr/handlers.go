package gdprhandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"payrolladmin/internal/domain/audit"
	"payrolladmin/internal/domain/auth"
	"payrolladmin/internal/domain/gdpr"
	"payrolladmin/internal/transport/http/api"
	"payrolladmin/internal/transport/http/middleware"
	"payrolladmin/internal/transport/http/shared"
)

type Service interface {
	RequestExport(ctx context.Context, tenantID, userID, email string) (gdpr.ExportTicket, error)
	DownloadExport(ctx context.Context, tenantID, exportID, token string) ([]byte, error)
	RequestDeletion(ctx context.Context, tenantID, userID, email string) (gdpr.DeletionRequest, error)
	DeletionStatus(ctx context.Context, tenantID, userID string) (gdpr.DeletionRequest, error)
}

type Auditor interface {
	Record(ctx context.Context, e audit.Entry) error
}

type Handler struct {
	Service Service
	Audit   Auditor
	Perms   middleware.PermissionStore
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/gdpr", func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.PermGDPRSelf, h.Perms))
		r.Post("/data-export", h.handleRequestExport)
		r.Get("/data-export", h.handleDownloadExport)
		r.Post("/data-deletion", h.handleRequestDeletion)
		r.Get("/data-deletion", h.handleDeletionStatus)
	})
}

func (h *Handler) handleRequestExport(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())

	ticket, err := h.Service.RequestExport(r.Context(), user.TenantID, user.UserID, user.Email)
	if errors.Is(err, gdpr.ErrEmailRequired) {
		api.Fail(w, http.StatusBadRequest, "email_required", "the session carries no email address", requestID)
		return
	}
	if err != nil {
		slog.Error("gdpr export failed", "tenantId", user.TenantID, "userId", user.UserID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "export_failed", "failed to export personal data", requestID)
		return
	}
	h.audit(r, audit.ActionGDPRExport, ticket.ExportID)
	api.Created(w, ticket, requestID)
}

func (h *Handler) handleDownloadExport(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())
	q := r.URL.Query()

	v := shared.NewValidator()
	v.Required("id", q.Get("id"), "is required")
	v.UUID("id", q.Get("id"))
	v.Required("token", q.Get("token"), "is required")
	if v.Reject(w, requestID) {
		return
	}

	data, err := h.Service.DownloadExport(r.Context(), user.TenantID, q.Get("id"), q.Get("token"))
	switch {
	case errors.Is(err, gdpr.ErrExportNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", err.Error(), requestID)
		return
	case errors.Is(err, gdpr.ErrInvalidToken):
		api.Fail(w, http.StatusForbidden, "invalid_token", err.Error(), requestID)
		return
	case errors.Is(err, gdpr.ErrExportExpired):
		api.Fail(w, http.StatusGone, "expired", err.Error(), requestID)
		return
	case errors.Is(err, gdpr.ErrExportNotReady):
		api.Fail(w, http.StatusConflict, "not_ready", err.Error(), requestID)
		return
	case err != nil:
		slog.Error("gdpr export download failed", "tenantId", user.TenantID, "exportId", q.Get("id"), "err", err)
		api.Fail(w, http.StatusInternalServerError, "download_failed", "failed to read data export", requestID)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="data-export-`+q.Get("id")+`.json"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) handleRequestDeletion(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())

	// the sweep finishes even when the client disconnects
	req, err := h.Service.RequestDeletion(context.WithoutCancel(r.Context()), user.TenantID, user.UserID, user.Email)
	if errors.Is(err, gdpr.ErrEmailRequired) {
		api.Fail(w, http.StatusBadRequest, "email_required", "the session carries no email address", requestID)
		return
	}
	if err != nil {
		slog.Error("gdpr deletion failed", "tenantId", user.TenantID, "userId", user.UserID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "deletion_failed", "failed to record deletion request", requestID)
		return
	}
	h.audit(r, audit.ActionGDPRDeletion, req.ID)
	status := http.StatusAccepted
	if req.Status == gdpr.StatusFailed {
		status = http.StatusInternalServerError
	}
	api.WriteJSON(w, status, req)
}

func (h *Handler) handleDeletionStatus(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())

	req, err := h.Service.DeletionStatus(r.Context(), user.TenantID, user.UserID)
	if errors.Is(err, gdpr.ErrDeletionNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", err.Error(), requestID)
		return
	}
	if err != nil {
		slog.Error("gdpr deletion status failed", "tenantId", user.TenantID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "status_failed", "failed to read deletion status", requestID)
		return
	}
	api.Success(w, req, requestID)
}

func (h *Handler) audit(r *http.Request, action, entityID string) {
	if h.Audit == nil {
		return
	}
	user, _ := middleware.GetUser(r.Context())
	err := h.Audit.Record(context.WithoutCancel(r.Context()), audit.Entry{
		TenantID:   user.TenantID,
		ActorID:    user.UserID,
		Action:     action,
		EntityType: "gdpr_request",
		EntityID:   entityID,
		RequestID:  middleware.GetRequestID(r.Context()),
		IP:         shared.ClientIP(r),
	})
	if err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}
