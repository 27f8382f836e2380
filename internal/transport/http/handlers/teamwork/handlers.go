package teamworkhandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"payrolladmin/internal/domain/audit"
	"payrolladmin/internal/domain/auth"
	"payrolladmin/internal/domain/teamwork"
	"payrolladmin/internal/transport/http/api"
	"payrolladmin/internal/transport/http/middleware"
	"payrolladmin/internal/transport/http/shared"
)

type Refresher interface {
	Refresh(ctx context.Context, tenantID string) (teamwork.TokenInfo, error)
}

type Auditor interface {
	Record(ctx context.Context, e audit.Entry) error
}

type Handler struct {
	Service Refresher
	Audit   Auditor
	Perms   middleware.PermissionStore
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequirePermission(auth.PermIntegrationsManage, h.Perms)).Post("/teamwork/refresh", h.handleRefresh)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())

	info, err := h.Service.Refresh(r.Context(), user.TenantID)
	switch {
	case errors.Is(err, teamwork.ErrNotConfigured):
		api.Fail(w, http.StatusServiceUnavailable, "not_configured", err.Error(), requestID)
		return
	case errors.Is(err, teamwork.ErrNotConnected):
		api.Fail(w, http.StatusNotFound, "not_connected", err.Error(), requestID)
		return
	case err != nil:
		slog.Error("teamwork token refresh failed", "tenantId", user.TenantID, "err", err)
		api.Fail(w, http.StatusBadGateway, "refresh_failed", "failed to refresh teamwork token", requestID)
		return
	}

	if h.Audit != nil {
		if err := h.Audit.Record(r.Context(), audit.Entry{
			TenantID:   user.TenantID,
			ActorID:    user.UserID,
			Action:     audit.ActionTeamworkRefresh,
			EntityType: "integration_token",
			EntityID:   teamwork.Provider,
			RequestID:  requestID,
			IP:         shared.ClientIP(r),
		}); err != nil {
			slog.Warn("audit record failed", "action", audit.ActionTeamworkRefresh, "err", err)
		}
	}
	api.Success(w, info, requestID)
}
