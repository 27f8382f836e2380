package audithandler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"payrolladmin/internal/domain/audit"
	"payrolladmin/internal/domain/auth"
	"payrolladmin/internal/transport/http/middleware"
)

type stubReader struct {
	filter audit.Filter
	limit  int
	events []audit.Event
}

func (s *stubReader) Count(context.Context, string, audit.Filter) (int, error) {
	return len(s.events), nil
}

func (s *stubReader) List(_ context.Context, _ string, f audit.Filter, _ bool, limit, _ int) ([]audit.Event, error) {
	s.filter = f
	s.limit = limit
	return s.events, nil
}

func serve(t *testing.T, reader Reader, role, target string) *httptest.ResponseRecorder {
	t.Helper()
	h := &Handler{Service: reader, Perms: auth.StaticPermissions{}}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			user := auth.UserContext{UserID: "user-1", TenantID: "tenant-1", RoleName: role}
			next.ServeHTTP(w, req.WithContext(middleware.WithUser(req.Context(), user)))
		})
	})
	r.Route("/api", h.RegisterRoutes)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestListEvents(t *testing.T) {
	reader := &stubReader{events: []audit.Event{{ID: "e1", Action: audit.ActionPeriodsClose, EntityType: "payroll_history"}}}
	rec := serve(t, reader, auth.RoleAdmin, "/api/admin/audit/events?action=pay_periods.close&since=2026-01-01&limit=10")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Total-Count") != "1" {
		t.Fatalf("unexpected total header %q", rec.Header().Get("X-Total-Count"))
	}
	if reader.filter.Action != audit.ActionPeriodsClose || reader.filter.Since.IsZero() || reader.limit != 10 {
		t.Fatalf("unexpected filter %+v limit %d", reader.filter, reader.limit)
	}
}

func TestListEventsRejectsBadSince(t *testing.T) {
	rec := serve(t, &stubReader{}, auth.RoleAdmin, "/api/admin/audit/events?since=yesterday")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestExportEventsCSV(t *testing.T) {
	created := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	reader := &stubReader{events: []audit.Event{{ID: "e1", ActorID: "user-1", Action: audit.ActionPayslipsGenerate, EntityType: "payroll_records", CreatedAt: created}}}
	rec := serve(t, reader, auth.RoleAdmin, "/api/admin/audit/events/export")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "e1,user-1,payslips.generate,payroll_records,,,,2026-02-01T09:30:00Z") {
		t.Fatalf("unexpected csv %q", rec.Body.String())
	}
	if reader.limit != 0 {
		t.Fatalf("expected unbounded export, got limit %d", reader.limit)
	}
}

func TestAuditRequiresPermission(t *testing.T) {
	rec := serve(t, &stubReader{}, auth.RolePayrollManager, "/api/admin/audit/events")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}
