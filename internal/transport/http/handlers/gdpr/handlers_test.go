package gdprhandler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payrolladmin/internal/domain/auth"
	"payrolladmin/internal/domain/gdpr"
	"payrolladmin/internal/transport/http/middleware"
)

const exportID = "44444444-4444-4444-4444-444444444444"

type stubService struct {
	email       string
	downloadErr error
	deletion    gdpr.DeletionRequest
	statusErr   error
}

func (s *stubService) RequestExport(_ context.Context, _, _, email string) (gdpr.ExportTicket, error) {
	s.email = email
	if email == "" {
		return gdpr.ExportTicket{}, gdpr.ErrEmailRequired
	}
	return gdpr.ExportTicket{ExportID: exportID, DownloadToken: "tok", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (s *stubService) DownloadExport(_ context.Context, _, _, token string) ([]byte, error) {
	if s.downloadErr != nil {
		return nil, s.downloadErr
	}
	if token != "tok" {
		return nil, gdpr.ErrInvalidToken
	}
	return []byte(`{"email":"jane@example.com"}`), nil
}

func (s *stubService) RequestDeletion(_ context.Context, _, _, email string) (gdpr.DeletionRequest, error) {
	s.email = email
	return s.deletion, nil
}

func (s *stubService) DeletionStatus(context.Context, string, string) (gdpr.DeletionRequest, error) {
	if s.statusErr != nil {
		return gdpr.DeletionRequest{}, s.statusErr
	}
	return s.deletion, nil
}

func newRouter(svc Service, email string) http.Handler {
	h := &Handler{Service: svc, Perms: auth.StaticPermissions{}}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			user := auth.UserContext{UserID: "user-1", TenantID: "tenant-1", RoleName: auth.RoleEmployee, Email: email}
			next.ServeHTTP(w, req.WithContext(middleware.WithUser(req.Context(), user)))
		})
	})
	r.Route("/api", h.RegisterRoutes)
	return r
}

func serve(router http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestRequestExportUsesSessionEmail(t *testing.T) {
	svc := &stubService{}
	rec := serve(newRouter(svc, "jane@example.com"), http.MethodPost, "/api/gdpr/data-export")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "jane@example.com", svc.email)

	var ticket gdpr.ExportTicket
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ticket))
	assert.Equal(t, exportID, ticket.ExportID)
	assert.Equal(t, "tok", ticket.DownloadToken)
}

func TestRequestExportWithoutEmail(t *testing.T) {
	rec := serve(newRouter(&stubService{}, ""), http.MethodPost, "/api/gdpr/data-export")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadExport(t *testing.T) {
	router := newRouter(&stubService{}, "jane@example.com")

	rec := serve(router, http.MethodGet, "/api/gdpr/data-export?id="+exportID+"&token=tok")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), exportID)
	assert.JSONEq(t, `{"email":"jane@example.com"}`, rec.Body.String())

	rec = serve(router, http.MethodGet, "/api/gdpr/data-export?id="+exportID+"&token=wrong")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(router, http.MethodGet, "/api/gdpr/data-export?id=not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadExportErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{gdpr.ErrExportNotFound, http.StatusNotFound},
		{gdpr.ErrExportExpired, http.StatusGone},
		{gdpr.ErrExportNotReady, http.StatusConflict},
		{errors.New("disk"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		router := newRouter(&stubService{downloadErr: tc.err}, "jane@example.com")
		rec := serve(router, http.MethodGet, "/api/gdpr/data-export?id="+exportID+"&token=tok")
		assert.Equal(t, tc.want, rec.Code, tc.err.Error())
	}
}

func TestRequestDeletion(t *testing.T) {
	svc := &stubService{deletion: gdpr.DeletionRequest{ID: "del-1", Status: gdpr.StatusCompleted, Counts: &gdpr.DeletionCounts{Records: 2}}}
	rec := serve(newRouter(svc, "jane@example.com"), http.MethodPost, "/api/gdpr/data-deletion")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"completed"`)

	svc.deletion.Status = gdpr.StatusFailed
	rec = serve(newRouter(svc, "jane@example.com"), http.MethodPost, "/api/gdpr/data-deletion")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDeletionStatus(t *testing.T) {
	rec := serve(newRouter(&stubService{statusErr: gdpr.ErrDeletionNotFound}, "jane@example.com"), http.MethodGet, "/api/gdpr/data-deletion")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	svc := &stubService{deletion: gdpr.DeletionRequest{ID: "del-1", Status: gdpr.StatusCompleted}}
	rec = serve(newRouter(svc, "jane@example.com"), http.MethodGet, "/api/gdpr/data-deletion")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"del-1"`)
}
