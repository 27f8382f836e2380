package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"payrolladmin/internal/domain/auth"
)

type failingPermissions struct{}

func (failingPermissions) HasPermission(context.Context, string, string) (bool, error) {
	return false, errors.New("db down")
}

func TestRequirePermission(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	tests := []struct {
		name  string
		user  *auth.UserContext
		store PermissionStore
		want  int
	}{
		{name: "anonymous", store: auth.StaticPermissions{}, want: http.StatusUnauthorized},
		{name: "employee", user: &auth.UserContext{UserID: "u", TenantID: "t", RoleName: auth.RoleEmployee}, store: auth.StaticPermissions{}, want: http.StatusForbidden},
		{name: "manager", user: &auth.UserContext{UserID: "u", TenantID: "t", RoleName: auth.RolePayrollManager}, store: auth.StaticPermissions{}, want: http.StatusNoContent},
		{name: "store error", user: &auth.UserContext{UserID: "u", TenantID: "t", RoleName: auth.RoleAdmin}, store: failingPermissions{}, want: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/admin/payslips/generate", nil)
			if tc.user != nil {
				req = req.WithContext(WithUser(req.Context(), *tc.user))
			}
			rec := httptest.NewRecorder()
			RequirePermission(auth.PermPayslipsGenerate, tc.store)(ok).ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}
