package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"payrolladmin/internal/domain/auth"
)

type stubVerifier struct {
	claims *auth.Claims
	err    error
}

func (s stubVerifier) Parse(context.Context, string) (*auth.Claims, error) {
	return s.claims, s.err
}

func TestAuthMiddlewareSetsUser(t *testing.T) {
	secret := "test-secret"
	token, err := auth.GenerateToken(secret, auth.Claims{UserID: "u1", TenantID: "t1", RoleName: auth.RolePayrollManager, Email: "u1@acme.test"}, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	called := false
	handler := Auth(secret, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		user, ok := GetUser(r.Context())
		if !ok {
			t.Fatal("expected user in context")
		}
		if user.UserID != "u1" || user.RoleName != auth.RolePayrollManager || user.Email != "u1@acme.test" {
			t.Fatalf("unexpected user: %+v", user)
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if !called {
		t.Fatal("expected handler to run")
	}
}

func TestAuthMiddlewareMissingToken(t *testing.T) {
	handler := Auth("secret", nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUser(r.Context()); ok {
			t.Fatal("did not expect user in context")
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
}

func TestAuthMiddlewarePrefersVerifier(t *testing.T) {
	verifier := stubVerifier{claims: &auth.Claims{UserID: "idp-user", TenantID: "t9", RoleName: auth.RoleAdmin}}
	handler := Auth("", verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetUser(r.Context())
		if !ok || user.UserID != "idp-user" || user.TenantID != "t9" {
			t.Fatalf("unexpected user: %+v", user)
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer opaque")
	handler.ServeHTTP(httptest.NewRecorder(), req)
}

func TestAuthMiddlewareFallsBackToSecret(t *testing.T) {
	token, err := auth.GenerateToken("s3", auth.Claims{UserID: "cli", TenantID: "t1", RoleName: auth.RoleAdmin}, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	verifier := stubVerifier{err: errors.New("unknown kid")}
	handler := Auth("s3", verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, ok := GetUser(r.Context()); !ok || user.UserID != "cli" {
			t.Fatalf("expected HMAC fallback, got %+v", user)
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)
}
