package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"payrolladmin/internal/domain/auth"
	"payrolladmin/internal/domain/gdpr"
	"payrolladmin/internal/domain/payslip"
	"payrolladmin/internal/platform/config"
	"payrolladmin/internal/platform/storage"
)

const testSecret = "server-test-secret"

func testConfig(t *testing.T, dbURL string) config.Config {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.DatabaseURL = dbURL
	cfg.JWTSecret = testSecret
	cfg.StorageDir = t.TempDir()
	cfg.MetricsEnabled = false
	cfg.NATSURL = ""
	cfg.RedisAddr = ""
	return cfg
}

func startApp(t *testing.T) (*App, *httptest.Server) {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	app, err := New(context.Background(), testConfig(t, dbURL))
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	t.Cleanup(app.Close)
	ts := httptest.NewServer(app.Router)
	t.Cleanup(ts.Close)
	return app, ts
}

func adminToken(t *testing.T, app *App) string {
	t.Helper()
	var tenantID string
	if err := app.DB.QueryRow(context.Background(), "SELECT id FROM tenants WHERE name = $1", app.Config.SeedTenantName).Scan(&tenantID); err != nil {
		t.Fatalf("lookup seed tenant: %v", err)
	}
	token, err := auth.GenerateToken(testSecret, auth.Claims{
		UserID:   uuid.NewString(),
		TenantID: tenantID,
		RoleName: auth.RoleAdmin,
		Email:    "admin@example.com",
	}, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestHealthAndReadiness(t *testing.T) {
	_, ts := startApp(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200 from %s, got %d", path, resp.StatusCode)
		}
	}
}

func TestAPIRequiresBearerToken(t *testing.T) {
	_, ts := startApp(t)
	resp, err := http.Get(ts.URL + "/api/admin/payslips/list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
}

func TestGenerateUnknownRecordsReportsEachID(t *testing.T) {
	app, ts := startApp(t)
	token := adminToken(t, app)

	ids := []string{uuid.NewString(), uuid.NewString()}
	payload, _ := json.Marshal(map[string]any{"batchIds": ids})
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/admin/payslips/generate", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Results []payslip.Result `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Results) != len(ids) {
		t.Fatalf("expected %d results, got %d", len(ids), len(body.Results))
	}
	for i, res := range body.Results {
		if res.BatchID != ids[i] || res.OK {
			t.Fatalf("unexpected result %+v", res)
		}
	}
}

func TestListActivePeriodsEmpty(t *testing.T) {
	app, ts := startApp(t)
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/admin/pay-periods/list-active", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, app))
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("list-active: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestStorageRouteServesOnlyPayslipBucket(t *testing.T) {
	app, ts := startApp(t)
	objects, err := storage.New(app.Config.StorageDir, app.Config.StoragePublicBaseURL)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	ctx := context.Background()
	exportKey := "exports/" + uuid.NewString() + ".json"
	if err := objects.Upload(ctx, gdpr.DefaultBucket, exportKey, []byte(`{"iban":"AE070331234567890123456"}`), "application/json"); err != nil {
		t.Fatalf("upload export: %v", err)
	}
	if err := objects.Upload(ctx, app.Config.PayslipBucket, "payslips/a.pdf", []byte("%PDF-1.4"), "application/pdf"); err != nil {
		t.Fatalf("upload payslip: %v", err)
	}

	cases := map[string]int{
		"/storage/" + gdpr.DefaultBucket + "/" + exportKey:         http.StatusNotFound,
		"/storage/" + app.Config.PayslipBucket + "/payslips/a.pdf": http.StatusOK,
	}
	for path, want := range cases {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Fatalf("expected %d from %s, got %d", want, path, resp.StatusCode)
		}
	}
}
