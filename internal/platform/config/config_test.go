package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		DatabaseURL:          "postgres://localhost/payroll",
		MaxBodyBytes:         4096,
		RateLimitPerMinute:   10,
		PayslipBucket:        "Payroll",
		BrowserLaunchTimeout: 30 * time.Second,
		PageContentTimeout:   10 * time.Second,
		PDFPrintTimeout:      15 * time.Second,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing database url", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: true},
		{name: "small body limit", mutate: func(c *Config) { c.MaxBodyBytes = 10 }, wantErr: true},
		{name: "email without smtp host", mutate: func(c *Config) { c.EmailEnabled = true }, wantErr: true},
		{name: "production without secrets", mutate: func(c *Config) { c.Environment = "production" }, wantErr: true},
		{name: "production with jwks and key", mutate: func(c *Config) {
			c.Environment = "production"
			c.JWKSURL = "https://idp.example.com/jwks"
			c.DataEncryptionKey = "k"
		}},
		{name: "zero print timeout", mutate: func(c *Config) { c.PDFPrintTimeout = 0 }, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://db/payroll")
	t.Setenv("PDF_PRINT_TIMEOUT", "20s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://db/payroll", cfg.DatabaseURL)
	assert.Equal(t, 20*time.Second, cfg.PDFPrintTimeout)
	assert.Equal(t, 30*time.Second, cfg.BrowserLaunchTimeout)
	assert.Equal(t, 10*time.Second, cfg.PageContentTimeout)
	assert.Equal(t, "Payroll", cfg.PayslipBucket)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("PAYSLIP_BUCKET: Archive\nSMTP_PORT: 2525\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "Archive", cfg.PayslipBucket)
	assert.Equal(t, 2525, cfg.SMTPPort)
}
