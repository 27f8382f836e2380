package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Addr                 string
	DatabaseURL          string
	JWTSecret            string
	JWKSURL              string
	JWTIssuer            string
	DataEncryptionKey    string
	Environment          string
	LogLevel             string
	SeedTenantName       string
	EmailFrom            string
	EmailEnabled         bool
	SMTPHost             string
	SMTPPort             int
	SMTPUser             string
	SMTPPassword         string
	SMTPUseTLS           bool
	RunMigrations        bool
	RunSeed              bool
	MaxBodyBytes         int64
	RateLimitPerMinute   int
	RedisAddr            string
	MetricsEnabled       bool
	StorageDir           string
	StoragePublicBaseURL string
	PayslipBucket        string
	PayslipTemplatePath  string
	ChromePath           string
	BrowserLaunchTimeout time.Duration
	PageContentTimeout   time.Duration
	PDFPrintTimeout      time.Duration
	SoftDeleteRetention  time.Duration
	PurgeInterval        time.Duration
	PermissionCacheTTL   time.Duration
	TeamworkClientID     string
	TeamworkClientSecret string
	TeamworkTokenURL     string
	NATSURL              string
	CORSAllowedOrigins   []string
	GDPRExportTTL        time.Duration
}

var defaults = map[string]any{
	"APP_ADDR":                ":8080",
	"DATABASE_URL":            "",
	"JWT_SECRET":              "",
	"JWKS_URL":                "",
	"JWT_ISSUER":              "",
	"DATA_ENCRYPTION_KEY":     "",
	"APP_ENV":                 "development",
	"LOG_LEVEL":               "info",
	"SEED_TENANT_NAME":        "Default Tenant",
	"EMAIL_FROM":              "payroll@example.com",
	"EMAIL_ENABLED":           false,
	"SMTP_HOST":               "",
	"SMTP_PORT":               587,
	"SMTP_USER":               "",
	"SMTP_PASSWORD":           "",
	"SMTP_USE_TLS":            true,
	"RUN_MIGRATIONS":          true,
	"RUN_SEED":                true,
	"MAX_BODY_BYTES":          5 << 20,
	"RATE_LIMIT_PER_MINUTE":   120,
	"REDIS_ADDR":              "",
	"METRICS_ENABLED":         true,
	"STORAGE_DIR":             "storage",
	"STORAGE_PUBLIC_BASE_URL": "http://localhost:8080/storage",
	"PAYSLIP_BUCKET":          "Payroll",
	"PAYSLIP_TEMPLATE_PATH":   "templates/payslip.html",
	"CHROME_PATH":             "",
	"BROWSER_LAUNCH_TIMEOUT":  "30s",
	"PAGE_CONTENT_TIMEOUT":    "10s",
	"PDF_PRINT_TIMEOUT":       "15s",
	"SOFT_DELETE_RETENTION":   "2160h",
	"PURGE_INTERVAL":          "24h",
	"PERMISSION_CACHE_TTL":    "5m",
	"TEAMWORK_CLIENT_ID":      "",
	"TEAMWORK_CLIENT_SECRET":  "",
	"TEAMWORK_TOKEN_URL":      "https://www.teamwork.com/launchpad/v1/token.json",
	"NATS_URL":                "",
	"CORS_ALLOWED_ORIGINS":    "http://localhost:3000",
	"GDPR_EXPORT_TTL":         "72h",
}

// Load reads configuration from the environment and, when CONFIG_FILE is
// set, from that file. Environment values win over file values.
func Load() (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if path := strings.TrimSpace(v.GetString("CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) Config {
	return Config{
		Addr:                 v.GetString("APP_ADDR"),
		DatabaseURL:          v.GetString("DATABASE_URL"),
		JWTSecret:            v.GetString("JWT_SECRET"),
		JWKSURL:              v.GetString("JWKS_URL"),
		JWTIssuer:            v.GetString("JWT_ISSUER"),
		DataEncryptionKey:    v.GetString("DATA_ENCRYPTION_KEY"),
		Environment:          v.GetString("APP_ENV"),
		LogLevel:             v.GetString("LOG_LEVEL"),
		SeedTenantName:       v.GetString("SEED_TENANT_NAME"),
		EmailFrom:            v.GetString("EMAIL_FROM"),
		EmailEnabled:         v.GetBool("EMAIL_ENABLED"),
		SMTPHost:             v.GetString("SMTP_HOST"),
		SMTPPort:             v.GetInt("SMTP_PORT"),
		SMTPUser:             v.GetString("SMTP_USER"),
		SMTPPassword:         v.GetString("SMTP_PASSWORD"),
		SMTPUseTLS:           v.GetBool("SMTP_USE_TLS"),
		RunMigrations:        v.GetBool("RUN_MIGRATIONS"),
		RunSeed:              v.GetBool("RUN_SEED"),
		MaxBodyBytes:         v.GetInt64("MAX_BODY_BYTES"),
		RateLimitPerMinute:   v.GetInt("RATE_LIMIT_PER_MINUTE"),
		RedisAddr:            v.GetString("REDIS_ADDR"),
		MetricsEnabled:       v.GetBool("METRICS_ENABLED"),
		StorageDir:           v.GetString("STORAGE_DIR"),
		StoragePublicBaseURL: strings.TrimRight(v.GetString("STORAGE_PUBLIC_BASE_URL"), "/"),
		PayslipBucket:        v.GetString("PAYSLIP_BUCKET"),
		PayslipTemplatePath:  v.GetString("PAYSLIP_TEMPLATE_PATH"),
		ChromePath:           v.GetString("CHROME_PATH"),
		BrowserLaunchTimeout: v.GetDuration("BROWSER_LAUNCH_TIMEOUT"),
		PageContentTimeout:   v.GetDuration("PAGE_CONTENT_TIMEOUT"),
		PDFPrintTimeout:      v.GetDuration("PDF_PRINT_TIMEOUT"),
		SoftDeleteRetention:  v.GetDuration("SOFT_DELETE_RETENTION"),
		PurgeInterval:        v.GetDuration("PURGE_INTERVAL"),
		PermissionCacheTTL:   v.GetDuration("PERMISSION_CACHE_TTL"),
		TeamworkClientID:     v.GetString("TEAMWORK_CLIENT_ID"),
		TeamworkClientSecret: v.GetString("TEAMWORK_CLIENT_SECRET"),
		TeamworkTokenURL:     v.GetString("TEAMWORK_TOKEN_URL"),
		NATSURL:              v.GetString("NATS_URL"),
		CORSAllowedOrigins:   splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		GDPRExportTTL:        v.GetDuration("GDPR_EXPORT_TTL"),
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.IsProduction() {
		if strings.TrimSpace(c.JWTSecret) == "" && strings.TrimSpace(c.JWKSURL) == "" {
			return fmt.Errorf("JWT_SECRET or JWKS_URL must be set in production")
		}
		if strings.TrimSpace(c.DataEncryptionKey) == "" {
			return fmt.Errorf("DATA_ENCRYPTION_KEY must be set in production for encryption at rest")
		}
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.EmailEnabled && c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST must be set when EMAIL_ENABLED is true")
	}
	if strings.TrimSpace(c.PayslipBucket) == "" {
		return fmt.Errorf("PAYSLIP_BUCKET is required")
	}
	if c.BrowserLaunchTimeout <= 0 || c.PageContentTimeout <= 0 || c.PDFPrintTimeout <= 0 {
		return fmt.Errorf("browser timeouts must be positive")
	}
	return nil
}
