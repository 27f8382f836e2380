package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"

	"payrolladmin/internal/domain/audit"
	"payrolladmin/internal/domain/auth"
	"payrolladmin/internal/domain/closure"
	"payrolladmin/internal/domain/distribution"
	"payrolladmin/internal/domain/gdpr"
	"payrolladmin/internal/domain/imports"
	"payrolladmin/internal/domain/payroll"
	"payrolladmin/internal/domain/payslip"
	"payrolladmin/internal/domain/teamwork"
	"payrolladmin/internal/platform/browser"
	"payrolladmin/internal/platform/config"
	cryptoutil "payrolladmin/internal/platform/crypto"
	"payrolladmin/internal/platform/db"
	"payrolladmin/internal/platform/email"
	"payrolladmin/internal/platform/events"
	"payrolladmin/internal/platform/jobs"
	"payrolladmin/internal/platform/metrics"
	"payrolladmin/internal/platform/storage"
	audithandler "payrolladmin/internal/transport/http/handlers/audit"
	gdprhandler "payrolladmin/internal/transport/http/handlers/gdpr"
	payperiodshandler "payrolladmin/internal/transport/http/handlers/payperiods"
	payslipshandler "payrolladmin/internal/transport/http/handlers/payslips"
	reportshandler "payrolladmin/internal/transport/http/handlers/reports"
	teamworkhandler "payrolladmin/internal/transport/http/handlers/teamwork"
	"payrolladmin/internal/transport/http/middleware"
)

const shutdownTimeout = 20 * time.Second

type App struct {
	Config    config.Config
	DB        *db.Pool
	Router    http.Handler
	Jobs      *jobs.Service
	Generator *payslip.Generator
	Closure   *closure.Service
	GDPR      *gdpr.Service
	Records   *payroll.Store

	events events.Publisher
	redis  *redis.Client
}

// New connects the database, optionally migrates and seeds it, and builds
// the router. Close releases everything New opened.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.RunMigrations {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			return nil, err
		}
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	app := &App{Config: cfg, DB: pool}
	if err := app.build(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config
	if cfg.RunSeed {
		if err := db.Seed(ctx, a.DB, cfg); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	sealer, err := cryptoutil.NewSealer(cfg.DataEncryptionKey)
	if err != nil {
		return fmt.Errorf("data encryption key: %w", err)
	}
	objects, err := storage.New(cfg.StorageDir, cfg.StoragePublicBaseURL)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	publisher, err := events.Connect(cfg.NATSURL)
	if err != nil {
		return fmt.Errorf("events: %w", err)
	}
	a.events = publisher

	var verifier middleware.TokenVerifier
	if cfg.JWKSURL != "" {
		jwks, err := auth.NewJWKSVerifier(ctx, cfg.JWKSURL, cfg.JWTIssuer)
		if err != nil {
			return fmt.Errorf("jwks: %w", err)
		}
		verifier = jwks
	}

	a.Records = payroll.NewStore(a.DB)
	a.Jobs = jobs.New(a.DB)
	a.Generator = payslip.NewGenerator(a.Records, objects, launcher(cfg), cfg.PayslipBucket, cfg.PayslipTemplatePath)
	a.Closure = closure.NewService(closure.NewStore(a.DB))
	a.GDPR = gdpr.NewService(gdpr.NewStore(a.DB), objects, sealer, cfg.GDPRExportTTL)

	perms := auth.NewStore(a.DB, cfg.PermissionCacheTTL)
	auditor := audit.New(a.DB)
	sender := distribution.NewService(a.Records, objects, email.New(cfg), distribution.NewStore(a.DB), cfg.EmailFrom)
	refresher := teamwork.NewService(teamwork.NewStore(a.DB, sealer), teamwork.Config{
		ClientID:     cfg.TeamworkClientID,
		ClientSecret: cfg.TeamworkClientSecret,
		TokenURL:     cfg.TeamworkTokenURL,
	}, &http.Client{Timeout: 15 * time.Second})

	limiter := a.rateLimiter()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	router.Use(middleware.Auth(cfg.JWTSecret, verifier))
	router.Use(middleware.Logger)
	if cfg.MetricsEnabled {
		router.Use(middleware.Metrics)
	}
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.DB.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	if cfg.MetricsEnabled {
		router.Handle("/metrics", metrics.Handler())
	}
	router.Mount("/storage", http.StripPrefix("/storage", objects.Handler(cfg.PayslipBucket)))

	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequireUser)
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute, middleware.WithLimiter(limiter(cfg.RateLimitPerMinute))))
		r.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute, middleware.WithLimiter(limiter(max(cfg.RateLimitPerMinute/4, 1)))))

		(&payslipshandler.Handler{
			Generator: a.Generator,
			Records:   a.Records,
			Importer:  imports.NewService(a.Records),
			Sender:    sender,
			Jobs:      a.Jobs,
			Audit:     auditor,
			Events:    publisher,
			Perms:     perms,
		}).RegisterRoutes(r)
		(&payperiodshandler.Handler{
			Service:     a.Closure,
			Idempotency: middleware.NewIdempotencyStore(a.DB),
			Jobs:        a.Jobs,
			Audit:       auditor,
			Events:      publisher,
			Perms:       perms,
		}).RegisterRoutes(r)
		(&gdprhandler.Handler{Service: a.GDPR, Audit: auditor, Perms: perms}).RegisterRoutes(r)
		(&teamworkhandler.Handler{Service: refresher, Audit: auditor, Perms: perms}).RegisterRoutes(r)
		(&audithandler.Handler{Service: auditor, Perms: perms}).RegisterRoutes(r)
		(&reportshandler.Handler{Jobs: a.Jobs, Sends: sender, Perms: perms}).RegisterRoutes(r)
	})

	a.Router = router
	a.schedule()
	return nil
}

// rateLimiter returns a limiter factory backed by Redis when REDIS_ADDR is
// set, so limits hold across replicas.
func (a *App) rateLimiter() func(limit int) middleware.Limiter {
	if a.Config.RedisAddr == "" {
		return func(limit int) middleware.Limiter {
			return middleware.NewMemoryLimiter(limit, time.Minute)
		}
	}
	a.redis = redis.NewClient(&redis.Options{Addr: a.Config.RedisAddr})
	return func(limit int) middleware.Limiter {
		return middleware.NewRedisLimiter(a.redis, limit, time.Minute)
	}
}

func (a *App) schedule() {
	retention := a.Config.SoftDeleteRetention
	a.Jobs.Every(jobs.JobSoftDeletePurge, a.Config.PurgeInterval, func(ctx context.Context) (any, error) {
		purged, err := a.Records.PurgeDeleted(ctx, time.Now().Add(-retention))
		return map[string]int64{"purged": purged}, err
	})
	a.Jobs.Every(jobs.JobExportCleanup, a.Config.PurgeInterval, func(ctx context.Context) (any, error) {
		removed, err := a.GDPR.PurgeExpiredExports(ctx)
		return map[string]int{"removed": removed}, err
	})
}

func launcher(cfg config.Config) payslip.LaunchFunc {
	opts := browser.Options{
		ExecPath:       cfg.ChromePath,
		LaunchTimeout:  cfg.BrowserLaunchTimeout,
		ContentTimeout: cfg.PageContentTimeout,
		PrintTimeout:   cfg.PDFPrintTimeout,
	}
	return func(ctx context.Context) (payslip.Browser, error) {
		b, err := browser.Launch(ctx, opts)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

func (a *App) Close() {
	if a.events != nil {
		a.events.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

// Run serves HTTP and runs scheduled jobs until ctx is cancelled, then
// drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.Addr,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Jobs.Start(ctx)
		return nil
	})
	g.Go(func() error {
		slog.Info("payroll server listening", "addr", a.Config.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
