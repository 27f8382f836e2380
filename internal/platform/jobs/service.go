package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"payrolladmin/internal/platform/querier"
)

const (
	JobPayslipGenerate = "payslip_generate"
	JobPayslipSend     = "payslip_send"
	JobPeriodClose     = "pay_period_close"
	JobSoftDeletePurge = "payroll_soft_delete_purge"
	JobExportCleanup   = "gdpr_export_cleanup"
)

type RunFunc func(context.Context) (any, error)

// Service runs jobs and records each run in job_runs. Scheduled jobs are
// queued on their interval and executed by a single worker.
type Service struct {
	DB        querier.Querier
	queue     chan job
	mu        sync.Mutex
	schedules []schedule
}

type job struct {
	Type     string
	TenantID string
	Run      RunFunc
}

type schedule struct {
	jobType  string
	interval time.Duration
	run      RunFunc
}

func New(db querier.Querier) *Service {
	return &Service{
		DB:    db,
		queue: make(chan job, 128),
	}
}

// Every registers a tenant-independent job. Must be called before Start.
func (s *Service) Every(jobType string, interval time.Duration, run RunFunc) {
	if interval <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules = append(s.schedules, schedule{jobType: jobType, interval: interval, run: run})
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sc := range s.schedules {
		go s.tick(ctx, sc)
	}
}

func (s *Service) Enqueue(jobType, tenantID string, run RunFunc) {
	select {
	case s.queue <- job{Type: jobType, TenantID: tenantID, Run: run}:
	default:
		slog.Warn("job queue full", "jobType", jobType, "tenantId", tenantID)
	}
}

// RunNow executes run synchronously and records it like a queued job.
func (s *Service) RunNow(ctx context.Context, jobType, tenantID string, run RunFunc) (any, error) {
	return s.runJob(ctx, job{Type: jobType, TenantID: tenantID, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "tenantId", j.TenantID, "err", err)
			}
		}
	}
}

func (s *Service) tick(ctx context.Context, sc schedule) {
	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Enqueue(sc.jobType, "", sc.run)
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := ""
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (tenant_id, job_type, status)
    VALUES ($1,$2,$3)
    RETURNING id
  `, nullableTenant(j.TenantID), j.Type, "running").Scan(&runID); err != nil {
		slog.Warn("job run insert failed", "jobType", j.Type, "err", err)
	}

	details, err := j.Run(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if _, updErr := s.DB.Exec(ctx, `
      UPDATE job_runs
      SET status = $1, details_json = $2, completed_at = now()
      WHERE id = $3
    `, status, detailsJSON, runID); updErr != nil {
			slog.Warn("job run update failed", "err", updErr)
		}
	}
	return details, err
}

func nullableTenant(tenantID string) any {
	if tenantID == "" {
		return nil
	}
	return tenantID
}
