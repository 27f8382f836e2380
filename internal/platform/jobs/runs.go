package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

var ErrRunNotFound = errors.New("job run not found")

type Run struct {
	ID          string          `json:"id"`
	JobType     string          `json:"jobType"`
	Status      string          `json:"status"`
	Details     json.RawMessage `json:"details,omitempty"`
	StartedAt   time.Time       `json:"startedAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// RunFilter narrows ListRuns. StartedTo is inclusive of the whole day.
type RunFilter struct {
	JobType     string
	Status      string
	StartedFrom time.Time
	StartedTo   time.Time
	Limit       int
	Offset      int
}

func (f RunFilter) where(tenantID string) (string, []any) {
	clauses := []string{"tenant_id = $1"}
	args := []any{tenantID}
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.JobType != "" {
		add("job_type = $%d", f.JobType)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if !f.StartedFrom.IsZero() {
		add("started_at >= $%d", f.StartedFrom)
	}
	if !f.StartedTo.IsZero() {
		add("started_at < $%d", f.StartedTo.AddDate(0, 0, 1))
	}
	return strings.Join(clauses, " AND "), args
}

const runColumns = "id, job_type, status, details_json, started_at, completed_at"

// ListRuns returns the tenant's job runs newest first with the total match
// count.
func (s *Service) ListRuns(ctx context.Context, tenantID string, f RunFilter) ([]Run, int, error) {
	where, args := f.where(tenantID)

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM job_runs WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + runColumns + " FROM job_runs WHERE " + where + " ORDER BY started_at DESC, id"
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, run)
	}
	return out, total, rows.Err()
}

func (s *Service) GetRun(ctx context.Context, tenantID, runID string) (Run, error) {
	row := s.DB.QueryRow(ctx, "SELECT "+runColumns+" FROM job_runs WHERE tenant_id = $1 AND id = $2", tenantID, runID)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	return run, err
}

func scanRun(row pgx.Row) (Run, error) {
	var run Run
	err := row.Scan(&run.ID, &run.JobType, &run.Status, &run.Details, &run.StartedAt, &run.CompletedAt)
	return run, err
}
