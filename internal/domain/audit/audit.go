package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"payrolladmin/internal/platform/querier"
)

const (
	ActionPayslipsGenerate = "payslips.generate"
	ActionPayslipsSend     = "payslips.send"
	ActionPayrollImport    = "payroll.import"
	ActionPayrollDelete    = "payroll.delete"
	ActionPayrollRestore   = "payroll.restore"
	ActionPeriodsClose     = "pay_periods.close"
	ActionGDPRExport       = "gdpr.export"
	ActionGDPRDeletion     = "gdpr.deletion"
	ActionTeamworkRefresh  = "teamwork.refresh"
)

type Entry struct {
	TenantID   string
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	RequestID  string
	IP         string
	Before     any
	After      any
}

type Event struct {
	ID         string          `json:"id"`
	ActorID    string          `json:"actorUserId,omitempty"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId,omitempty"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
	RequestID  string          `json:"requestId,omitempty"`
	IP         string          `json:"ip,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type Filter struct {
	Action     string
	EntityType string
	ActorID    string
	Since      time.Time
}

type Service struct {
	DB querier.Querier
}

func New(db querier.Querier) *Service {
	return &Service{DB: db}
}

func (s *Service) Record(ctx context.Context, e Entry) error {
	beforeJSON, err := marshalOptional(e.Before)
	if err != nil {
		return err
	}
	afterJSON, err := marshalOptional(e.After)
	if err != nil {
		return err
	}

	_, err = s.DB.Exec(ctx, `
    INSERT INTO audit_events (tenant_id, actor_user_id, action, entity_type, entity_id, before_json, after_json, request_id, ip)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
  `, e.TenantID, e.ActorID, e.Action, e.EntityType, e.EntityID, beforeJSON, afterJSON, e.RequestID, e.IP)
	return err
}

func marshalOptional(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func (f Filter) where(tenantID string) (string, []any) {
	clauses := []string{"tenant_id = $1"}
	args := []any{tenantID}
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if f.EntityType != "" {
		add("entity_type = $%d", f.EntityType)
	}
	if f.ActorID != "" {
		add("actor_user_id = $%d", f.ActorID)
	}
	if !f.Since.IsZero() {
		add("created_at >= $%d", f.Since)
	}
	return strings.Join(clauses, " AND "), args
}

func (s *Service) Count(ctx context.Context, tenantID string, f Filter) (int, error) {
	where, args := f.where(tenantID)
	var total int
	err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM audit_events WHERE "+where, args...).Scan(&total)
	return total, err
}

// List returns matching events newest first. A limit of 0 returns every
// match. Before/after payloads are only loaded when includeDetails is set.
func (s *Service) List(ctx context.Context, tenantID string, f Filter, includeDetails bool, limit, offset int) ([]Event, error) {
	where, args := f.where(tenantID)
	details := "NULL::jsonb, NULL::jsonb"
	if includeDetails {
		details = "before_json, after_json"
	}
	query := `
    SELECT id, COALESCE(actor_user_id, ''), action, entity_type, COALESCE(entity_id, ''), ` + details + `,
           COALESCE(request_id, ''), COALESCE(ip, ''), created_at
    FROM audit_events
    WHERE ` + where + `
    ORDER BY created_at DESC, id`
	if limit > 0 {
		args = append(args, limit, offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.EntityType, &e.EntityID, &e.Before, &e.After, &e.RequestID, &e.IP, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
