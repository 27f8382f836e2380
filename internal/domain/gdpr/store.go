package gdpr

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"payrolladmin/internal/platform/querier"
)

type Store struct {
	DB querier.TxBeginner
}

func NewStore(db querier.TxBeginner) *Store {
	return &Store{DB: db}
}

func (s *Store) CreateExport(ctx context.Context, tenantID, userID string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO gdpr_exports (tenant_id, user_id, status)
    VALUES ($1,$2,$3)
    RETURNING id::text
  `, tenantID, userID, StatusProcessing).Scan(&id)
	return id, err
}

func (s *Store) CompleteExport(ctx context.Context, exportID, objectKey string, encrypted bool, tokenHash string, expiresAt time.Time) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE gdpr_exports
    SET status = $1, file_path = $2, encrypted = $3, download_token_hash = $4,
        download_expires_at = $5, completed_at = now()
    WHERE id = $6
  `, StatusCompleted, objectKey, encrypted, tokenHash, expiresAt, exportID)
	return err
}

func (s *Store) FailExport(ctx context.Context, exportID string) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE gdpr_exports SET status = $1, completed_at = now() WHERE id = $2
  `, StatusFailed, exportID)
	return err
}

const exportColumns = `
    SELECT id::text, user_id, status, COALESCE(file_path, ''), encrypted,
           COALESCE(download_token_hash, ''), download_expires_at, requested_at, completed_at
    FROM gdpr_exports`

func (s *Store) GetExport(ctx context.Context, tenantID, exportID string) (Export, error) {
	exp, err := scanExport(s.DB.QueryRow(ctx, exportColumns+` WHERE tenant_id = $1 AND id::text = $2`, tenantID, exportID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Export{}, ErrExportNotFound
	}
	return exp, err
}

func (s *Store) ExpiredExports(ctx context.Context, now time.Time) ([]Export, error) {
	rows, err := s.DB.Query(ctx, exportColumns+` WHERE download_expires_at < $1 OR (status = $2 AND requested_at < $1 - interval '1 day')`, now, StatusFailed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Export
	for rows.Next() {
		exp, err := scanExport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, exp)
	}
	return out, rows.Err()
}

func (s *Store) DeleteExport(ctx context.Context, exportID string) error {
	_, err := s.DB.Exec(ctx, `DELETE FROM gdpr_exports WHERE id = $1`, exportID)
	return err
}

func scanExport(row pgx.Row) (Export, error) {
	var exp Export
	err := row.Scan(&exp.ID, &exp.UserID, &exp.Status, &exp.ObjectKey, &exp.Encrypted, &exp.TokenHash, &exp.ExpiresAt, &exp.RequestedAt, &exp.CompletedAt)
	return exp, err
}

// subjectRecords matches rows by the email stored on the record or on the
// employee it belongs to.
const subjectRecords = `
    (lower(t.employee_email) = lower($2)
     OR t.employee_id IN (SELECT e.id FROM employees e WHERE e.tenant_id = $1 AND lower(e.email) = lower($2)))`

func (s *Store) SubjectData(ctx context.Context, tenantID, email string) (SubjectData, error) {
	data := SubjectData{Email: email}
	var err error
	if data.PayrollRecords, err = s.rowsAsJSON(ctx, `SELECT row_to_json(t) FROM payroll_records t WHERE t.tenant_id = $1 AND`+subjectRecords+` ORDER BY t.pay_period_to`, tenantID, email); err != nil {
		return data, err
	}
	if data.PayrollHistory, err = s.rowsAsJSON(ctx, `SELECT row_to_json(t) FROM payroll_history t WHERE t.tenant_id = $1 AND`+subjectRecords+` ORDER BY t.pay_period_to`, tenantID, email); err != nil {
		return data, err
	}
	if data.SendEvents, err = s.rowsAsJSON(ctx, `SELECT row_to_json(se) FROM send_events se WHERE se.tenant_id = $1 AND lower(se.recipient) = lower($2) ORDER BY se.created_at`, tenantID, email); err != nil {
		return data, err
	}
	return data, nil
}

func (s *Store) rowsAsJSON(ctx context.Context, query string, args ...any) ([]json.RawMessage, error) {
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []json.RawMessage{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		out = append(out, json.RawMessage(raw))
	}
	return out, rows.Err()
}

func (s *Store) CreateDeletion(ctx context.Context, tenantID, userID, email string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO gdpr_deletion_requests (tenant_id, user_id, email, status)
    VALUES ($1,$2,$3,$4)
    RETURNING id::text
  `, tenantID, userID, email, StatusProcessing).Scan(&id)
	return id, err
}

// Anonymize clears personal fields for email across live and archived
// records and drops its send events, all in one transaction.
func (s *Store) Anonymize(ctx context.Context, tenantID, email string) (DeletionCounts, error) {
	var counts DeletionCounts
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return counts, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
    UPDATE payroll_records t
    SET employee_email = NULL, iban = NULL, bank_name = NULL, updated_at = now()
    WHERE t.tenant_id = $1 AND`+subjectRecords, tenantID, email)
	if err != nil {
		return counts, err
	}
	counts.Records = tag.RowsAffected()

	tag, err = tx.Exec(ctx, `
    UPDATE payroll_history t
    SET employee_email = NULL, iban = NULL, bank_name = NULL
    WHERE t.tenant_id = $1 AND`+subjectRecords, tenantID, email)
	if err != nil {
		return counts, err
	}
	counts.History = tag.RowsAffected()

	tag, err = tx.Exec(ctx, `
    DELETE FROM send_events WHERE tenant_id = $1 AND lower(recipient) = lower($2)
  `, tenantID, email)
	if err != nil {
		return counts, err
	}
	counts.SendEvents = tag.RowsAffected()

	return counts, tx.Commit(ctx)
}

func (s *Store) FinishDeletion(ctx context.Context, requestID, status string, details any) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
    UPDATE gdpr_deletion_requests
    SET status = $1, details_json = $2, completed_at = now()
    WHERE id = $3
  `, status, detailsJSON, requestID)
	return err
}

func (s *Store) LatestDeletion(ctx context.Context, tenantID, userID string) (DeletionRequest, error) {
	var (
		req     DeletionRequest
		details []byte
	)
	err := s.DB.QueryRow(ctx, `
    SELECT id::text, status, details_json, requested_at, completed_at
    FROM gdpr_deletion_requests
    WHERE tenant_id = $1 AND user_id = $2
    ORDER BY requested_at DESC
    LIMIT 1
  `, tenantID, userID).Scan(&req.ID, &req.Status, &details, &req.RequestedAt, &req.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return DeletionRequest{}, ErrDeletionNotFound
	}
	if err != nil {
		return DeletionRequest{}, err
	}
	if len(details) > 0 {
		var d deletionDetails
		if err := json.Unmarshal(details, &d); err == nil {
			req.Counts = d.Counts
			req.Error = d.Error
		}
	}
	return req, nil
}

type deletionDetails struct {
	Counts *DeletionCounts `json:"counts,omitempty"`
	Error  string          `json:"error,omitempty"`
}
