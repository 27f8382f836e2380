package payroll

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"payrolladmin/internal/platform/querier"
)

type Store struct {
	DB querier.TxBeginner
}

func NewStore(db querier.TxBeginner) *Store {
	return &Store{DB: db}
}

// SelectColumns is the projection ScanRecord expects. Without the
// soft-delete column it selects a typed NULL in its place. Extra columns are
// appended after the record columns.
func SelectColumns(table string, withSoftDelete bool, extra ...string) string {
	money := make([]string, len(MoneyColumns))
	for i, col := range MoneyColumns {
		money[i] = "r." + col
	}
	deleted := "r.deleted_at"
	if !withSoftDelete {
		deleted = "NULL::timestamptz"
	}
	return fmt.Sprintf(`
    SELECT r.id::text, r.tenant_id::text, r.employee_id::text, r.employer_id::text,
           COALESCE(e.first_name || ' ' || e.last_name, '') AS employee_name,
           COALESCE(er.name, '') AS employer_name,
           COALESCE(r.employee_email, e.email, ''), COALESCE(er.reviewer_email, ''),
           r.pay_period_from, r.pay_period_to,
           %s,
           r.currency, COALESCE(r.bank_name, ''), COALESCE(r.iban, ''),
           COALESCE(r.payslip_token, ''), COALESCE(r.payslip_url, ''), COALESCE(r.payslip_method, ''),
           r.payslip_generated_at, %s, r.created_at%s
    FROM %s r
    LEFT JOIN employees e ON e.id = r.employee_id
    LEFT JOIN employers er ON er.id = r.employer_id`, strings.Join(money, ", "), deleted, extraColumns(extra), table)
}

func extraColumns(extra []string) string {
	if len(extra) == 0 {
		return ""
	}
	return ", " + strings.Join(extra, ", ")
}

// ScanRecord reads one row produced by SelectColumns, followed by extra
// destinations for any trailing columns.
func ScanRecord(row pgx.Row, extra ...any) (Record, error) {
	var r Record
	dest := []any{
		&r.ID, &r.TenantID, &r.EmployeeID, &r.EmployerID,
		&r.EmployeeName, &r.EmployerName,
		&r.EmployeeEmail, &r.ReviewerEmail,
		&r.PeriodFrom, &r.PeriodTo,
	}
	for _, ref := range r.moneyRefs() {
		dest = append(dest, ref)
	}
	dest = append(dest,
		&r.Currency, &r.BankName, &r.IBAN,
		&r.PayslipToken, &r.PayslipURL, &r.PayslipMethod,
		&r.PayslipGeneratedAt, &r.DeletedAt, &r.CreatedAt,
	)
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return Record{}, err
	}
	return r, nil
}

// Get loads one active record. Soft-deleted records report
// ErrRecordNotFound, matching ResolveIDs.
func (s *Store) Get(ctx context.Context, tenantID, id string) (Record, error) {
	query := SelectColumns("payroll_records", true) + " WHERE r.tenant_id = $1 AND r.id::text = $2 AND r.deleted_at IS NULL"
	r, err := ScanRecord(s.DB.QueryRow(ctx, query, tenantID, id))
	if isUndefinedColumn(err) {
		query = SelectColumns("payroll_records", false) + " WHERE r.tenant_id = $1 AND r.id::text = $2"
		r, err = ScanRecord(s.DB.QueryRow(ctx, query, tenantID, id))
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrRecordNotFound
	}
	return r, err
}

func (s *Store) SaveArtifact(ctx context.Context, tenantID, id string, artifact Artifact) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE payroll_records
    SET payslip_token = $1, payslip_url = $2, payslip_method = $3, payslip_generated_at = $4, updated_at = now()
    WHERE tenant_id = $5 AND id::text = $6
  `, artifact.Token, artifact.URL, artifact.Method, artifact.GeneratedAt, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *Store) List(ctx context.Context, tenantID string, filter ListFilter) ([]Record, int, error) {
	rows, total, err := s.list(ctx, tenantID, filter, true)
	if isUndefinedColumn(err) {
		return s.list(ctx, tenantID, filter, false)
	}
	return rows, total, err
}

func (s *Store) list(ctx context.Context, tenantID string, filter ListFilter, withSoftDelete bool) ([]Record, int, error) {
	where, args := buildWhere(tenantID, filter, withSoftDelete)

	var total int
	countQuery := `
    SELECT COUNT(1)
    FROM payroll_records r
    LEFT JOIN employees e ON e.id = r.employee_id
    LEFT JOIN employers er ON er.id = r.employer_id` + where
	if err := s.DB.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := SelectColumns("payroll_records", withSoftDelete, "COALESCE(ls.status, '')", "ls.created_at")
	query += `
    LEFT JOIN LATERAL (
      SELECT se.status, se.created_at
      FROM send_events se
      WHERE se.tenant_id = r.tenant_id AND se.batch_id = r.id
      ORDER BY se.created_at DESC
      LIMIT 1
    ) ls ON true` + where
	query += " ORDER BY " + orderBy(filter)
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var lastStatus string
		var lastSent *time.Time
		r, err := ScanRecord(rows, &lastStatus, &lastSent)
		if err != nil {
			return nil, 0, err
		}
		r.LastSendStatus = lastStatus
		r.LastSentAt = lastSent
		out = append(out, r)
	}
	return out, total, rows.Err()
}

func buildWhere(tenantID string, filter ListFilter, withSoftDelete bool) (string, []any) {
	where := " WHERE r.tenant_id = $1"
	args := []any{tenantID}
	if withSoftDelete && !filter.IncludeDeleted {
		where += " AND r.deleted_at IS NULL"
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		pos := len(args)
		where += fmt.Sprintf(" AND (e.first_name || ' ' || e.last_name ILIKE $%d OR COALESCE(r.employee_email, e.email, '') ILIKE $%d OR er.name ILIKE $%d)", pos, pos, pos)
	}
	if len(filter.Employers) > 0 {
		args = append(args, filter.Employers)
		where += fmt.Sprintf(" AND er.name = ANY($%d)", len(args))
	}
	if len(filter.PeriodEnds) > 0 {
		args = append(args, filter.PeriodEnds)
		where += fmt.Sprintf(" AND r.pay_period_to = ANY($%d::date[])", len(args))
	}
	if currency := strings.TrimSpace(filter.Currency); currency != "" {
		args = append(args, strings.ToUpper(currency))
		where += fmt.Sprintf(" AND r.currency = $%d", len(args))
	}
	if len(filter.IDs) > 0 {
		args = append(args, filter.IDs)
		where += fmt.Sprintf(" AND r.id::text = ANY($%d)", len(args))
	}
	return where, args
}

func orderBy(filter ListFilter) string {
	column, ok := sortColumns[filter.SortBy]
	if !ok {
		column = "r.pay_period_to"
	}
	dir := "DESC"
	if strings.EqualFold(filter.SortDir, "asc") {
		dir = "ASC"
	}
	return column + " " + dir + ", r.id"
}

// ResolveIDs keeps the ids that exist and are not soft-deleted, in input
// order.
func (s *Store) ResolveIDs(ctx context.Context, tenantID string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT id::text FROM payroll_records WHERE tenant_id = $1 AND id::text = ANY($2) AND deleted_at IS NULL`
	found, err := s.collectIDs(ctx, query, tenantID, ids)
	if isUndefinedColumn(err) {
		found, err = s.collectIDs(ctx, `SELECT id::text FROM payroll_records WHERE tenant_id = $1 AND id::text = ANY($2)`, tenantID, ids)
	}
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if found[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *Store) collectIDs(ctx context.Context, query string, args ...any) (map[string]bool, error) {
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	found := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = true
	}
	return found, rows.Err()
}

func (s *Store) SoftDelete(ctx context.Context, tenantID string, ids []string) (int64, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE payroll_records SET deleted_at = now(), updated_at = now()
    WHERE tenant_id = $1 AND id::text = ANY($2) AND deleted_at IS NULL
  `, tenantID, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) Restore(ctx context.Context, tenantID string, ids []string) (int64, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE payroll_records SET deleted_at = NULL, updated_at = now()
    WHERE tenant_id = $1 AND id::text = ANY($2) AND deleted_at IS NOT NULL
  `, tenantID, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) PurgeDeleted(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.DB.Exec(ctx, `DELETE FROM payroll_records WHERE deleted_at IS NOT NULL AND deleted_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// InsertBatch writes all records in one transaction.
func (s *Store) InsertBatch(ctx context.Context, tenantID string, records []Record) (int, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := fmt.Sprintf(`
    INSERT INTO payroll_records (tenant_id, employee_id, employer_id, pay_period_from, pay_period_to,
      %s, currency, bank_name, iban, employee_email)
    VALUES (%s)
  `, strings.Join(MoneyColumns, ", "), placeholders(10+len(MoneyColumns)))

	for i := range records {
		r := records[i]
		args := []any{tenantID, r.EmployeeID, r.EmployerID, r.PeriodFrom, r.PeriodTo}
		for _, ref := range r.moneyRefs() {
			args = append(args, *ref)
		}
		currency := r.Currency
		if currency == "" {
			currency = DefaultCurrency
		}
		args = append(args, currency, nullIfEmpty(r.BankName), nullIfEmpty(r.IBAN), nullIfEmpty(r.EmployeeEmail))
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return 0, fmt.Errorf("insert record %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(records), nil
}

func (s *Store) KnownEmployees(ctx context.Context, tenantID string, ids []string) (map[string]bool, error) {
	return s.collectIDs(ctx, `SELECT id::text FROM employees WHERE tenant_id = $1 AND id::text = ANY($2)`, tenantID, ids)
}

func (s *Store) KnownEmployers(ctx context.Context, tenantID string, ids []string) (map[string]bool, error) {
	return s.collectIDs(ctx, `SELECT id::text FROM employers WHERE tenant_id = $1 AND id::text = ANY($2)`, tenantID, ids)
}

func isUndefinedColumn(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUndefinedColumn
}

func placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(parts, ", ")
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
