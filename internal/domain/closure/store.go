package closure

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"payrolladmin/internal/domain/payroll"
	"payrolladmin/internal/platform/querier"
)

type Store struct {
	DB querier.TxBeginner
}

func NewStore(db querier.TxBeginner) *Store {
	return &Store{DB: db}
}

// archivedColumns are copied verbatim from payroll_records to payroll_history.
func archivedColumns() string {
	cols := []string{"id", "tenant_id", "employee_id", "employer_id", "pay_period_from", "pay_period_to"}
	cols = append(cols, payroll.MoneyColumns...)
	cols = append(cols, "currency", "bank_name", "iban", "employee_email",
		"payslip_token", "payslip_url", "payslip_method", "payslip_generated_at", "created_at")
	return strings.Join(cols, ", ")
}

// Archive moves the active records ending on the requested dates into
// payroll_history in a single transaction and returns the moved rows.
// Nothing is written when no record matches.
func (s *Store) Archive(ctx context.Context, req ArchiveRequest) ([]payroll.Record, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, payroll.SelectColumns("payroll_records", true)+`
    WHERE r.tenant_id = $1 AND r.deleted_at IS NULL AND r.pay_period_to = ANY($2::date[])
    ORDER BY r.pay_period_to, r.id
    FOR UPDATE OF r
  `, req.TenantID, req.PeriodEnds)
	if err != nil {
		return nil, fmt.Errorf("select active records: %w", err)
	}
	var records []payroll.Record
	for rows.Next() {
		rec, err := payroll.ScanRecord(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		records = append(records, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}

	cols := archivedColumns()
	inserted, err := tx.Exec(ctx, fmt.Sprintf(`
    INSERT INTO payroll_history (%s, closure_batch_id, closure_notes, closed_by, closed_at)
    SELECT %s, $3, $4, $5, $6
    FROM payroll_records
    WHERE tenant_id = $1 AND id = ANY($2::uuid[])
  `, cols, cols), req.TenantID, ids, req.BatchID, nullIfEmpty(req.Notes), nullIfEmpty(req.ClosedBy), req.ClosedAt)
	if err != nil {
		return nil, fmt.Errorf("insert history: %w", err)
	}
	deleted, err := tx.Exec(ctx, `
    DELETE FROM payroll_records
    WHERE tenant_id = $1 AND id = ANY($2::uuid[])
  `, req.TenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("delete active records: %w", err)
	}
	if inserted.RowsAffected() != int64(len(ids)) || deleted.RowsAffected() != int64(len(ids)) {
		return nil, fmt.Errorf("%w: selected %d, archived %d, removed %d", ErrPartialMove, len(ids), inserted.RowsAffected(), deleted.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) ActivePeriods(ctx context.Context, tenantID string) ([]ActivePeriod, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT pay_period_to, COUNT(1), COUNT(DISTINCT employer_id),
           COALESCE(SUM(COALESCE(net_payment, net_salary, 0)), 0)
    FROM payroll_records
    WHERE tenant_id = $1 AND deleted_at IS NULL
    GROUP BY pay_period_to
    ORDER BY pay_period_to DESC
  `, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ActivePeriod
	for rows.Next() {
		var periodEnd time.Time
		var p ActivePeriod
		if err := rows.Scan(&periodEnd, &p.RecordCount, &p.EmployerCount, &p.TotalNetPayment); err != nil {
			return nil, err
		}
		p.PeriodEnd = periodEnd.Format(DateLayout)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) History(ctx context.Context, tenantID string, limit, offset int) ([]HistoryBatch, int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(DISTINCT closure_batch_id) FROM payroll_history WHERE tenant_id = $1
  `, tenantID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.DB.Query(ctx, `
    SELECT closure_batch_id::text,
           array_agg(DISTINCT pay_period_to ORDER BY pay_period_to),
           COUNT(1),
           COALESCE(SUM(COALESCE(net_payment, net_salary, 0)), 0),
           COALESCE(MAX(closure_notes), ''),
           COALESCE(MAX(closed_by), ''),
           MAX(closed_at)
    FROM payroll_history
    WHERE tenant_id = $1
    GROUP BY closure_batch_id
    ORDER BY MAX(closed_at) DESC
    LIMIT $2 OFFSET $3
  `, tenantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []HistoryBatch
	for rows.Next() {
		var b HistoryBatch
		var periodEnds []time.Time
		var amount decimal.Decimal
		if err := rows.Scan(&b.BatchID, &periodEnds, &b.RecordCount, &amount, &b.Notes, &b.ClosedBy, &b.ClosedAt); err != nil {
			return nil, 0, err
		}
		b.TotalAmount = amount
		for _, d := range periodEnds {
			b.PeriodEndDates = append(b.PeriodEndDates, d.Format(DateLayout))
		}
		out = append(out, b)
	}
	return out, total, rows.Err()
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
