package closure

import (
	"time"

	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

type PeriodTotal struct {
	PeriodEnd   string          `json:"period_end"`
	RecordCount int             `json:"record_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// Summary describes one closure batch. It is built from the rows that were
// moved, not re-read from history.
type Summary struct {
	BatchID           string          `json:"batch_id"`
	PeriodEndDates    []string        `json:"period_end_dates"`
	TotalRecordsMoved int             `json:"total_records_moved"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	EmployerNames     []string        `json:"employer_names"`
	EmployerCounts    map[string]int  `json:"employer_counts"`
	Periods           []PeriodTotal   `json:"periods"`
	Notes             string          `json:"notes,omitempty"`
	ClosedBy          string          `json:"closed_by,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

type ActivePeriod struct {
	PeriodEnd       string          `json:"period_end"`
	RecordCount     int             `json:"record_count"`
	EmployerCount   int             `json:"employer_count"`
	TotalNetPayment decimal.Decimal `json:"total_net_payment"`
}

type HistoryBatch struct {
	BatchID        string          `json:"batch_id"`
	PeriodEndDates []string        `json:"period_end_dates"`
	RecordCount    int             `json:"record_count"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Notes          string          `json:"notes,omitempty"`
	ClosedBy       string          `json:"closed_by,omitempty"`
	ClosedAt       time.Time       `json:"closed_at"`
}

type ArchiveRequest struct {
	TenantID   string
	BatchID    string
	PeriodEnds []time.Time
	Notes      string
	ClosedBy   string
	ClosedAt   time.Time
}
