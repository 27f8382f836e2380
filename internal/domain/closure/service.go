package closure

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"payrolladmin/internal/platform/metrics"
)

type Service struct {
	store StoreAPI
	Now   func() time.Time
}

func NewService(store StoreAPI) *Service {
	return &Service{store: store, Now: time.Now}
}

// Close archives every active record whose period ends on one of
// periodEnds. The move is all-or-nothing, so a failed close can be retried.
func (s *Service) Close(ctx context.Context, tenantID, actorID string, periodEnds []time.Time, notes string) (Summary, error) {
	periodEnds = uniqueDates(periodEnds)
	if len(periodEnds) == 0 {
		return Summary{}, ErrNoPeriods
	}

	req := ArchiveRequest{
		TenantID:   tenantID,
		BatchID:    uuid.NewString(),
		PeriodEnds: periodEnds,
		Notes:      notes,
		ClosedBy:   actorID,
		ClosedAt:   s.Now().UTC(),
	}
	moved, err := s.store.Archive(ctx, req)
	if err != nil {
		return Summary{}, err
	}
	if len(moved) == 0 {
		return Summary{}, ErrNothingToClose
	}

	summary := Summarize(moved, periodEnds)
	summary.BatchID = req.BatchID
	summary.Notes = notes
	summary.ClosedBy = actorID
	summary.CreatedAt = req.ClosedAt

	metrics.ClosureRecordsMoved.Add(float64(summary.TotalRecordsMoved))
	slog.Info("pay periods closed", "tenantId", tenantID, "batchId", summary.BatchID, "records", summary.TotalRecordsMoved, "periods", summary.PeriodEndDates)
	return summary, nil
}

func (s *Service) ListActive(ctx context.Context, tenantID string) ([]ActivePeriod, error) {
	return s.store.ActivePeriods(ctx, tenantID)
}

func (s *Service) ListHistory(ctx context.Context, tenantID string, limit, offset int) ([]HistoryBatch, int, error) {
	return s.store.History(ctx, tenantID, limit, offset)
}

func uniqueDates(dates []time.Time) []time.Time {
	seen := map[string]bool{}
	var out []time.Time
	for _, d := range dates {
		if d.IsZero() {
			continue
		}
		key := d.Format(DateLayout)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}
	return out
}
