package closure

import (
	"context"

	"payrolladmin/internal/domain/payroll"
)

type StoreAPI interface {
	Archive(ctx context.Context, req ArchiveRequest) ([]payroll.Record, error)
	ActivePeriods(ctx context.Context, tenantID string) ([]ActivePeriod, error)
	History(ctx context.Context, tenantID string, limit, offset int) ([]HistoryBatch, int, error)
}
