package distribution

import "context"

type StoreAPI interface {
	Append(ctx context.Context, tenantID string, evt SendEvent) error
	Last(ctx context.Context, tenantID, batchID string) (SendEvent, error)
	List(ctx context.Context, tenantID, batchID string) ([]SendEvent, error)
}
