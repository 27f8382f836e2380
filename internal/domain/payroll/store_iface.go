package payroll

import (
	"context"
	"time"
)

type StoreAPI interface {
	Get(ctx context.Context, tenantID, id string) (Record, error)
	SaveArtifact(ctx context.Context, tenantID, id string, artifact Artifact) error
	List(ctx context.Context, tenantID string, filter ListFilter) ([]Record, int, error)
	ResolveIDs(ctx context.Context, tenantID string, ids []string) ([]string, error)
	SoftDelete(ctx context.Context, tenantID string, ids []string) (int64, error)
	Restore(ctx context.Context, tenantID string, ids []string) (int64, error)
	PurgeDeleted(ctx context.Context, cutoff time.Time) (int64, error)
	InsertBatch(ctx context.Context, tenantID string, records []Record) (int, error)
	KnownEmployees(ctx context.Context, tenantID string, ids []string) (map[string]bool, error)
	KnownEmployers(ctx context.Context, tenantID string, ids []string) (map[string]bool, error)
}
