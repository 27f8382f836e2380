package gdpr

import (
	"context"
	"time"
)

type StoreAPI interface {
	CreateExport(ctx context.Context, tenantID, userID string) (string, error)
	CompleteExport(ctx context.Context, exportID, objectKey string, encrypted bool, tokenHash string, expiresAt time.Time) error
	FailExport(ctx context.Context, exportID string) error
	GetExport(ctx context.Context, tenantID, exportID string) (Export, error)
	ExpiredExports(ctx context.Context, now time.Time) ([]Export, error)
	DeleteExport(ctx context.Context, exportID string) error
	SubjectData(ctx context.Context, tenantID, email string) (SubjectData, error)
	CreateDeletion(ctx context.Context, tenantID, userID, email string) (string, error)
	Anonymize(ctx context.Context, tenantID, email string) (DeletionCounts, error)
	FinishDeletion(ctx context.Context, requestID, status string, details any) error
	LatestDeletion(ctx context.Context, tenantID, userID string) (DeletionRequest, error)
}
