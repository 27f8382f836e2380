package gdpr

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	cryptoutil "payrolladmin/internal/platform/crypto"
)

type ObjectStore interface {
	Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error
	Read(ctx context.Context, bucket, key string) ([]byte, error)
	Delete(ctx context.Context, bucket, key string) error
}

type Service struct {
	store   StoreAPI
	objects ObjectStore
	sealer  *cryptoutil.Sealer
	bucket  string
	ttl     time.Duration
	now     func() time.Time
}

func NewService(store StoreAPI, objects ObjectStore, sealer *cryptoutil.Sealer, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &Service{store: store, objects: objects, sealer: sealer, bucket: DefaultBucket, ttl: ttl, now: time.Now}
}

// RequestExport writes the subject's data for email to storage and returns
// a one-time download token.
func (s *Service) RequestExport(ctx context.Context, tenantID, userID, email string) (ExportTicket, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return ExportTicket{}, ErrEmailRequired
	}
	exportID, err := s.store.CreateExport(ctx, tenantID, userID)
	if err != nil {
		return ExportTicket{}, err
	}
	ticket, err := s.buildExport(ctx, tenantID, exportID, email)
	if err != nil {
		if failErr := s.store.FailExport(ctx, exportID); failErr != nil {
			slog.Warn("gdpr export status update failed", "exportId", exportID, "err", failErr)
		}
		return ExportTicket{}, err
	}
	return ticket, nil
}

func (s *Service) buildExport(ctx context.Context, tenantID, exportID, email string) (ExportTicket, error) {
	data, err := s.store.SubjectData(ctx, tenantID, email)
	if err != nil {
		return ExportTicket{}, fmt.Errorf("collect subject data: %w", err)
	}
	data.GeneratedAt = s.now().UTC()
	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return ExportTicket{}, err
	}

	encrypted := s.sealer.Configured()
	key := exportPrefix + exportID + ".json"
	contentType := "application/json"
	if encrypted {
		if payload, err = s.sealer.Seal(payload, tenantID); err != nil {
			return ExportTicket{}, fmt.Errorf("seal export: %w", err)
		}
		key += ".enc"
		contentType = "application/octet-stream"
	}
	if err := s.objects.Upload(ctx, s.bucket, key, payload, contentType); err != nil {
		return ExportTicket{}, fmt.Errorf("store export: %w", err)
	}

	token, err := newDownloadToken()
	if err != nil {
		return ExportTicket{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return ExportTicket{}, err
	}
	expiresAt := s.now().Add(s.ttl).UTC()
	if err := s.store.CompleteExport(ctx, exportID, key, encrypted, string(hash), expiresAt); err != nil {
		return ExportTicket{}, err
	}
	return ExportTicket{ExportID: exportID, DownloadToken: token, ExpiresAt: expiresAt}, nil
}

// DownloadExport returns the plain JSON document for a completed export.
func (s *Service) DownloadExport(ctx context.Context, tenantID, exportID, token string) ([]byte, error) {
	exp, err := s.store.GetExport(ctx, tenantID, exportID)
	if err != nil {
		return nil, err
	}
	if exp.Status != StatusCompleted || exp.ObjectKey == "" {
		return nil, ErrExportNotReady
	}
	if exp.ExpiresAt != nil && s.now().After(*exp.ExpiresAt) {
		return nil, ErrExportExpired
	}
	if token == "" || bcrypt.CompareHashAndPassword([]byte(exp.TokenHash), []byte(token)) != nil {
		return nil, ErrInvalidToken
	}
	data, err := s.objects.Read(ctx, s.bucket, exp.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	if exp.Encrypted {
		if data, err = s.sealer.Open(data, tenantID); err != nil {
			return nil, fmt.Errorf("open export: %w", err)
		}
	}
	return data, nil
}

// RequestDeletion records the request and runs the anonymisation sweep
// immediately. A failed sweep is recorded, not retried.
func (s *Service) RequestDeletion(ctx context.Context, tenantID, userID, email string) (DeletionRequest, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return DeletionRequest{}, ErrEmailRequired
	}
	requestID, err := s.store.CreateDeletion(ctx, tenantID, userID, email)
	if err != nil {
		return DeletionRequest{}, err
	}
	req := DeletionRequest{ID: requestID, RequestedAt: s.now().UTC()}

	counts, sweepErr := s.store.Anonymize(ctx, tenantID, email)
	details := deletionDetails{}
	if sweepErr != nil {
		req.Status = StatusFailed
		req.Error = "anonymisation failed"
		details.Error = sweepErr.Error()
		slog.Error("gdpr deletion sweep failed", "tenantId", tenantID, "requestId", requestID, "err", sweepErr)
	} else {
		req.Status = StatusCompleted
		req.Counts = &counts
		details.Counts = &counts
	}
	if err := s.store.FinishDeletion(ctx, requestID, req.Status, details); err != nil {
		return req, err
	}
	completed := s.now().UTC()
	req.CompletedAt = &completed
	return req, nil
}

func (s *Service) DeletionStatus(ctx context.Context, tenantID, userID string) (DeletionRequest, error) {
	return s.store.LatestDeletion(ctx, tenantID, userID)
}

// PurgeExpiredExports deletes expired export files and their rows.
func (s *Service) PurgeExpiredExports(ctx context.Context) (int, error) {
	expired, err := s.store.ExpiredExports(ctx, s.now())
	if err != nil {
		return 0, err
	}
	purged := 0
	var errs []error
	for _, exp := range expired {
		if exp.ObjectKey != "" {
			if err := s.objects.Delete(ctx, s.bucket, exp.ObjectKey); err != nil {
				errs = append(errs, fmt.Errorf("export %s: %w", exp.ID, err))
				continue
			}
		}
		if err := s.store.DeleteExport(ctx, exp.ID); err != nil {
			errs = append(errs, fmt.Errorf("export %s: %w", exp.ID, err))
			continue
		}
		purged++
	}
	return purged, errors.Join(errs...)
}

func newDownloadToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
