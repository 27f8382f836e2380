package gdpr

import "errors"

var (
	ErrEmailRequired    = errors.New("an email address is required")
	ErrExportNotFound   = errors.New("data export not found")
	ErrExportNotReady   = errors.New("data export is not ready")
	ErrExportExpired    = errors.New("data export download has expired")
	ErrInvalidToken     = errors.New("invalid download token")
	ErrDeletionNotFound = errors.New("no data deletion request")
)
