package teamwork

import "errors"

var (
	ErrNotConnected  = errors.New("teamwork is not connected for this tenant")
	ErrNotConfigured = errors.New("teamwork client credentials are not configured")
)
