package gdpr

import (
	"encoding/json"
	"time"
)

type Export struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Status      string     `json:"status"`
	ObjectKey   string     `json:"-"`
	Encrypted   bool       `json:"encrypted"`
	TokenHash   string     `json:"-"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	RequestedAt time.Time  `json:"requestedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// ExportTicket is returned once; the plain token is never stored.
type ExportTicket struct {
	ExportID      string    `json:"exportId"`
	DownloadToken string    `json:"downloadToken"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// SubjectData is everything held about one email address.
type SubjectData struct {
	Email          string            `json:"email"`
	GeneratedAt    time.Time         `json:"generatedAt"`
	PayrollRecords []json.RawMessage `json:"payrollRecords"`
	PayrollHistory []json.RawMessage `json:"payrollHistory"`
	SendEvents     []json.RawMessage `json:"sendEvents"`
}

type DeletionCounts struct {
	Records    int64 `json:"records"`
	History    int64 `json:"history"`
	SendEvents int64 `json:"sendEvents"`
}

type DeletionRequest struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	Counts      *DeletionCounts `json:"counts,omitempty"`
	Error       string          `json:"error,omitempty"`
	RequestedAt time.Time       `json:"requestedAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}
