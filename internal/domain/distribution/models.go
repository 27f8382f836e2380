package distribution

import "time"

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// SendEvent is one delivery attempt for a payroll record. Events are only
// appended.
type SendEvent struct {
	ID                string    `json:"id"`
	BatchID           string    `json:"batchId"`
	Recipient         string    `json:"recipient"`
	Status            string    `json:"status"`
	ProviderMessageID string    `json:"providerMessageId,omitempty"`
	Error             string    `json:"error,omitempty"`
	StatusUpdatedAt   time.Time `json:"statusUpdatedAt"`
	CreatedAt         time.Time `json:"createdAt"`
}

type SendResult struct {
	BatchID   string `json:"batch_id"`
	OK        bool   `json:"ok"`
	Status    string `json:"status,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Message   string `json:"message,omitempty"`
}
