package gdpr

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

const (
	DefaultBucket = "GDPR"
	exportPrefix  = "exports/"
)
