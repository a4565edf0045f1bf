package jobs

import (
	"time"

	"safety-backend/internal/analysis"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Job tracks one submitted video through its processing lifecycle.
type Job struct {
	ID         string           `json:"id"`
	Status     string           `json:"status"`
	Filename   string           `json:"filename"`
	SizeBytes  int64            `json:"sizeBytes"`
	MimeType   string           `json:"mimeType,omitempty"`
	StorageKey string           `json:"-"`
	VideoHash  string           `json:"videoHash,omitempty"`
	UploadedAt time.Time        `json:"uploadedAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
	Result     *analysis.Result `json:"results,omitempty"`
}

// IsTerminal reports whether the status accepts no further transitions.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// allowedTransition encodes the job state machine:
// pending -> processing -> completed|failed.
func allowedTransition(from, to string) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}
