package analyzer

import (
	"context"
	"errors"

	"safety-backend/internal/analysis"
)

// ErrPending signals that the analyzer accepted the job and will deliver the
// result later through the webhook endpoint.
var ErrPending = errors.New("analysis pending webhook delivery")

// ErrNotConfigured indicates no analysis provider is configured. Jobs fail
// rather than receive a made-up verdict.
var ErrNotConfigured = errors.New("no analyzer provider configured")

// Request carries everything a provider might need. Subprocess providers read
// VideoPath, remote ones read VideoURL plus the callback fields.
type Request struct {
	VideoPath  string
	VideoURL   string
	JobID      string
	WebhookURL string
}

// Client analyzes a video and returns structured safety findings.
type Client interface {
	Analyze(ctx context.Context, req Request) (analysis.Result, error)
}
