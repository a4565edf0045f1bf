package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"safety-backend/internal/analysis"
)

// ErrNotFound indicates the job does not exist.
var ErrNotFound = errors.New("job not found")

// Repo stores jobs and enforces the status state machine. Transition is
// deliberately forgiving: unknown ids and repeated terminal transitions are
// logged no-ops rather than errors, so at-least-once callers (webhooks,
// queue redeliveries) are always safe to retry.
type Repo interface {
	Create(ctx context.Context, job Job) error
	GetByID(ctx context.Context, id string) (Job, error)
	List(ctx context.Context) ([]Job, error)
	Delete(ctx context.Context, id string) (bool, error)
	Transition(ctx context.Context, id, status string, result *analysis.Result) error
	SetVideoHash(ctx context.Context, id, videoHash string) error
}

// NewJobID allocates a process-unique job id: creation time plus a random
// suffix. Uniqueness within process lifetime is all that is needed.
func NewJobID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("job_%d_%s", time.Now().UnixMilli(), suffix)
}

// NewJob builds a pending job for an uploaded video.
func NewJob(filename string, sizeBytes int64, storageKey string) Job {
	now := time.Now().UTC()
	return Job{
		ID:         NewJobID(),
		Status:     StatusPending,
		Filename:   filename,
		SizeBytes:  sizeBytes,
		StorageKey: storageKey,
		UploadedAt: now,
		UpdatedAt:  now,
	}
}
