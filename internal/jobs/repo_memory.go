package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"safety-backend/internal/analysis"
	"safety-backend/internal/shared/telemetry"
)

// MemoryRepo stores jobs in memory and is safe for concurrent use. It is the
// default backend: jobs live for the serving process only.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Job
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Job)}
}

// Create stores the job.
func (r *MemoryRepo) Create(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[job.ID] = job
	return nil
}

// GetByID returns a job by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.byID[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return job, nil
}

// List returns all jobs, newest first.
func (r *MemoryRepo) List(ctx context.Context) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Job, 0, len(r.byID))
	for _, job := range r.byID {
		out = append(out, job)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out, nil
}

// Delete removes a job, reporting whether it existed.
func (r *MemoryRepo) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byID[id]
	if ok {
		delete(r.byID, id)
	}
	return ok, nil
}

// Transition applies a status change under the state machine rules.
func (r *MemoryRepo) Transition(ctx context.Context, id, status string, result *analysis.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.byID[id]
	if !ok {
		telemetry.Error("jobs.transition_unknown_id", map[string]any{
			"job_id": id,
			"status": status,
		})
		return nil
	}
	if !allowedTransition(job.Status, status) {
		telemetry.Warn("jobs.transition_dropped", map[string]any{
			"job_id": id,
			"from":   job.Status,
			"to":     status,
		})
		return nil
	}

	job.Status = status
	if result != nil {
		job.Result = result
	}
	job.UpdatedAt = time.Now().UTC()
	r.byID[id] = job
	return nil
}

// SetVideoHash records the computed cache key on the job.
func (r *MemoryRepo) SetVideoHash(ctx context.Context, id, videoHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	job.VideoHash = videoHash
	job.UpdatedAt = time.Now().UTC()
	r.byID[id] = job
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
