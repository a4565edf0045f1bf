package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"safety-backend/internal/analysis"
	"safety-backend/internal/shared/telemetry"
)

// PGRepo implements Repo using Postgres. Optional backend for deployments
// that want job records to survive restarts.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new job.
func (r *PGRepo) Create(ctx context.Context, job Job) error {
	const query = `
INSERT INTO jobs (id, status, filename, size_bytes, mime_type, storage_key, video_hash, result, uploaded_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	resultPayload, err := marshalResult(job.Result)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		job.ID,
		job.Status,
		job.Filename,
		job.SizeBytes,
		job.MimeType,
		job.StorageKey,
		job.VideoHash,
		resultPayload,
		job.UploadedAt,
		job.UpdatedAt,
	)
	return err
}

// GetByID returns a job by its ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Job, error) {
	const query = `
SELECT id, status, filename, size_bytes, mime_type, storage_key, video_hash, result, uploaded_at, updated_at
FROM jobs WHERE id = $1`
	return scanJob(r.DB.QueryRowContext(ctx, query, id))
}

// List returns all jobs, newest first.
func (r *PGRepo) List(ctx context.Context) ([]Job, error) {
	const query = `
SELECT id, status, filename, size_bytes, mime_type, storage_key, video_hash, result, uploaded_at, updated_at
FROM jobs ORDER BY uploaded_at DESC`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// Delete removes a job, reporting whether it existed.
func (r *PGRepo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Transition applies a status change. The update is conditional on the
// expected predecessor status so concurrent callers cannot skip states or
// reopen a terminal job.
func (r *PGRepo) Transition(ctx context.Context, id, status string, result *analysis.Result) error {
	expected, ok := predecessor(status)
	if !ok {
		telemetry.Warn("jobs.transition_dropped", map[string]any{
			"job_id": id,
			"to":     status,
		})
		return nil
	}
	resultPayload, err := marshalResult(result)
	if err != nil {
		return err
	}

	const query = `
UPDATE jobs SET status = $2, result = COALESCE($3, result), updated_at = $4
WHERE id = $1 AND status = $5`
	res, err := r.DB.ExecContext(ctx, query, id, status, resultPayload, time.Now().UTC(), expected)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	// Nothing matched: either the id is unknown or the job already moved on.
	// Both are logged no-ops.
	current, err := r.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, ErrNotFound) {
		telemetry.Error("jobs.transition_unknown_id", map[string]any{
			"job_id": id,
			"status": status,
		})
		return nil
	}
	if err != nil {
		return err
	}
	telemetry.Warn("jobs.transition_dropped", map[string]any{
		"job_id": id,
		"from":   current.Status,
		"to":     status,
	})
	return nil
}

// SetVideoHash records the computed cache key on the job.
func (r *PGRepo) SetVideoHash(ctx context.Context, id, videoHash string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE jobs SET video_hash = $2, updated_at = $3 WHERE id = $1`,
		id, videoHash, time.Now().UTC())
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func predecessor(status string) (string, bool) {
	switch status {
	case StatusProcessing:
		return StatusPending, true
	case StatusCompleted, StatusFailed:
		return StatusProcessing, true
	default:
		return "", false
	}
}

func marshalResult(result *analysis.Result) (any, error) {
	if result == nil {
		return nil, nil
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode job result: %w", err)
	}
	return payload, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var (
		job           Job
		resultPayload []byte
	)
	err := row.Scan(
		&job.ID,
		&job.Status,
		&job.Filename,
		&job.SizeBytes,
		&job.MimeType,
		&job.StorageKey,
		&job.VideoHash,
		&resultPayload,
		&job.UploadedAt,
		&job.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, err
	}
	if len(resultPayload) > 0 {
		var result analysis.Result
		if err := json.Unmarshal(resultPayload, &result); err != nil {
			return Job{}, fmt.Errorf("decode job result: %w", err)
		}
		job.Result = &result
	}
	return job, nil
}

var _ Repo = (*PGRepo)(nil)
