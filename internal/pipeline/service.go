package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"safety-backend/internal/analysis"
	"safety-backend/internal/analyzer"
	"safety-backend/internal/cache"
	"safety-backend/internal/jobs"
	"safety-backend/internal/queue"
	"safety-backend/internal/shared/metrics"
	"safety-backend/internal/shared/storage/object"
	"safety-backend/internal/shared/telemetry"
	"safety-backend/internal/vhash"
)

// Service orchestrates the inspection pipeline: upload, hash, cache lookup,
// analysis, and job completion.
type Service struct {
	Repo     jobs.Repo
	Store    object.ObjectStore
	Cache    *cache.Store
	Analyzer analyzer.Client

	// Queue is optional. When set, Submit enqueues instead of spawning a
	// goroutine and a worker process drives the pipeline.
	Queue queue.Client

	// PublicBaseURL is the externally reachable base used to build video
	// content and webhook callback URLs for remote analyzers.
	PublicBaseURL string
}

// Submit stores the uploaded video, registers a pending job, and kicks off
// processing.
func (s *Service) Submit(ctx context.Context, requestID, fileName string, r io.Reader) (jobs.Job, error) {
	jobID := jobs.NewJobID()

	storageKey, sizeBytes, mimeType, err := s.Store.Save(ctx, jobID, fileName, r)
	if err != nil {
		return jobs.Job{}, fmt.Errorf("save upload: %w", err)
	}

	job := jobs.NewJob(fileName, sizeBytes, storageKey)
	job.ID = jobID
	job.MimeType = mimeType
	if err := s.Repo.Create(ctx, job); err != nil {
		return jobs.Job{}, fmt.Errorf("create job: %w", err)
	}

	telemetry.Info("pipeline.upload_accepted", map[string]any{
		"request_id": requestID,
		"job_id":     job.ID,
		"filename":   fileName,
		"size_bytes": sizeBytes,
		"mime_type":  mimeType,
	})

	if s.Queue != nil {
		msg := queue.Message{
			JobID:      job.ID,
			RequestID:  requestID,
			EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
			Version:    1,
		}
		if err := s.Queue.Send(ctx, msg); err != nil {
			return jobs.Job{}, fmt.Errorf("enqueue job: %w", err)
		}
		return job, nil
	}

	go func() {
		bg := context.Background()
		if err := s.Process(bg, job.ID); err != nil {
			telemetry.Error("pipeline.process_error", map[string]any{
				"job_id": job.ID,
				"error":  err.Error(),
			})
		}
	}()
	return job, nil
}

// Process runs the pipeline for a stored job: transition to processing, hash
// the video, consult the cache, analyze on a miss, and record the outcome.
// Analysis failures mark the job failed and are not returned as errors; only
// infrastructure failures (repo, storage) propagate.
func (s *Service) Process(ctx context.Context, jobID string) error {
	job, err := s.Repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			telemetry.Error("pipeline.process_unknown_job", map[string]any{"job_id": jobID})
			return nil
		}
		return err
	}

	if err := s.Repo.Transition(ctx, jobID, jobs.StatusProcessing, nil); err != nil {
		return err
	}
	metrics.IncJobStarted()
	start := time.Now()

	videoPath, cleanup, err := s.materialize(ctx, job)
	if err != nil {
		return s.fail(ctx, jobID, fmt.Errorf("materialize video: %w", err))
	}
	defer cleanup()

	hash, err := s.hashVideo(videoPath, job)
	if err != nil {
		return s.fail(ctx, jobID, fmt.Errorf("hash video: %w", err))
	}
	if err := s.Repo.SetVideoHash(ctx, jobID, hash); err != nil && !errors.Is(err, jobs.ErrNotFound) {
		return err
	}

	if entry, ok := s.Cache.Get(ctx, hash); ok {
		metrics.IncCacheHit()
		telemetry.Info("pipeline.cache_hit", map[string]any{
			"job_id":     jobID,
			"video_hash": hash,
		})
		if err := s.Repo.Transition(ctx, jobID, jobs.StatusCompleted, &entry.Results); err != nil {
			return err
		}
		metrics.IncJobCompleted()
		return nil
	}
	metrics.IncCacheMiss()

	result, err := s.Analyzer.Analyze(ctx, analyzer.Request{
		VideoPath:  videoPath,
		VideoURL:   s.contentURL(jobID),
		JobID:      jobID,
		WebhookURL: s.webhookURL(jobID),
	})
	if errors.Is(err, analyzer.ErrPending) {
		// The result arrives through the webhook; leave the job processing.
		return nil
	}
	if err != nil {
		return s.fail(ctx, jobID, err)
	}

	return s.complete(ctx, jobID, hash, job.Filename, result, start)
}

// CompleteFromWebhook finishes a job whose analysis was delivered by an
// external service.
func (s *Service) CompleteFromWebhook(ctx context.Context, jobID string, result *analysis.Result, failure string) error {
	job, err := s.Repo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}

	if failure != "" || result == nil {
		if failure == "" {
			failure = "analyzer delivered no result"
		}
		return s.fail(ctx, jobID, errors.New(failure))
	}
	return s.complete(ctx, jobID, job.VideoHash, job.Filename, *result, time.Time{})
}

// FailStalled fails processing jobs whose last update is older than maxAge.
// Covers remote analyzers whose webhook never arrives; without it such jobs
// would stay processing forever. Returns the number of jobs failed.
func (s *Service) FailStalled(ctx context.Context, maxAge time.Duration) (int, error) {
	all, err := s.Repo.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-maxAge)
	failed := 0
	for _, job := range all {
		if job.Status != jobs.StatusProcessing || job.UpdatedAt.After(cutoff) {
			continue
		}
		if err := s.fail(ctx, job.ID, fmt.Errorf("analysis did not finish within %s", maxAge)); err != nil {
			return failed, err
		}
		failed++
	}
	return failed, nil
}

// DeleteJob removes the job record and its stored video.
func (s *Service) DeleteJob(ctx context.Context, jobID string) (bool, error) {
	job, err := s.Repo.GetByID(ctx, jobID)
	if errors.Is(err, jobs.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	ok, err := s.Repo.Delete(ctx, jobID)
	if err != nil || !ok {
		return ok, err
	}
	if job.StorageKey != "" {
		if err := s.Store.Delete(ctx, job.StorageKey); err != nil {
			telemetry.Warn("pipeline.delete_video_failed", map[string]any{
				"job_id": jobID,
				"error":  err.Error(),
			})
		}
	}
	return true, nil
}

func (s *Service) complete(ctx context.Context, jobID, hash, filename string, result analysis.Result, start time.Time) error {
	if result.Frames == nil {
		result.Frames = []analysis.Frame{}
	}
	if hash != "" {
		if err := s.Cache.Put(ctx, hash, filename, result); err != nil {
			telemetry.Warn("pipeline.cache_put_failed", map[string]any{
				"job_id":     jobID,
				"video_hash": hash,
				"error":      err.Error(),
			})
		}
	}
	if err := s.Repo.Transition(ctx, jobID, jobs.StatusCompleted, &result); err != nil {
		return err
	}
	metrics.IncJobCompleted()
	if !start.IsZero() {
		metrics.ObserveAnalysisDurationMs(float64(time.Since(start).Milliseconds()))
	}
	telemetry.Info("pipeline.job_completed", map[string]any{
		"job_id":     jobID,
		"video_hash": hash,
	})
	return nil
}

// fail records the failure on the job. The diagnostic goes to the log only;
// failed analyses are never cached.
func (s *Service) fail(ctx context.Context, jobID string, cause error) error {
	telemetry.Error("pipeline.job_failed", map[string]any{
		"job_id": jobID,
		"error":  cause.Error(),
	})
	if err := s.Repo.Transition(ctx, jobID, jobs.StatusFailed, nil); err != nil {
		return err
	}
	metrics.IncJobFailed()
	return nil
}

// materialize ensures the video exists as a local file for hashing and
// subprocess analysis. Remote stores are downloaded to a temp file.
func (s *Service) materialize(ctx context.Context, job jobs.Job) (string, func(), error) {
	rc, err := s.Store.Open(ctx, job.StorageKey)
	if err != nil {
		return "", func() {}, err
	}
	defer rc.Close()

	tmp, err := os.CreateTemp("", "inspection-*.video")
	if err != nil {
		return "", func() {}, err
	}
	if _, err := io.Copy(tmp, rc); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", func() {}, err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", func() {}, err
	}
	path := tmp.Name()
	return path, func() { _ = os.Remove(path) }, nil
}

func (s *Service) contentURL(jobID string) string {
	return s.PublicBaseURL + "/api/v1/videos/" + jobID + "/content"
}

func (s *Service) webhookURL(jobID string) string {
	return s.PublicBaseURL + "/api/v1/webhook/" + jobID
}

// hashVideo computes the composite content hash. The modified time is pinned
// to the zero value so re-uploads of the same bytes land on the same cache
// key.
func (s *Service) hashVideo(videoPath string, job jobs.Job) (string, error) {
	f, err := os.Open(videoPath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return vhash.Hash(f, job.Filename, job.SizeBytes, time.Time{})
}
