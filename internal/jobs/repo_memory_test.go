package jobs

import (
	"context"
	"strings"
	"testing"
	"time"

	"safety-backend/internal/analysis"
)

func TestNewJobID(t *testing.T) {
	first := NewJobID()
	second := NewJobID()
	if !strings.HasPrefix(first, "job_") {
		t.Fatalf("unexpected id format: %s", first)
	}
	if first == second {
		t.Fatalf("ids must be unique, got %s twice", first)
	}
}

func TestLifecycleHappyPath(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	job := NewJob("yard.mp4", 1024, "videos/yard.mp4")
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.Transition(ctx, job.ID, StatusProcessing, nil); err != nil {
		t.Fatalf("to processing: %v", err)
	}
	result := &analysis.Result{Explanation: "clear", Frames: []analysis.Frame{}}
	if err := repo.Transition(ctx, job.ID, StatusCompleted, result); err != nil {
		t.Fatalf("to completed: %v", err)
	}

	got, err := repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if got.Result == nil || got.Result.Explanation != "clear" {
		t.Fatalf("result not attached: %+v", got.Result)
	}
}

func TestTerminalStateIsImmutable(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	job := NewJob("yard.mp4", 1024, "videos/yard.mp4")
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Transition(ctx, job.ID, StatusProcessing, nil); err != nil {
		t.Fatalf("to processing: %v", err)
	}
	result := &analysis.Result{Explanation: "done"}
	if err := repo.Transition(ctx, job.ID, StatusCompleted, result); err != nil {
		t.Fatalf("to completed: %v", err)
	}

	// A late failure report must not disturb the completed job.
	if err := repo.Transition(ctx, job.ID, StatusFailed, nil); err != nil {
		t.Fatalf("late transition should be a silent no-op, got %v", err)
	}

	got, err := repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("terminal status changed to %s", got.Status)
	}
	if got.Result == nil || got.Result.Explanation != "done" {
		t.Fatalf("result was disturbed: %+v", got.Result)
	}
}

func TestTransitionSkipsInvalidSteps(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	job := NewJob("yard.mp4", 1024, "videos/yard.mp4")
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}

	// pending cannot jump straight to completed.
	if err := repo.Transition(ctx, job.ID, StatusCompleted, nil); err != nil {
		t.Fatalf("invalid transition should be a no-op, got %v", err)
	}
	got, err := repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusPending {
		t.Fatalf("status = %s, want pending", got.Status)
	}
}

func TestTransitionUnknownIDIsSafe(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	if err := repo.Transition(ctx, "job_0_missing", StatusProcessing, nil); err != nil {
		t.Fatalf("unknown id must not error, got %v", err)
	}
	if _, err := repo.GetByID(ctx, "job_0_missing"); err == nil {
		t.Fatalf("transition must not create a job")
	}
}

func TestListNewestFirst(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	older := NewJob("first.mp4", 1, "videos/first.mp4")
	older.UploadedAt = time.Now().UTC().Add(-time.Hour)
	newer := NewJob("second.mp4", 1, "videos/second.mp4")

	if err := repo.Create(ctx, older); err != nil {
		t.Fatalf("create older: %v", err)
	}
	if err := repo.Create(ctx, newer); err != nil {
		t.Fatalf("create newer: %v", err)
	}

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(all))
	}
	if all[0].Filename != "second.mp4" {
		t.Fatalf("expected newest first, got %s", all[0].Filename)
	}
}

func TestDelete(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	job := NewJob("yard.mp4", 1, "videos/yard.mp4")
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}

	ok, err := repo.Delete(ctx, job.ID)
	if err != nil || !ok {
		t.Fatalf("delete existing = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = repo.Delete(ctx, job.ID)
	if err != nil || ok {
		t.Fatalf("delete missing = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestSetVideoHash(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	job := NewJob("yard.mp4", 1, "videos/yard.mp4")
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.SetVideoHash(ctx, job.ID, "abc123"); err != nil {
		t.Fatalf("set hash: %v", err)
	}
	got, err := repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.VideoHash != "abc123" {
		t.Fatalf("video hash = %q", got.VideoHash)
	}

	if err := repo.SetVideoHash(ctx, "job_0_missing", "abc123"); err == nil {
		t.Fatalf("expected ErrNotFound for unknown job")
	}
}
