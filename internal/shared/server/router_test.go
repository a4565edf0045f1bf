package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"safety-backend/internal/analysis"
	"safety-backend/internal/analyzer"
	"safety-backend/internal/cache"
	"safety-backend/internal/jobs"
	"safety-backend/internal/pipeline"
	"safety-backend/internal/queue"
	"safety-backend/internal/services/health"
	"safety-backend/internal/shared/config"
	"safety-backend/internal/shared/storage/object/local"
)

// dropQueue swallows messages so tests drive processing explicitly.
type dropQueue struct{}

func (dropQueue) Send(ctx context.Context, msg queue.Message) error { return nil }

type stubAnalyzer struct {
	result analysis.Result
}

func (s stubAnalyzer) Analyze(ctx context.Context, req analyzer.Request) (analysis.Result, error) {
	return s.result, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *pipeline.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cacheStore, err := cache.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("cache.NewStore: %v", err)
	}

	svc := &pipeline.Service{
		Repo:  jobs.NewMemoryRepo(),
		Store: local.New(t.TempDir()),
		Cache: cacheStore,
		Analyzer: stubAnalyzer{result: analysis.Result{
			WasteMaterial: true,
			Explanation:   "crates stacked in the walkway",
			Frames:        []analysis.Frame{},
		}},
		Queue:         dropQueue{},
		PublicBaseURL: "http://localhost:8080",
	}

	router := NewRouter(RouterDeps{
		Config:          config.Config{CORSAllowOrigin: []string{"http://localhost:3000"}},
		Health:          health.NewService(),
		JobsHandler:     jobs.NewHandler(svc.Repo),
		CacheHandler:    cache.NewHandler(cacheStore),
		PipelineHandler: pipeline.NewHandler(svc, 10<<20, "hook-secret", ""),
	})
	return router, svc
}

func multipartVideo(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("video", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &body, writer.FormDataContentType()
}

func TestUploadProcessAndInspectFlow(t *testing.T) {
	router, svc := newTestRouter(t)

	body, contentType := multipartVideo(t, "warehouse.mp4", "fake video content")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("upload status = %d, body = %s", w.Code, w.Body.String())
	}
	var uploadResp struct {
		JobID  string `json:"jobId"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &uploadResp); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	if uploadResp.Status != jobs.StatusPending {
		t.Fatalf("status = %s", uploadResp.Status)
	}

	if err := svc.Process(context.Background(), uploadResp.JobID); err != nil {
		t.Fatalf("process: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+uploadResp.JobID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("job status = %d", w.Code)
	}
	var job jobs.Job
	if err := json.Unmarshal(w.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.Status != jobs.StatusCompleted {
		t.Fatalf("job.Status = %s", job.Status)
	}
	if job.Result == nil || !job.Result.WasteMaterial {
		t.Fatalf("job.Result = %+v", job.Result)
	}
	if job.MimeType == "" {
		t.Fatalf("detected mime type not recorded on the job")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/cache?action=list", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("cache list status = %d", w.Code)
	}
	var cacheResp struct {
		Success       bool `json:"success"`
		CachedResults []struct {
			VideoHash string `json:"videoHash"`
		} `json:"cachedResults"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &cacheResp); err != nil {
		t.Fatalf("decode cache list: %v", err)
	}
	if len(cacheResp.CachedResults) != 1 || cacheResp.CachedResults[0].VideoHash != job.VideoHash {
		t.Fatalf("cache list = %+v", cacheResp)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/videos/"+uploadResp.JobID+"/content", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("content status = %d", w.Code)
	}
	if w.Body.String() != "fake video content" {
		t.Fatalf("content body = %q", w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != job.MimeType {
		t.Fatalf("content type = %q, want the stored %q", got, job.MimeType)
	}
}

func TestUploadRejectsNonVideo(t *testing.T) {
	router, _ := newTestRouter(t)

	body, contentType := multipartVideo(t, "notes.txt", "plain text")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestWebhookRequiresToken(t *testing.T) {
	router, svc := newTestRouter(t)

	job, err := svc.Submit(context.Background(), "req-1", "warehouse.mp4", strings.NewReader("bytes"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.Repo.Transition(context.Background(), job.ID, jobs.StatusProcessing, nil); err != nil {
		t.Fatalf("transition: %v", err)
	}

	payload := `{"success":true,"analysis":{"incorrectParking":false,"wasteMaterial":false,"explanation":"clear","frames":[]}}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/"+job.ID, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/webhook/"+job.ID, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer hook-secret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("valid token status = %d, body = %s", w.Code, w.Body.String())
	}

	got, err := svc.Repo.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != jobs.StatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "inspection_jobs_started_total") {
		t.Fatalf("metrics body missing counters: %s", w.Body.String())
	}
}

func TestAddr(t *testing.T) {
	if got := Addr(""); got != ":8080" {
		t.Fatalf("Addr(\"\") = %s", got)
	}
	if got := Addr("9090"); got != ":9090" {
		t.Fatalf("Addr(9090) = %s", got)
	}
	if got := Addr(":7070"); got != ":7070" {
		t.Fatalf("Addr(:7070) = %s", got)
	}
}
