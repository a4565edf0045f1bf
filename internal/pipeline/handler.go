package pipeline

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"safety-backend/internal/analysis"
	"safety-backend/internal/jobs"
	"safety-backend/internal/shared/server/respond"
	"safety-backend/internal/shared/telemetry"
	"safety-backend/internal/shared/util"
)

var allowedVideoTypes = map[string]struct{}{
	"video/mp4":        {},
	"video/quicktime":  {},
	"video/x-msvideo":  {},
	"video/x-matroska": {},
	"video/webm":       {},
}

// Handler exposes the upload, processing, and webhook endpoints.
type Handler struct {
	Service        *Service
	MaxUploadBytes int64
	WebhookToken   string

	// FramesDir is where the subprocess analyzer writes extracted frame
	// images, one subdirectory per job. Empty disables frame serving.
	FramesDir string
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, maxUploadBytes int64, webhookToken, framesDir string) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 100 << 20
	}
	return &Handler{
		Service:        svc,
		MaxUploadBytes: maxUploadBytes,
		WebhookToken:   webhookToken,
		FramesDir:      framesDir,
	}
}

// RegisterRoutes attaches pipeline routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/videos", h.upload)
	rg.GET("/videos/:id/content", h.content)
	rg.GET("/frames/:id/:filename", h.frame)
	rg.POST("/process/:id", h.process)
	rg.POST("/webhook/:id", h.webhook)
	rg.DELETE("/jobs/:id", h.deleteJob)
}

func (h *Handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)

	file, header, err := c.Request.FormFile("video")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "validation_error",
				"video exceeds the maximum upload size of "+util.FormatBytes(h.MaxUploadBytes), nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "multipart field 'video' is required", nil)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !util.IsVideoFileName(header.Filename) {
		if _, ok := allowedVideoTypes[contentType]; !ok {
			respond.Error(c, http.StatusBadRequest, "validation_error", "file does not look like a video", nil)
			return
		}
	}

	job, err := h.Service.Submit(c.Request.Context(), c.GetString("requestId"), header.Filename, file)
	if err != nil {
		telemetry.Error("pipeline.upload_failed", map[string]any{
			"filename": header.Filename,
			"error":    err.Error(),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to accept upload", nil)
		return
	}

	c.Set("jobId", job.ID)
	respond.JSON(c, http.StatusAccepted, gin.H{
		"success": true,
		"jobId":   job.ID,
		"status":  job.Status,
	})
}

func (h *Handler) content(c *gin.Context) {
	id := c.Param("id")
	c.Set("jobId", id)

	job, err := h.Service.Repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch job", nil)
		return
	}

	rc, err := h.Service.Store.Open(c.Request.Context(), job.StorageKey)
	if err != nil {
		respond.Error(c, http.StatusNotFound, "not_found", "video content not found", nil)
		return
	}
	defer rc.Close()

	contentType := job.MimeType
	if contentType == "" {
		contentType = "video/mp4"
	}
	c.Header("Content-Disposition", `inline; filename="`+job.Filename+`"`)
	c.DataFromReader(http.StatusOK, job.SizeBytes, contentType, rc, nil)
}

// frame serves an extracted frame image referenced by a result's imageUrl.
func (h *Handler) frame(c *gin.Context) {
	id := c.Param("id")
	name := c.Param("filename")
	c.Set("jobId", id)

	if h.FramesDir == "" {
		respond.Error(c, http.StatusNotFound, "not_found", "frame hosting is not configured", nil)
		return
	}
	if !safePathSegment(id) || !safePathSegment(name) {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid frame path", nil)
		return
	}

	path := filepath.Join(h.FramesDir, id, name)
	if _, err := os.Stat(path); err != nil {
		respond.Error(c, http.StatusNotFound, "not_found", "frame not found", nil)
		return
	}
	c.File(path)
}

// safePathSegment rejects path elements that could escape the frames dir.
func safePathSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, `/\`)
}

func (h *Handler) process(c *gin.Context) {
	id := c.Param("id")
	c.Set("jobId", id)

	if _, err := h.Service.Repo.GetByID(c.Request.Context(), id); err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch job", nil)
		return
	}

	go func() {
		if err := h.Service.Process(context.Background(), id); err != nil {
			telemetry.Error("pipeline.process_error", map[string]any{
				"job_id": id,
				"error":  err.Error(),
			})
		}
	}()

	respond.JSON(c, http.StatusAccepted, gin.H{"success": true, "jobId": id})
}

type webhookPayload struct {
	Success  bool             `json:"success"`
	Analysis *analysis.Result `json:"analysis,omitempty"`
	Error    string           `json:"error,omitempty"`
}

func (h *Handler) webhook(c *gin.Context) {
	id := c.Param("id")
	c.Set("jobId", id)

	if !h.authorized(c) {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "invalid webhook token", nil)
		return
	}

	var payload webhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid webhook body", nil)
		return
	}

	failure := ""
	if !payload.Success {
		failure = payload.Error
		if failure == "" {
			failure = "analyzer reported failure without detail"
		}
	}

	if err := h.Service.CompleteFromWebhook(c.Request.Context(), id, payload.Analysis, failure); err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to record analysis", nil)
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"success": true})
}

func (h *Handler) deleteJob(c *gin.Context) {
	id := c.Param("id")
	c.Set("jobId", id)

	ok, err := h.Service.DeleteJob(c.Request.Context(), id)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to delete job", nil)
		return
	}
	if !ok {
		respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"success": true})
}

func (h *Handler) authorized(c *gin.Context) bool {
	if h.WebhookToken == "" {
		// No token configured: webhook endpoint is open, which is only
		// acceptable in local development.
		return true
	}
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.WebhookToken)) == 1
}
