package uploads

import (
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"safety-backend/internal/shared/server/respond"
	"safety-backend/internal/shared/telemetry"
	"safety-backend/internal/shared/util"
)

const presignExpires = 15 * time.Minute

var allowedContentTypes = map[string]struct{}{
	"video/mp4":        {},
	"video/quicktime":  {},
	"video/x-msvideo":  {},
	"video/x-matroska": {},
	"video/webm":       {},
}

// Handler issues presigned S3 PUT URLs so large videos can bypass the API
// body limit. Only available when the S3 store is configured.
type Handler struct {
	Presign  *s3.PresignClient
	Bucket   string
	Prefix   string
	MaxBytes int64
}

// NewHandler constructs a presign handler.
func NewHandler(presign *s3.PresignClient, bucket, prefix string, maxBytes int64) *Handler {
	if !strings.HasSuffix(prefix, "/") && prefix != "" {
		prefix += "/"
	}
	return &Handler{
		Presign:  presign,
		Bucket:   bucket,
		Prefix:   prefix,
		MaxBytes: maxBytes,
	}
}

type presignRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

type presignResponse struct {
	UploadURL        string `json:"uploadUrl"`
	S3Key            string `json:"s3Key"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
}

// RegisterRoutes attaches the presign endpoint to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/uploads/presign", h.presign)
}

func (h *Handler) presign(c *gin.Context) {
	var req presignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	req.FileName = strings.TrimSpace(req.FileName)
	req.ContentType = strings.TrimSpace(req.ContentType)

	if req.FileName == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "fileName is required", nil)
		return
	}
	if _, ok := allowedContentTypes[req.ContentType]; !ok && !util.IsVideoFileName(req.FileName) {
		respond.Error(c, http.StatusBadRequest, "validation_error", "contentType is not allowed", nil)
		return
	}
	if req.SizeBytes <= 0 || req.SizeBytes > h.MaxBytes {
		respond.Error(c, http.StatusBadRequest, "validation_error",
			"sizeBytes must be positive and at most "+util.FormatBytes(h.MaxBytes), nil)
		return
	}

	sanitized, err := util.SanitizeFileName(req.FileName)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid fileName", nil)
		return
	}

	key := path.Join(h.Prefix, "incoming", uuid.NewString()+"-"+sanitized)

	out, err := h.Presign.PresignPutObject(c.Request.Context(), &s3.PutObjectInput{
		Bucket: aws.String(h.Bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = presignExpires
	})
	if err != nil {
		telemetry.Error("uploads.presign_failed", map[string]any{
			"err":        err.Error(),
			"bucket":     h.Bucket,
			"key":        key,
			"size_bytes": req.SizeBytes,
			"request_id": c.GetString("requestId"),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to generate upload url", nil)
		return
	}

	respond.JSON(c, http.StatusOK, presignResponse{
		UploadURL:        out.URL,
		S3Key:            key,
		ExpiresInSeconds: int64(presignExpires.Seconds()),
	})
}
