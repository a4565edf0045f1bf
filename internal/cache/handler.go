package cache

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"safety-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the cache store.
type Handler struct {
	Store *Store
}

// NewHandler constructs a Handler.
func NewHandler(store *Store) *Handler {
	return &Handler{Store: store}
}

// RegisterRoutes attaches cache browsing routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/cache", h.get)
	rg.DELETE("/cache", h.delete)
}

type listItem struct {
	VideoHash  string `json:"videoHash"`
	Filename   string `json:"filename"`
	CachedAt   string `json:"cachedAt"`
	HasResults bool   `json:"hasResults"`
}

func (h *Handler) get(c *gin.Context) {
	switch c.Query("action") {
	case "list":
		entries, err := h.Store.List(c.Request.Context())
		if err != nil {
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list cache", nil)
			return
		}
		items := make([]listItem, 0, len(entries))
		for _, entry := range entries {
			items = append(items, listItem{
				VideoHash:  entry.VideoHash,
				Filename:   entry.Filename,
				CachedAt:   entry.CachedAt.Format("2006-01-02T15:04:05Z07:00"),
				HasResults: len(entry.Results.Frames) > 0 || entry.Results.Explanation != "",
			})
		}
		respond.JSON(c, http.StatusOK, gin.H{"success": true, "cachedResults": items})
	default:
		stats, err := h.Store.ComputeStats(c.Request.Context())
		if err != nil {
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to compute cache stats", nil)
			return
		}
		respond.JSON(c, http.StatusOK, gin.H{"success": true, "stats": stats})
	}
}

func (h *Handler) delete(c *gin.Context) {
	action := c.Query("action")
	switch action {
	case "clear-all":
		removed, err := h.Store.DeleteAll(c.Request.Context())
		if err != nil {
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to clear cache", nil)
			return
		}
		respond.JSON(c, http.StatusOK, gin.H{"success": true, "removed": removed})
	case "cleanup":
		maxAge := 30
		if raw := strings.TrimSpace(c.Query("maxAge")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				respond.Error(c, http.StatusBadRequest, "validation_error", "maxAge must be a positive integer", nil)
				return
			}
			maxAge = parsed
		}
		removed, err := h.Store.DeleteOlderThan(c.Request.Context(), maxAge)
		if err != nil {
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to clean up cache", nil)
			return
		}
		respond.JSON(c, http.StatusOK, gin.H{"success": true, "removed": removed})
	case "clear":
		hash := strings.TrimSpace(c.Query("hash"))
		if hash == "" {
			respond.Error(c, http.StatusBadRequest, "validation_error", "hash is required", nil)
			return
		}
		c.Set("videoHash", hash)
		if !h.Store.Delete(c.Request.Context(), hash) {
			respond.Error(c, http.StatusNotFound, "not_found", "cache entry not found", nil)
			return
		}
		respond.JSON(c, http.StatusOK, gin.H{"success": true})
	default:
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid action", nil)
	}
}
