package jobs

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"safety-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the job repo.
type Handler struct {
	Repo Repo
}

// NewHandler constructs a Handler.
func NewHandler(repo Repo) *Handler {
	return &Handler{Repo: repo}
}

// RegisterRoutes attaches job read routes to the router group. Deletion is
// owned by the pipeline handler so the stored video is cleaned up with the
// record.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/jobs", h.list)
	rg.GET("/jobs/:id", h.get)
}

func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	c.Set("jobId", id)

	job, err := h.Repo.GetByID(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch job", nil)
		}
		return
	}
	respond.JSON(c, http.StatusOK, job)
}

func (h *Handler) list(c *gin.Context) {
	all, err := h.Repo.List(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list jobs", nil)
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"jobs": all})
}
