package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"safety-backend/internal/cache"
	"safety-backend/internal/jobs"
	"safety-backend/internal/pipeline"
	"safety-backend/internal/services/health"
	"safety-backend/internal/shared/config"
	"safety-backend/internal/shared/metrics"
	"safety-backend/internal/shared/server/middleware"
	"safety-backend/internal/shared/server/respond"
	"safety-backend/internal/uploads"
)

const uploadRateGroup = "UPLOAD"

// RouterDeps carries the handlers the router wires up.
type RouterDeps struct {
	Config          config.Config
	Health          *health.Service
	JobsHandler     *jobs.Handler
	CacheHandler    *cache.Handler
	PipelineHandler *pipeline.Handler
	UploadsHandler  *uploads.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.RateLimit(rateLimitConfig()),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, deps.Health.Status())
	})

	if deps.PipelineHandler != nil {
		deps.PipelineHandler.RegisterRoutes(api)
	}
	if deps.JobsHandler != nil {
		deps.JobsHandler.RegisterRoutes(api)
	}
	if deps.CacheHandler != nil {
		deps.CacheHandler.RegisterRoutes(api)
	}
	if deps.UploadsHandler != nil {
		deps.UploadsHandler.RegisterRoutes(api)
	}

	return r
}

func rateLimitConfig() middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		Rules: map[string]middleware.RateLimitRule{
			"DEFAULT":       {Rate: 20, Burst: 40},
			uploadRateGroup: {Rate: 0.5, Burst: 3},
		},
		GroupFor: func(c *gin.Context) string {
			if c.Request.Method == http.MethodPost && strings.HasSuffix(c.Request.URL.Path, "/videos") {
				return uploadRateGroup
			}
			return "DEFAULT"
		},
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
