package main

import (
	"context"
	"log"
	"time"

	"safety-backend/internal/bootstrap"
	"safety-backend/internal/pipeline"
	"safety-backend/internal/shared/config"
	"safety-backend/internal/shared/server"
	"safety-backend/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}

	if cfg.AnalyzerTimeout > 0 {
		go reapStalledJobs(app.Pipeline, cfg.AnalyzerTimeout)
	}

	addr := server.Addr(cfg.Port)
	log.Printf("Starting API server on %s", addr)

	if err := app.Router.Run(addr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// reapStalledJobs periodically fails processing jobs whose analyzer never
// reported back (lost webhooks, killed scripts).
func reapStalledJobs(svc *pipeline.Service, maxAge time.Duration) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		n, err := svc.FailStalled(context.Background(), maxAge)
		if err != nil {
			telemetry.Warn("pipeline.reap_stalled_failed", map[string]any{
				"error": err.Error(),
			})
			continue
		}
		if n > 0 {
			telemetry.Info("pipeline.stalled_jobs_failed", map[string]any{
				"count":      n,
				"max_age_ms": maxAge.Milliseconds(),
			})
		}
	}
}
