package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"

	"safety-backend/internal/analyzer"
	"safety-backend/internal/cache"
	"safety-backend/internal/jobs"
	"safety-backend/internal/pipeline"
	"safety-backend/internal/queue"
	"safety-backend/internal/services/health"
	"safety-backend/internal/shared/config"
	"safety-backend/internal/shared/server"
	"safety-backend/internal/shared/storage/db"
	"safety-backend/internal/shared/storage/object"
	localstore "safety-backend/internal/shared/storage/object/local"
	s3store "safety-backend/internal/shared/storage/object/s3"
	"safety-backend/internal/uploads"
)

const uploadsDefaultRegion = "us-east-1"

// App holds shared dependencies for the API and worker processes.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	Cache  *cache.Store
	Queue  queue.Client

	JobsRepo jobs.Repo
	Analyzer analyzer.Client
	Pipeline *pipeline.Service

	JobsHandler     *jobs.Handler
	CacheHandler    *cache.Handler
	PipelineHandler *pipeline.Handler
	UploadsHandler  *uploads.Handler
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	cacheStore, err := cache.NewStore(cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("init result cache: %w", err)
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	analyzerClient, err := buildAnalyzer(cfg)
	if err != nil {
		return nil, err
	}

	var repo jobs.Repo
	if sqlDB != nil {
		repo = &jobs.PGRepo{DB: sqlDB}
	} else {
		repo = jobs.NewMemoryRepo()
	}

	pipelineSvc := &pipeline.Service{
		Repo:          repo,
		Store:         store,
		Cache:         cacheStore,
		Analyzer:      analyzerClient,
		Queue:         queueClient,
		PublicBaseURL: cfg.PublicBaseURL,
	}

	uploadsHandler, err := buildUploadsHandler(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:          cfg,
		DB:              sqlDB,
		Store:           store,
		Cache:           cacheStore,
		Queue:           queueClient,
		JobsRepo:        repo,
		Analyzer:        analyzerClient,
		Pipeline:        pipelineSvc,
		JobsHandler:     jobs.NewHandler(repo),
		CacheHandler:    cache.NewHandler(cacheStore),
		PipelineHandler: pipeline.NewHandler(pipelineSvc, cfg.MaxUploadBytes, cfg.AnalyzerToken, cfg.FramesDir),
		UploadsHandler:  uploadsHandler,
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		Health:          health.NewService(),
		JobsHandler:     app.JobsHandler,
		CacheHandler:    app.CacheHandler,
		PipelineHandler: app.PipelineHandler,
		UploadsHandler:  app.UploadsHandler,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory job registry")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory job registry: %v", err)
			return nil, nil
		}
		return nil, err
	}

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.SQSQueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx)
}

func buildAnalyzer(cfg config.Config) (analyzer.Client, error) {
	switch cfg.AnalyzerProvider {
	case "subprocess":
		sub, err := analyzer.NewSubprocess(cfg.AnalyzerScript, cfg.AnalyzerAPIKey, cfg.AnalyzerTimeout)
		if err != nil {
			return nil, err
		}
		sub.FramesDir = cfg.FramesDir
		return sub, nil
	case "remote":
		return analyzer.NewRemote(cfg.AnalyzerServiceURL, cfg.AnalyzerAPIKey, cfg.AnalyzerTimeout)
	default:
		log.Printf("bootstrap: no analyzer provider configured; analysis jobs will fail until ANALYZER_PROVIDER is set")
		return analyzer.Placeholder{}, nil
	}
}

func buildUploadsHandler(ctx context.Context, cfg config.Config) (*uploads.Handler, error) {
	if cfg.ObjectStoreType != "s3" || strings.TrimSpace(cfg.S3Bucket) == "" {
		return nil, nil
	}

	region := strings.TrimSpace(cfg.AWSRegion)
	if region == "" {
		region = uploadsDefaultRegion
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return uploads.NewHandler(s3.NewPresignClient(client), cfg.S3Bucket, cfg.S3Prefix, cfg.MaxUploadBytes), nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
