package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string

	CacheDir    string
	FramesDir   string
	DatabaseURL string

	AnalyzerProvider   string
	AnalyzerScript     string
	AnalyzerAPIKey     string
	AnalyzerServiceURL string
	AnalyzerToken      string
	AnalyzerTimeout    time.Duration

	PublicBaseURL  string
	MaxUploadBytes int64
	SQSQueueURL    string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000")),

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),

		CacheDir:    getEnv("CACHE_DIR", "./cache/analysis-results"),
		FramesDir:   getEnv("FRAMES_DIR", "./data/frames"),
		DatabaseURL: dbURL,

		AnalyzerProvider:   normalizeProvider(getEnv("ANALYZER_PROVIDER", "")),
		AnalyzerScript:     getEnv("ANALYZER_SCRIPT", "scripts/analyze_video.py"),
		AnalyzerAPIKey:     getEnv("ANALYZER_API_KEY", ""),
		AnalyzerServiceURL: getEnv("ANALYZER_SERVICE_URL", ""),
		AnalyzerToken:      getEnv("ANALYZER_WEBHOOK_TOKEN", ""),
		AnalyzerTimeout:    time.Duration(getEnvInt("ANALYZER_TIMEOUT_SECONDS", 900)) * time.Second,

		PublicBaseURL:  strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_MB", 100)) << 20,
		SQSQueueURL:    getEnv("WS_SQS_QUEUE_URL", ""),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		log.Printf("config: %s invalid int %q, using %d", key, raw, def)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "subprocess":
		return "subprocess"
	case "remote":
		return "remote"
	default:
		return ""
	}
}
