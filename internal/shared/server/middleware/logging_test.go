package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestLoggingIncludesRequiredFields(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RequestID(), Logging())
	router.GET("/test", func(c *gin.Context) {
		c.Set("jobId", "job_1700000000000_abc123def")
		c.Set("videoHash", strings.Repeat("a", 32)+"-"+strings.Repeat("b", 16))
		c.Set("statusTransition", "pending->processing")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	defer func() {
		os.Stdout = origStdout
	}()

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	_ = w.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatalf("read log output: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) == 0 {
		t.Fatalf("expected log output")
	}
	last := lines[len(lines)-1]
	var payload map[string]any
	if err := json.Unmarshal([]byte(last), &payload); err != nil {
		t.Fatalf("decode log json: %v", err)
	}

	required := []string{"request_id", "job_id", "video_hash", "duration_ms", "status", "status_transition"}
	for _, key := range required {
		if _, ok := payload[key]; !ok {
			t.Fatalf("missing field %q in log payload: %v", key, payload)
		}
	}
	if payload["status_transition"] != "pending->processing" {
		t.Fatalf("status_transition = %v", payload["status_transition"])
	}
}

func TestLoggingSkipsPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RequestID(), Logging())
	router.OPTIONS("/test", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	defer func() {
		os.Stdout = origStdout
	}()

	req := httptest.NewRequest(http.MethodOptions, "/test", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	_ = w.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatalf("read log output: %v", err)
	}
	if strings.Contains(buf.String(), "request.complete") {
		t.Fatalf("preflight requests must not be logged: %s", buf.String())
	}
}
