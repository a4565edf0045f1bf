package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"safety-backend/internal/analysis"
	"safety-backend/internal/shared/telemetry"
)

// Subprocess runs a local analysis script and decodes its stdout envelope.
type Subprocess struct {
	// Interpreter defaults to "python3".
	Interpreter string
	ScriptPath  string
	APIKey      string
	Timeout     time.Duration

	// FramesDir, when set, tells the script where to write extracted frame
	// images via ANALYZER_FRAMES_DIR (a per-job subdirectory).
	FramesDir string
}

// NewSubprocess constructs a Subprocess provider.
func NewSubprocess(scriptPath, apiKey string, timeout time.Duration) (*Subprocess, error) {
	if strings.TrimSpace(scriptPath) == "" {
		return nil, fmt.Errorf("ANALYZER_SCRIPT is required for the subprocess provider")
	}
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	return &Subprocess{
		Interpreter: "python3",
		ScriptPath:  scriptPath,
		APIKey:      apiKey,
		Timeout:     timeout,
	}, nil
}

type scriptEnvelope struct {
	Success        bool             `json:"success"`
	Analysis       *analysis.Result `json:"analysis,omitempty"`
	FramesAnalyzed int              `json:"frames_analyzed,omitempty"`
	Error          string           `json:"error,omitempty"`
}

func (s *Subprocess) Analyze(ctx context.Context, req Request) (analysis.Result, error) {
	if strings.TrimSpace(req.VideoPath) == "" {
		return analysis.Result{}, fmt.Errorf("video path is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	interpreter := s.Interpreter
	if interpreter == "" {
		interpreter = "python3"
	}

	cmd := exec.CommandContext(ctx, interpreter, s.ScriptPath, req.VideoPath)
	env := cmd.Environ()
	if strings.TrimSpace(s.APIKey) != "" {
		env = append(env, "ANALYZER_API_KEY="+s.APIKey)
	}
	if strings.TrimSpace(s.FramesDir) != "" {
		env = append(env, "ANALYZER_FRAMES_DIR="+filepath.Join(s.FramesDir, req.JobID))
	}
	cmd.Env = env
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	telemetry.Info("analyzer.subprocess_finished", map[string]any{
		"job_id":      req.JobID,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if ctx.Err() == context.DeadlineExceeded {
		return analysis.Result{}, fmt.Errorf("analysis script timed out after %s", s.Timeout)
	}
	if runErr != nil {
		return analysis.Result{}, fmt.Errorf("analysis script failed: %w: %s", runErr, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return analysis.Result{}, fmt.Errorf("analysis script returned empty output")
	}

	// The script may log before the final JSON line; decode from the last
	// object in stdout.
	payload := lastJSONObject(stdout.Bytes())
	var envelope scriptEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return analysis.Result{}, fmt.Errorf("decode analysis output: %w", err)
	}
	if !envelope.Success {
		msg := envelope.Error
		if msg == "" {
			msg = "analysis script reported failure without detail"
		}
		return analysis.Result{}, fmt.Errorf("analysis failed: %s", msg)
	}
	if envelope.Analysis == nil {
		return analysis.Result{}, fmt.Errorf("analysis succeeded but returned no result")
	}
	if envelope.Analysis.Frames == nil {
		envelope.Analysis.Frames = []analysis.Frame{}
	}
	return *envelope.Analysis, nil
}

// lastJSONObject returns the substring from the last top-level '{' that still
// parses as JSON, falling back to the full output.
func lastJSONObject(out []byte) []byte {
	trimmed := bytes.TrimSpace(out)
	if json.Valid(trimmed) {
		return trimmed
	}
	if idx := bytes.LastIndexByte(trimmed, '\n'); idx >= 0 {
		tail := bytes.TrimSpace(trimmed[idx+1:])
		if json.Valid(tail) {
			return tail
		}
	}
	return trimmed
}

var _ Client = (*Subprocess)(nil)
