package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"safety-backend/internal/analysis"
	"safety-backend/internal/shared/telemetry"
)

// Remote submits analysis jobs to an external inspection service. The service
// acknowledges the submission and posts the result back to the webhook URL,
// so Analyze returns ErrPending on the happy path.
type Remote struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewRemote constructs a Remote provider.
func NewRemote(baseURL, apiKey string, timeout time.Duration) (*Remote, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("ANALYZER_SERVICE_URL is required for the remote provider")
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type remoteRequest struct {
	VideoURL   string `json:"videoUrl"`
	JobID      string `json:"jobId"`
	WebhookURL string `json:"webhookUrl"`
}

type remoteResponse struct {
	Accepted bool             `json:"accepted"`
	Analysis *analysis.Result `json:"analysis,omitempty"`
	Error    string           `json:"error,omitempty"`
}

func (r *Remote) Analyze(ctx context.Context, req Request) (analysis.Result, error) {
	if strings.TrimSpace(req.VideoURL) == "" {
		return analysis.Result{}, fmt.Errorf("video URL is required for remote analysis")
	}

	payload, err := json.Marshal(remoteRequest{
		VideoURL:   req.VideoURL,
		JobID:      req.JobID,
		WebhookURL: req.WebhookURL,
	})
	if err != nil {
		return analysis.Result{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/analyze", bytes.NewReader(payload))
	if err != nil {
		return analysis.Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return analysis.Result{}, fmt.Errorf("analyzer request timeout: %w", err)
		}
		return analysis.Result{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return analysis.Result{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return analysis.Result{}, fmt.Errorf("analyzer service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed remoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return analysis.Result{}, fmt.Errorf("analyzer response parse: %w", err)
	}
	if parsed.Error != "" {
		return analysis.Result{}, fmt.Errorf("analyzer error: %s", parsed.Error)
	}

	// Some deployments answer synchronously with the full result.
	if parsed.Analysis != nil {
		if parsed.Analysis.Frames == nil {
			parsed.Analysis.Frames = []analysis.Frame{}
		}
		return *parsed.Analysis, nil
	}
	if !parsed.Accepted {
		return analysis.Result{}, fmt.Errorf("analyzer service did not accept the job")
	}

	telemetry.Info("analyzer.remote_accepted", map[string]any{
		"job_id": req.JobID,
	})
	return analysis.Result{}, ErrPending
}

var _ Client = (*Remote)(nil)
