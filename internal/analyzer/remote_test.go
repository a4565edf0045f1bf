package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRemoteAcceptedIsPending(t *testing.T) {
	var got remoteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analyze" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"accepted":true}`))
	}))
	t.Cleanup(srv.Close)

	client, err := NewRemote(srv.URL, "secret", 5*time.Second)
	if err != nil {
		t.Fatalf("NewRemote: %v", err)
	}

	_, err = client.Analyze(context.Background(), Request{
		VideoURL:   "http://example.com/api/v1/videos/job-1/content",
		JobID:      "job-1",
		WebhookURL: "http://example.com/api/v1/webhook/job-1",
	})
	if !errors.Is(err, ErrPending) {
		t.Fatalf("expected ErrPending, got %v", err)
	}
	if got.JobID != "job-1" || got.VideoURL == "" || got.WebhookURL == "" {
		t.Fatalf("unexpected request payload: %+v", got)
	}
}

func TestRemoteSynchronousResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"analysis":{"incorrectParking":true,"wasteMaterial":false,"explanation":"car blocking ramp","frames":[]}}`))
	}))
	t.Cleanup(srv.Close)

	client, err := NewRemote(srv.URL, "", 5*time.Second)
	if err != nil {
		t.Fatalf("NewRemote: %v", err)
	}

	result, err := client.Analyze(context.Background(), Request{VideoURL: "http://x/v", JobID: "job-1"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !result.IncorrectParking || result.Explanation != "car blocking ramp" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRemoteServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	t.Cleanup(srv.Close)

	client, err := NewRemote(srv.URL, "", 5*time.Second)
	if err != nil {
		t.Fatalf("NewRemote: %v", err)
	}

	if _, err := client.Analyze(context.Background(), Request{VideoURL: "http://x/v"}); err == nil {
		t.Fatalf("expected error on 502")
	}
}

func TestRemoteRequiresVideoURL(t *testing.T) {
	client, err := NewRemote("http://localhost:1", "", time.Second)
	if err != nil {
		t.Fatalf("NewRemote: %v", err)
	}
	if _, err := client.Analyze(context.Background(), Request{}); err == nil {
		t.Fatalf("expected error for missing video URL")
	}
}
