package s3

import "testing"

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "videos/job_1_a.mp4", want: "videos/job_1_a.mp4"},
		{name: "simple prefix", prefix: "uploads", key: "videos/job_1_a.mp4", want: "uploads/videos/job_1_a.mp4"},
		{name: "prefix trailing slash", prefix: "uploads/", key: "videos/job_1_a.mp4", want: "uploads/videos/job_1_a.mp4"},
		{name: "prefix and key slashes", prefix: "/uploads/", key: "/videos/job_1_a.mp4", want: "uploads/videos/job_1_a.mp4"},
		{name: "nested prefix", prefix: "env/prod", key: "videos/job_1_a.mp4", want: "env/prod/videos/job_1_a.mp4"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}
