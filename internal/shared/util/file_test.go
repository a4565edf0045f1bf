package util

import "testing"

func TestIsVideoFileName(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"warehouse.mp4", true},
		{"clip.MOV", true},
		{"footage.webm", true},
		{"report.pdf", false},
		{"noextension", false},
	}
	for _, tc := range cases {
		if got := IsVideoFileName(tc.name); got != tc.want {
			t.Errorf("IsVideoFileName(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	if got := FormatBytes(0); got != "0 B" {
		t.Errorf("FormatBytes(0) = %q", got)
	}
	if got := FormatBytes(1536); got != "1.50 KB" {
		t.Errorf("FormatBytes(1536) = %q", got)
	}
	if got := FormatBytes(100 << 20); got != "100.00 MB" {
		t.Errorf("FormatBytes(100MB) = %q", got)
	}
}

func TestSanitizeFileName(t *testing.T) {
	if _, err := SanitizeFileName("../../etc/passwd"); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
	got, err := SanitizeFileName("dock cam/morning.mp4")
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if got != "dock cam_morning.mp4" {
		t.Errorf("sanitized = %q", got)
	}
}
