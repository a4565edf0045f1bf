package vhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Hash computes the composite cache key for a video: the first 32 hex chars
// of the content digest joined with the first 16 hex chars of a metadata
// digest over size, modification time, and base name. A pure content hash is
// not enough to tell apart logically distinct uploads with identical bytes
// (truncated or retried uploads), so the key trades occasional cache misses
// for that disambiguation.
func Hash(content io.Reader, filename string, sizeBytes int64, modifiedAt time.Time) (string, error) {
	contentSum := sha256.New()
	if _, err := io.Copy(contentSum, content); err != nil {
		return "", fmt.Errorf("hash video content: %w", err)
	}
	contentHex := hex.EncodeToString(contentSum.Sum(nil))

	meta := fmt.Sprintf("%d-%d-%s", sizeBytes, epochMillis(modifiedAt), filepath.Base(filename))
	metaSum := sha256.Sum256([]byte(meta))
	metaHex := hex.EncodeToString(metaSum[:])

	return contentHex[:32] + "-" + metaHex[:16], nil
}

// HashFile computes the composite key for a file on disk using its stat
// metadata. A read failure is a hard error; callers must not treat it as a
// cache miss.
func HashFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat video: %w", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open video: %w", err)
	}
	defer f.Close()

	return Hash(f, info.Name(), info.Size(), info.ModTime())
}

// Uploads have no client-side modification time; a zero time maps to epoch 0
// so byte-identical re-uploads of the same file name produce the same key.
func epochMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
