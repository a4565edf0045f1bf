package local

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"safety-backend/internal/shared/storage/object"
	"safety-backend/internal/shared/util"
)

// Store implements ObjectStore using the local filesystem.
type Store struct {
	baseDir string
}

// New creates a new local object store rooted at baseDir.
func New(baseDir string) object.ObjectStore {
	return &Store{baseDir: baseDir}
}

// Save writes the reader to disk under videos/, keyed by job ID.
func (s *Store) Save(ctx context.Context, jobID string, fileName string, r io.Reader) (string, int64, string, error) {
	sanitizedName, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", 0, "", fmt.Errorf("sanitize file name: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return "", 0, "", err
	}

	finalName := fmt.Sprintf("%s_%s", jobID, sanitizedName)

	dirPath := filepath.Join(s.baseDir, "videos")
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		return "", 0, "", fmt.Errorf("mkdir: %w", err)
	}

	fullPath := filepath.Join(dirPath, finalName)
	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", 0, "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	var sniff [512]byte
	n, readErr := io.ReadFull(r, sniff[:])
	if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
		return "", 0, "", fmt.Errorf("read sniff: %w", readErr)
	}

	mimeType := http.DetectContentType(sniff[:n])

	size := int64(0)
	if n > 0 {
		if _, err := f.Write(sniff[:n]); err != nil {
			return "", 0, "", fmt.Errorf("write sniff: %w", err)
		}
		size += int64(n)
	}

	written, err := io.Copy(f, r)
	if err != nil {
		return "", 0, "", fmt.Errorf("write body: %w", err)
	}
	size += written

	relPath := filepath.Join("videos", finalName)
	return relPath, size, mimeType, nil
}

// Open opens a stored object for reading.
func (s *Store) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fullPath, err := s.resolve(storageKey)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Delete removes a stored object. Missing objects are not an error.
func (s *Store) Delete(ctx context.Context, storageKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fullPath, err := s.resolve(storageKey)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

func (s *Store) resolve(storageKey string) (string, error) {
	clean := filepath.Clean(storageKey)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid storage key")
	}
	return filepath.Join(s.baseDir, clean), nil
}
