package object

import (
	"context"
	"io"
)

// ObjectStore defines the contract for saving and retrieving uploaded videos.
// Keys are shaped videos/<jobID>_<sanitized-filename>.
type ObjectStore interface {
	Save(ctx context.Context, jobID string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Delete(ctx context.Context, storageKey string) error
}
