// Package storage holds raw image payloads between upload and the pipeline
// sweep. Keys are opaque, job-scoped paths.
package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("object not found")

// Store is the raw byte store consumed by the pipeline and the upload
// handlers.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
}
