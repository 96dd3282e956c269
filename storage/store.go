// Package storage persists the raw, interim and master files of a run as opaque blobs.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when no blob exists at the path.
var ErrNotFound = errors.New("storage: blob not found")

// BlobStore reads and writes whole blobs addressed by a slash-separated path.
type BlobStore interface {
	Get(ctx context.Context, path string) ([]byte, error)
	Put(ctx context.Context, data []byte, path string) error
}

// Closer is implemented by stores that hold a client or a pool.
type Closer interface {
	Close() error
}

// Close releases the store's client if it has one.
func Close(store BlobStore) error {
	if c, ok := store.(Closer); ok {
		return c.Close()
	}
	return nil
}

func notFound(path string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, path)
}
