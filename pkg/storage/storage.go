// Package storage mirrors level artifacts to a file store: a local
// directory or an S3-compatible bucket.
//
// # Usage
//
//	store, err := storage.NewLocal("/mnt/archive")
//	n, err := storage.PublishDir(ctx, store, "out/level1", "run-id/level1")
package storage

import (
	"context"
	"io"
)

// FileStore reads and writes whole files under forward-slash paths
// relative to the store root. Implementations are safe for concurrent use.
type FileStore interface {
	// Read opens path. A missing file yields an error wrapping
	// os.ErrNotExist. The caller closes the reader.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Put stores body under path, replacing any existing file.
	Put(ctx context.Context, path string, body io.Reader) error

	// Exists reports whether path exists.
	Exists(ctx context.Context, path string) (bool, error)
}
