// Package storage holds the blob-store contract shared by the gcs, s3 and
// in-memory backends.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is returned by Stat and Open for a missing key.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo is the metadata the gateway exposes for a stored blob.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
	ETag        string
	UploadedAt  time.Time
}

// Store is implemented by every blob backend.
type Store interface {
	// Put replaces any prior object under key. size is -1 when unknown.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (ObjectInfo, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	// Open reads length bytes starting at offset; length < 0 reads to the end.
	Open(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error)
	List(ctx context.Context, limit int) ([]ObjectInfo, error)
	// Delete is idempotent: a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}
