// Package documents persists whole JSON documents by name. Writes replace the
// stored value atomically; there is no merge or versioning.
package documents

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when nothing was ever written under the key.
var ErrNotFound = errors.New("document not found")

type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, body string) error
	Ping(ctx context.Context) error
}
