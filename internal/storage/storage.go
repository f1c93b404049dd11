// Package storage persists binary objects (re-hosted avatars) in S3-compatible storage.
package storage

import (
	"context"
	"io"
)

// ObjectStore uploads objects and exposes the public endpoint they are served from.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	PublicEndpoint() string
}
