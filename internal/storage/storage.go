// Package storage defines the interface for object storage operations.
// The MinIO implementation works with any S3-compatible provider.
package storage

import (
	"context"
	"io"
	"time"
)

// Storage is the interface for writing, moving and sharing objects.
type Storage interface {
	// Upload streams data to the store under the given key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	// Copy duplicates the object at srcKey to dstKey within the same bucket.
	Copy(ctx context.Context, srcKey, dstKey string) error
	// Delete removes an object identified by key.
	Delete(ctx context.Context, key string) error
	// PresignedURL returns a time-limited GET URL for key.
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	// Path returns the "<bucket>/<key>" location recorded for key.
	Path(key string) string
}
