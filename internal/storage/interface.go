package storage

import (
	"context"
	"io"
)

// ObjectStorage defines the object storage operations used for job exports.
type ObjectStorage interface {
	// Upload writes an object.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download opens an object for reading.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// GetURL returns the URL for accessing an object.
	GetURL(key string) string

	// Delete removes an object.
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists.
	Exists(ctx context.Context, key string) (bool, error)
}
