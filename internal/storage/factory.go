package storage

import (
	"context"
	"strings"

	"github.com/timmy/dropcart/internal/config"
)

// NewStorage creates an ObjectStorage from application configuration.
// Parameters:
//   - ctx: context used while loading credentials.
//   - cfg: storage configuration including endpoint, credentials, and bucket.
// Returns:
//   - *S3Storage: initialized storage client.
//   - error: non-nil if the storage client cannot be created.
func NewStorage(ctx context.Context, cfg config.StorageConfig) (*S3Storage, error) {
	return NewS3Storage(ctx, &S3Config{
		Type:           detectStorageType(cfg.Endpoint),
		Endpoint:       cfg.Endpoint,
		AccessKey:      cfg.AccessKey,
		SecretKey:      cfg.SecretKey,
		UseSSL:         cfg.UseSSL,
		Bucket:         cfg.Bucket,
		Region:         cfg.Region,
		PublicURL:      cfg.PublicURL,
		ForcePathStyle: cfg.ForcePathStyle,
	})
}

// detectStorageType guesses the provider from the endpoint host.
func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case strings.Contains(endpoint, "amazonaws.com"), endpoint == "":
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}
