package storage

import (
	"context"
	"fmt"

	"github.com/artfolio/artfolio/internal/config"
)

// NewBackendFromConfig constructs the storage backend named by the
// configuration.
func NewBackendFromConfig(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.StorageBackend {
	case "disk", "":
		return NewDiskBackend(cfg.StoragePath)
	case "memory":
		return NewMemoryBackend(), nil
	case "s3":
		return NewS3Backend(ctx, S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PathStyle: cfg.S3UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
