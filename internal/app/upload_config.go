package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/jobeco/fairprice/internal/services"
)

// NewUploadService builds the attachment service over the configured backend.
func (c UploadConfig) NewUploadService(ctx context.Context) (*services.UploadService, error) {
	var storage services.FileStorage

	switch strings.ToLower(strings.TrimSpace(c.Backend)) {
	case "", UploadBackendLocal:
		local, err := services.NewLocalStorage(c.Dir)
		if err != nil {
			return nil, err
		}
		storage = local
	case UploadBackendS3:
		client, err := services.NewS3Client(ctx, services.S3Settings{
			Region:          c.S3.Region,
			AccessKeyID:     c.S3.AccessKeyID,
			SecretAccessKey: c.S3.SecretAccessKey,
			Endpoint:        c.S3.Endpoint,
			UsePathStyle:    c.S3.UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		s3Storage, err := services.NewS3Storage(client, c.S3.Bucket, c.S3.Prefix)
		if err != nil {
			return nil, err
		}
		storage = s3Storage
	default:
		return nil, fmt.Errorf("uploads: unsupported backend %q", c.Backend)
	}

	return services.NewUploadService(storage, services.UploadSettings{
		MaxSize:           c.MaxSize,
		AllowedExtensions: c.AllowedExtensions,
	})
}
