// Package storageio is the object-storage client behind the warehouse
// bucket: the EXPORT_CSV result object and the GET_UPLOAD_URL/
// GET_DOWNLOAD_URL presigned-URL helpers all go through one of these
// backends, selected by config rather than hardcoded to any single cloud.
package storageio

import (
	"context"
	"io"
	"time"
)

// Client is the object-storage surface every backend implements: put/get a
// single object and mint a time-bounded presigned URL for it.
type Client interface {
	PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// DefaultPresignTTL matches storage.presign_ttl_seconds' documented
// default.
const DefaultPresignTTL = 15 * time.Minute

// Config selects and parameterizes a backend. Provider is "s3", "azure", or
// "gcs"; the remaining fields are interpreted per backend.
type Config struct {
	Provider string
	Bucket   string

	// S3
	Region          string
	Endpoint        string // non-empty for S3-compatible / S3 Express endpoints
	AccessKeyID     string
	SecretAccessKey string

	// Azure
	AzureAccountName string
	AzureAccountKey  string

	// GCS
	GCSCredentialsFile string
}

// New constructs the configured backend.
func New(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Provider {
	case "", "s3":
		return newS3Client(ctx, cfg)
	case "azure":
		return newAzureClient(ctx, cfg)
	case "gcs":
		return newGCSClient(ctx, cfg)
	default:
		return nil, &UnsupportedProviderError{Provider: cfg.Provider}
	}
}

// UnsupportedProviderError is returned by New for an unrecognized
// s3.provider value.
type UnsupportedProviderError struct{ Provider string }

func (e *UnsupportedProviderError) Error() string {
	return "storageio: unsupported provider " + e.Provider
}
