package storageio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// gcsClient is the alternate warehouse backend on Google Cloud Storage,
// selected by s3.provider: "gcs".
type gcsClient struct {
	client       *storage.Client
	bucket       string
	accessID     string
	privateKey   []byte
}

// serviceAccountKey is the subset of a GCP service-account JSON key file
// needed to mint V4 signed URLs without the full oauth2/google machinery.
type serviceAccountKey struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

func newGCSClient(ctx context.Context, cfg Config) (Client, error) {
	var opts []option.ClientOption
	var accessID string
	var privateKey []byte
	if cfg.GCSCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GCSCredentialsFile))
		raw, err := os.ReadFile(cfg.GCSCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("storageio: read gcs credentials file: %w", err)
		}
		var key serviceAccountKey
		if err := json.Unmarshal(raw, &key); err != nil {
			return nil, fmt.Errorf("storageio: parse gcs credentials file: %w", err)
		}
		accessID = key.ClientEmail
		privateKey = []byte(key.PrivateKey)
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storageio: gcs client: %w", err)
	}
	return &gcsClient{client: client, bucket: cfg.Bucket, accessID: accessID, privateKey: privateKey}, nil
}

func (c *gcsClient) PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	w := c.client.Bucket(c.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return fmt.Errorf("storageio: gcs write: %w", err)
	}
	return w.Close()
}

func (c *gcsClient) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	return c.client.Bucket(c.bucket).Object(key).NewReader(ctx)
}

func (c *gcsClient) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return c.sign(key, ttl, http.MethodGet)
}

func (c *gcsClient) PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return c.sign(key, ttl, http.MethodPut)
}

// sign mints a V4 signed URL; it requires a service-account credentials
// file (GCS signing needs a private key, unlike AWS/Azure's request
// signing which can use ambient credentials).
func (c *gcsClient) sign(key string, ttl time.Duration, method string) (string, error) {
	if c.accessID == "" {
		return "", fmt.Errorf("storageio: gcs presign requires storage.GCSCredentialsFile (service account key)")
	}
	return storage.SignedURL(c.bucket, key, &storage.SignedURLOptions{
		GoogleAccessID: c.accessID,
		PrivateKey:     c.privateKey,
		Method:         method,
		Expires:        time.Now().Add(ttl),
		Scheme:         storage.SigningSchemeV4,
	})
}
