package storageio

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
)

// azureClient is the alternate warehouse backend for deployments whose
// catalog/object store live in Azure Blob Storage.
type azureClient struct {
	client    *azblob.Client
	sharedKey *azblob.SharedKeyCredential
	container string
}

func newAzureClient(ctx context.Context, cfg Config) (Client, error) {
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AzureAccountName)

	if cfg.AzureAccountKey != "" {
		shared, err := azblob.NewSharedKeyCredential(cfg.AzureAccountName, cfg.AzureAccountKey)
		if err != nil {
			return nil, fmt.Errorf("storageio: azure shared key credential: %w", err)
		}
		client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, shared, nil)
		if err != nil {
			return nil, fmt.Errorf("storageio: azure client: %w", err)
		}
		return &azureClient{client: client, sharedKey: shared, container: cfg.Bucket}, nil
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("storageio: azure default credential: %w", err)
	}
	client, err := azblob.NewClient(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("storageio: azure client: %w", err)
	}
	return &azureClient{client: client, container: cfg.Bucket}, nil
}

func (c *azureClient) PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	_, err := c.client.UploadStream(ctx, c.container, key, body, nil)
	return err
}

func (c *azureClient) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := c.client.DownloadStream(ctx, c.container, key, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *azureClient) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return c.signBlobURL(key, ttl, sas.BlobPermissions{Read: true})
}

func (c *azureClient) PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return c.signBlobURL(key, ttl, sas.BlobPermissions{Write: true, Create: true})
}

// signBlobURL mints a SAS URL scoped to a single blob, account-key signed —
// Azure's equivalent of S3's presigned GET/PUT.
func (c *azureClient) signBlobURL(key string, ttl time.Duration, perms sas.BlobPermissions) (string, error) {
	if c.sharedKey == nil {
		return "", fmt.Errorf("storageio: azure presign requires an account key credential")
	}
	blobClient := c.client.ServiceClient().NewContainerClient(c.container).NewBlobClient(key)
	expiry := time.Now().Add(ttl)
	return blobClient.GetSASURL(perms, expiry, nil)
}
