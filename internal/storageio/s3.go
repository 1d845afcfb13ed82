package storageio

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3Client is the primary warehouse backend: plain S3 for ordinary buckets,
// or an S3 Express One Zone directory bucket when the bucket name carries
// the "--x-s3" suffix.
type s3Client struct {
	api    *s3.Client
	presign *s3.PresignClient
	bucket string
}

func newS3Client(ctx context.Context, cfg Config) (Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storageio: load aws config: %w", err)
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		if zone, ok := s3ExpressZone(cfg.Bucket); ok {
			endpoint = fmt.Sprintf("https://s3express-%s.%s.amazonaws.com", zone, awsCfg.Region)
		}
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return &s3Client{
		api:     api,
		presign: s3.NewPresignClient(api),
		bucket:  cfg.Bucket,
	}, nil
}

// s3ExpressZone extracts the availability-zone ID from an S3 Express
// directory bucket name (form "{name}--{zone}--x-s3") and reports whether
// the bucket is an Express bucket at all.
func s3ExpressZone(bucket string) (string, bool) {
	const suffix = "--x-s3"
	if !strings.HasSuffix(bucket, suffix) {
		return "", false
	}
	trimmed := strings.TrimSuffix(bucket, suffix)
	idx := strings.LastIndex(trimmed, "--")
	if idx < 0 {
		return "", false
	}
	return trimmed[idx+2:], true
}

func (c *s3Client) PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	uploader := manager.NewUploader(c.api)
	input := &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	_, err := uploader.Upload(ctx, input)
	return err
}

func (c *s3Client) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

func (c *s3Client) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

func (c *s3Client) PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := c.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
