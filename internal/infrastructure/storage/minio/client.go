// Package minio stores reference snapshots and acquisition archives in an
// S3-compatible object store.
package minio

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/turtacn/substance-resolver/internal/config"
	"github.com/turtacn/substance-resolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/substance-resolver/pkg/errors"
)

// MaxObjectSize bounds how much of an object GetObject reads into memory.
const MaxObjectSize = 256 << 20

// ObjectStore is the part of the object storage API the resolver uses.
type ObjectStore interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error
	EnsureBucket(ctx context.Context, bucket string) error
}

// Client implements ObjectStore with minio-go.
type Client struct {
	api    *minio.Client
	cfg    config.MinIOConfig
	logger logging.Logger

	mu      sync.Mutex
	ensured map[string]bool
}

var _ ObjectStore = (*Client)(nil)

// NewClient connects to cfg.Endpoint and verifies the credentials by listing
// buckets.
func NewClient(ctx context.Context, cfg config.MinIOConfig, log logging.Logger) (*Client, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	api, err := newAPI(cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := api.ListBuckets(pingCtx); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to connect to minio").
			WithDetail("endpoint=" + cfg.Endpoint)
	}

	log.Info("MinIO client connected", logging.String("endpoint", cfg.Endpoint), logging.Bool("ssl", cfg.UseSSL))
	return &Client{api: api, cfg: cfg, logger: log, ensured: make(map[string]bool)}, nil
}

func newAPI(cfg config.MinIOConfig) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New(errors.ErrCodeValidation, "minio endpoint is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	api, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "failed to create minio client")
	}
	return api, nil
}

// EnsureBucket creates bucket if it does not exist. The result is remembered
// for the lifetime of the Client.
func (c *Client) EnsureBucket(ctx context.Context, bucket string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ensured[bucket] {
		return nil
	}

	exists, err := c.api.BucketExists(ctx, bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to check bucket").WithDetail("bucket=" + bucket)
	}
	if !exists {
		if err := c.api.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: c.cfg.Region}); err != nil {
			return errors.Wrap(err, errors.ErrCodeStorageError, "failed to create bucket").WithDetail("bucket=" + bucket)
		}
		c.logger.Info("Created bucket", logging.String("bucket", bucket))
	}
	c.ensured[bucket] = true
	return nil
}

// GetObject reads a whole object. A missing bucket or key yields an error for
// which errors.IsNotFound is true.
func (c *Client) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := c.api.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classify(err, bucket, key)
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, MaxObjectSize+1))
	if err != nil {
		return nil, classify(err, bucket, key)
	}
	if len(data) > MaxObjectSize {
		return nil, errors.New(errors.ErrCodeStorageError, "object exceeds size limit").
			WithDetail("object=" + bucket + "/" + key)
	}
	return data, nil
}

func (c *Client) PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := c.api.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to upload object").
			WithDetail("object=" + bucket + "/" + key)
	}
	c.logger.Debug("Uploaded object",
		logging.String("bucket", bucket), logging.String("key", key), logging.Int("size", len(data)))
	return nil
}

// HealthCheck lists buckets to confirm the endpoint answers.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.api.ListBuckets(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "minio health check failed")
	}
	return nil
}

func classify(err error, bucket, key string) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return errors.Wrap(err, errors.ErrCodeNotFound, "object not found").
			WithDetail("object=" + bucket + "/" + key)
	}
	return errors.Wrap(err, errors.ErrCodeStorageError, "failed to read object").
		WithDetail("object=" + bucket + "/" + key)
}
