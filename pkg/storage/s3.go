package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"quiz-trainer/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const workbookContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// S3Client archives uploaded question-bank workbooks in an S3-compatible
// bucket and reads them back for import.
type S3Client struct {
	client *minio.Client
	bucket string
}

func NewS3Client(cfg *config.S3Config) (*S3Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up bank archive at %s: %w", cfg.Endpoint, err)
	}

	return &S3Client{client: client, bucket: cfg.Bucket}, nil
}

// Bucket is where banks are archived when no other bucket is named.
func (c *S3Client) Bucket() string {
	return c.bucket
}

// EnsureBucket creates the archive bucket on first start.
func (c *S3Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to look up bank archive %s: %w", c.bucket, err)
	}
	if exists {
		return nil
	}

	if err := c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bank archive %s: %w", c.bucket, err)
	}
	return nil
}

// PutWorkbook stores a workbook under object in the archive bucket.
func (c *S3Client) PutWorkbook(ctx context.Context, object string, data []byte) error {
	_, err := c.client.PutObject(ctx, c.bucket, object, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: workbookContentType,
	})
	if err != nil {
		return fmt.Errorf("failed to archive workbook %s: %w", object, err)
	}
	return nil
}

// OpenWorkbook opens a stored workbook. The caller closes it.
func (c *S3Client) OpenWorkbook(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	obj, err := c.client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s/%s: %w", bucket, object, err)
	}

	// GetObject is lazy; Stat reports a missing workbook before parsing.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("failed to open workbook %s/%s: %w", bucket, object, err)
	}
	return obj, nil
}
