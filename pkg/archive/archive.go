// Package archive mirrors uploaded documents to an S3-compatible bucket.
//
// The remote document store is the source of truth; the archive is a
// write-only secondary copy kept for disaster recovery and offline audits.
// Object keys mirror the container and folder structure, so the bucket stays
// human-readable and a lost container can be reconstructed from it.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/havenworks/docvault/internal/logger"
)

// s3API is the slice of the S3 client the archive uses. Narrowed to an
// interface so tests can fake it.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Config holds archive settings.
type Config struct {
	// Client is the configured S3 client.
	Client *s3.Client

	// Bucket is the destination bucket. Must already exist.
	Bucket string

	// KeyPrefix is an optional prefix for all object keys, e.g. "docvault/".
	KeyPrefix string
}

// Archive is a write-only S3 mirror. It implements storage.Archiver and is
// safe for concurrent use.
type Archive struct {
	client    s3API
	bucket    string
	keyPrefix string
}

// New verifies bucket access and returns a ready archive. The bucket is not
// created here.
func New(ctx context.Context, cfg Config) (*Archive, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &Archive{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// Archive stores one document copy. The key mirrors the remote layout:
// <prefix><containerID>/<folder path>/<name>.
func (a *Archive) Archive(ctx context.Context, containerID, path, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := a.objectKey(containerID, path, name)

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", key, err)
	}

	logger.Debug("archived %s (%d bytes) to bucket %s", key, len(data), a.bucket)
	return nil
}

func (a *Archive) objectKey(containerID, path, name string) string {
	parts := []string{containerID}
	if trimmed := strings.Trim(path, "/"); trimmed != "" {
		parts = append(parts, trimmed)
	}
	parts = append(parts, name)
	return a.keyPrefix + strings.Join(parts, "/")
}
