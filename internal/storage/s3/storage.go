// Package s3 implements the storage.Backend interface for AWS S3 and
// S3-compatible storage such as MinIO.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/fadedrop/fadedrop/internal/storage"
)

// multipartUploadPartSize is the size for S3 multipart upload parts (5MB minimum).
const multipartUploadPartSize = 5 * 1024 * 1024

// S3Config holds configuration for S3 storage.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Custom endpoint for MinIO or other S3-compatible services
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool // Use path-style addressing (required for MinIO)
}

// S3Storage implements storage.Backend for AWS S3 and S3-compatible storage.
type S3Storage struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
}

// New creates a new S3Storage with the given configuration and verifies
// bucket access.
func New(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket name is required")
	}

	var optFuncs []func(*config.LoadOptions) error

	if cfg.Region != "" {
		optFuncs = append(optFuncs, config.WithRegion(cfg.Region))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		optFuncs = append(optFuncs, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, optFuncs...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.PathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = multipartUploadPartSize
	})

	// Verify bucket access up front so misconfiguration fails at startup.
	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access S3 bucket %q: %w", cfg.Bucket, err)
	}

	slog.Info("S3 storage initialized",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"endpoint", cfg.Endpoint,
		"path_style", cfg.PathStyle,
	)

	return &S3Storage{
		client:   client,
		uploader: uploader,
		bucket:   cfg.Bucket,
	}, nil
}

// validateKey ensures the S3 key doesn't contain path traversal or dangerous characters.
func (s *S3Storage) validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("empty key not allowed")
	}
	if strings.ContainsRune(key, '\x00') {
		return fmt.Errorf("null bytes not allowed in key")
	}
	if strings.Contains(key, "%") {
		return fmt.Errorf("encoded characters not allowed in key")
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("path traversal not allowed: %s", key)
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == "/" {
		return fmt.Errorf("invalid key: %s", key)
	}
	return nil
}

// Store writes data from the reader to S3 under the given key.
// Uses streaming multipart upload to avoid loading whole files into memory.
func (s *S3Storage) Store(ctx context.Context, key string, reader io.Reader, size int64) (string, error) {
	if err := s.validateKey(key); err != nil {
		return "", storage.NewStorageErrorWithMessage("Store", key, err, "key validation failed")
	}

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   reader,
	})
	if err != nil {
		return "", storage.NewStorageError("Store", key, err)
	}

	slog.Debug("file stored in S3", "key", key, "size", size)

	return key, nil
}

// Retrieve returns a reader for the stored file along with its size.
func (s *S3Storage) Retrieve(ctx context.Context, path string) (io.ReadCloser, int64, error) {
	if err := s.validateKey(path); err != nil {
		return nil, 0, storage.NewStorageErrorWithMessage("Retrieve", path, err, "key validation failed")
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, 0, storage.NewStorageError("Retrieve", path, storage.ErrNotFound)
		}
		return nil, 0, storage.NewStorageError("Retrieve", path, err)
	}

	var size int64
	if result.ContentLength != nil {
		size = *result.ContentLength
	}

	return result.Body, size, nil
}

// Delete removes a file from S3. S3 does not error on deleting missing
// objects, which matches the idempotent cleanup contract.
func (s *S3Storage) Delete(ctx context.Context, path string) error {
	if err := s.validateKey(path); err != nil {
		return storage.NewStorageErrorWithMessage("Delete", path, err, "key validation failed")
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return storage.NewStorageError("Delete", path, err)
	}

	slog.Debug("file deleted from S3", "path", path)
	return nil
}

// Exists checks if a file exists in S3.
func (s *S3Storage) Exists(ctx context.Context, path string) (bool, error) {
	if err := s.validateKey(path); err != nil {
		return false, storage.NewStorageErrorWithMessage("Exists", path, err, "key validation failed")
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return false, nil
		}
		return false, storage.NewStorageError("Exists", path, err)
	}

	return true, nil
}
