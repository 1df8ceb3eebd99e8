// Package s3store implements blob storage for audio recordings on any
// S3-compatible object store.
package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/interviewlens/lens-api/config"
	apperrors "github.com/interviewlens/lens-api/internal/errors"
)

// Store holds the S3 client and bucket configuration.
type Store struct {
	client *s3.Client
	bucket string
	logger *slog.Logger
}

// New builds an S3 client from the storage configuration. Static credentials
// and a custom endpoint are used when configured, otherwise the default
// credential chain applies.
func New(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &Store{
		client: client,
		bucket: cfg.Bucket,
		logger: logger,
	}, nil
}

func s3ErrorIs404(err error) bool {
	var noKeyErr *types.NoSuchKey
	if errors.As(err, &noKeyErr) {
		return true
	}
	var notFoundErr *types.NotFound
	return errors.As(err, &notFoundErr)
}

// Put streams body into the bucket under key.
func (s *Store) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	uploader := manager.NewUploader(s.client)

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("upload %s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// Download fetches the object into a temp file under dir and returns its path.
// The caller owns the file and removes it when done.
func (s *Store) Download(ctx context.Context, key, dir string) (string, error) {
	downloader := manager.NewDownloader(s.client)

	// Keep the original filename suffix for file type detection downstream
	filename := filepath.Base(key)
	f, err := os.CreateTemp(dir, "*-"+filename)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	_, err = downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		if s3ErrorIs404(err) {
			return "", apperrors.NotFoundf("object %s not found", key)
		}
		return "", fmt.Errorf("download %s/%s: %w", s.bucket, key, err)
	}

	// close on success; the bytes are already flushed by the SDK
	_ = f.Close()
	return f.Name(), nil
}

// Move renames an object via copy-then-delete. S3 has no native rename.
func (s *Store) Move(ctx context.Context, oldKey, newKey string) error {
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(s.bucket + "/" + oldKey),
		Key:        aws.String(newKey),
	})
	if err != nil {
		if s3ErrorIs404(err) {
			return apperrors.NotFoundf("object %s not found", oldKey)
		}
		return fmt.Errorf("copy %s to %s: %w", oldKey, newKey, err)
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(oldKey),
	}); err != nil {
		// The copy landed, so the move is effective; losing the stale
		// staging object is recoverable housekeeping.
		if s.logger != nil {
			s.logger.WarnContext(ctx, "delete source object after move failed",
				"key", oldKey,
				"error", err,
			)
		}
	}
	return nil
}

// Delete removes an object. Deleting a missing object is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete %s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// SignedReadURL returns a presigned GET URL valid for ttl.
func (s *Store) SignedReadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	presigner := s3.NewPresignClient(s.client)

	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) {
		o.Expires = ttl
	})
	if err != nil {
		return "", fmt.Errorf("presign %s/%s: %w", s.bucket, key, err)
	}
	return req.URL, nil
}
