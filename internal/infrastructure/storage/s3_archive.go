// Package storage keeps exported backup bundles outside the record store.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/fieldservice/backend/internal/application/backup"
	"github.com/fieldservice/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// ErrArchiveNotFound is returned when no bundle is stored under a key
var ErrArchiveNotFound = errors.New("backup archive not found")

// s3API is the part of the S3 client the archive uses
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3ArchiveStore stores backup bundles as objects in an S3-compatible bucket
// (AWS S3, MinIO, etc.).
type S3ArchiveStore struct {
	client s3API
	bucket string
	prefix string
	logger *zap.Logger
}

// NewS3ArchiveStore creates an archive from configuration. Without static
// credentials the default AWS credential chain is used.
func NewS3ArchiveStore(ctx context.Context, cfg *config.StorageConfig, logger *zap.Logger) (*S3ArchiveStore, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return newS3ArchiveStore(client, cfg.Bucket, cfg.Prefix, logger), nil
}

func newS3ArchiveStore(client s3API, bucket, prefix string, logger *zap.Logger) *S3ArchiveStore {
	return &S3ArchiveStore{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger.Named("s3-archive"),
	}
}

func (s *S3ArchiveStore) objectKey(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return strings.TrimPrefix(path.Join(s.prefix, key), "/"), nil
}

// Put uploads a bundle under key
func (s *S3ArchiveStore) Put(ctx context.Context, key string, data []byte) error {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload backup %s: %w", objectKey, err)
	}
	s.logger.Info("backup uploaded",
		zap.String("bucket", s.bucket),
		zap.String("key", objectKey),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// Get downloads the bundle stored under key
func (s *S3ArchiveStore) Get(ctx context.Context, key string) ([]byte, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%w: %s", ErrArchiveNotFound, objectKey)
		}
		return nil, fmt.Errorf("failed to download backup %s: %w", objectKey, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup %s: %w", objectKey, err)
	}
	return data, nil
}

// validateKey rejects keys that could escape the archive prefix or directory
func validateKey(key string) error {
	if key == "" {
		return errors.New("archive key is required")
	}
	if strings.Contains(key, "..") || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("invalid archive key %q", key)
	}
	return nil
}

var _ backup.ArchiveStore = (*S3ArchiveStore)(nil)
