// Package storage keeps uploaded ticket images in a MinIO bucket. The
// ticket row stores only the object key; read paths hand out presigned URLs.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/campusworks/maintenance-reporter/internal/config"
)

// ObjectStore abstracts image persistence so the pipeline can be tested
// without a live bucket.
type ObjectStore interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
	Remove(ctx context.Context, key string) error
	PresignedURL(ctx context.Context, key string) (string, error)
	Ping(ctx context.Context) error
}

type minioStore struct {
	client     *minio.Client
	bucket     string
	presignTTL time.Duration
}

// NewMinioStore connects to MinIO and ensures the image bucket exists.
func NewMinioStore(ctx context.Context, cfg config.MinioConfig, logger *zap.Logger) (ObjectStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
		logger.Info("created image bucket", zap.String("bucket", cfg.Bucket))
	}

	logger.Info("connected to object storage", zap.String("endpoint", cfg.Endpoint))
	return &minioStore{
		client:     client,
		bucket:     cfg.Bucket,
		presignTTL: cfg.PresignTTL(),
	}, nil
}

func (s *minioStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	key := fmt.Sprintf("tickets/%d_%s", time.Now().UnixNano(), uuid.NewString())
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

func (s *minioStore) Remove(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

func (s *minioStore) PresignedURL(ctx context.Context, key string) (string, error) {
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.presignTTL, url.Values{})
	if err != nil {
		return "", err
	}
	return presigned.String(), nil
}

// Ping verifies the bucket is reachable.
func (s *minioStore) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}
