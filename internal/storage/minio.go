// Package storage stores deal documents (signed NDAs, verification
// evidence) in an S3-compatible object store.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Service wraps a MinIO client for document uploads. A nil Service is safe
// to call; every method reports that storage is not configured.
type Service struct {
	client *minio.Client
	bucket string
}

func New(ctx context.Context, cfg Config) (*Service, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &Service{client: client, bucket: cfg.Bucket}, nil
}

func (s *Service) IsConfigured() bool {
	return s != nil && s.client != nil
}

// PutDocument stores a document under the given key and returns the key.
func (s *Service) PutDocument(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if !s.IsConfigured() {
		return "", fmt.Errorf("document storage not configured")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put document %s: %w", key, err)
	}
	return key, nil
}

// DocumentURL returns a presigned GET URL valid for the given lifetime.
func (s *Service) DocumentURL(ctx context.Context, key string, lifetime time.Duration) (string, error) {
	if !s.IsConfigured() {
		return "", fmt.Errorf("document storage not configured")
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, lifetime, nil)
	if err != nil {
		return "", fmt.Errorf("presign document %s: %w", key, err)
	}
	return u.String(), nil
}

// RemoveDocument deletes a stored document.
func (s *Service) RemoveDocument(ctx context.Context, key string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("document storage not configured")
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove document %s: %w", key, err)
	}
	return nil
}
