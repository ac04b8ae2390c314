// Package storage uploads request photos to an S3-compatible object
// store and hands back public URLs.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
)

// S3Store writes objects into a single bucket. Construct with NewS3Store.
type S3Store struct {
	client  *minio.Client
	bucket  string
	baseURL string

	ensureOnce sync.Once
	ensureErr  error
}

// NewS3Store constructs a store for the given bucket. baseURL is the
// public root objects are served from (e.g. "https://cdn.example.com");
// the returned upload URLs are baseURL/bucket/key.
func NewS3Store(client *minio.Client, bucket, baseURL string) *S3Store {
	return &S3Store{
		client:  client,
		bucket:  strings.TrimSpace(bucket),
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}
}

// EnsureBucket creates the bucket if it does not exist yet. Safe to call
// on every upload; the check runs once per process.
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("storage.S3Store: client is nil")
	}
	if s.bucket == "" {
		return fmt.Errorf("storage.S3Store: bucket is empty")
	}

	s.ensureOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.ensureErr = err
			return
		}
		if exists {
			return
		}
		s.ensureErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	})

	if s.ensureErr != nil {
		return fmt.Errorf("storage.S3Store: ensure bucket %q: %w", s.bucket, s.ensureErr)
	}
	return nil
}

// Upload stores data under key and returns the public URL.
func (s *S3Store) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if key == "" || len(data) == 0 {
		return "", fmt.Errorf("storage.S3Store.Upload: empty key or body")
	}
	if err := s.EnsureBucket(ctx); err != nil {
		return "", err
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("storage.S3Store.Upload: put object: %w", err)
	}

	return fmt.Sprintf("%s/%s/%s", s.baseURL, s.bucket, key), nil
}
