// Package minio implements domain.BlobStore on MinIO or any S3-compatible
// object storage.
package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"portfolio/internal/domain"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// presignedURLTTL is the longest expiry S3 allows for a presigned URL.
const presignedURLTTL = 7 * 24 * time.Hour

var (
	ErrBucketCreationFailed = errors.New("failed to create storage bucket")
	ErrUploadFailed         = errors.New("failed to upload file")
	ErrDeleteFailed         = errors.New("failed to delete file")
	ErrURLGenerationFailed  = errors.New("failed to generate object URL")
)

var _ domain.BlobStore = (*Store)(nil)

// Options configures a Store.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL, when set, is the public base address of the bucket and URL
	// returns PublicURL + "/" + path instead of a presigned URL.
	PublicURL string
}

// Store keeps blobs as objects in a single bucket.
type Store struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// New creates a MinIO-backed blob store. It ensures the bucket exists.
func New(ctx context.Context, opts Options) (*Store, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	s := &Store{
		client:    client,
		bucket:    opts.Bucket,
		publicURL: strings.TrimRight(opts.PublicURL, "/"),
	}
	if err := s.ensureBucketExists(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureBucketExists(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("%w: check bucket existence: %v", ErrBucketCreationFailed, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("%w: create bucket: %v", ErrBucketCreationFailed, err)
		}
	}
	return nil
}

// Upload stores r at path.
func (s *Store) Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) (domain.BlobHandle, error) {
	_, err := s.client.PutObject(ctx, s.bucket, path, r, size, minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"Uploaded-At": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return domain.BlobHandle{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return domain.BlobHandle{Path: path}, nil
}

// URL returns the public address of the object, or a presigned GET URL when
// no public base is configured.
func (s *Store) URL(ctx context.Context, h domain.BlobHandle) (string, error) {
	if strings.TrimSpace(h.Path) == "" {
		return "", fmt.Errorf("%w: empty object key", ErrURLGenerationFailed)
	}
	if s.publicURL != "" {
		return publicObjectURL(s.publicURL, h.Path), nil
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, h.Path, presignedURLTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrURLGenerationFailed, err)
	}
	return u.String(), nil
}

// Delete removes the object at path. Removing a missing object succeeds.
func (s *Store) Delete(ctx context.Context, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return domain.ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

// publicObjectURL joins base and the escaped segments of path.
func publicObjectURL(base, path string) string {
	segments := strings.Split(strings.TrimLeft(path, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return base + "/" + strings.Join(segments, "/")
}
