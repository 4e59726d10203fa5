package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Object subdirectories used by the photo pipeline.
const (
	DirOriginal   = "original"
	DirNormalized = "normalized"
	DirPreviews   = "previews"
)

// ErrObjectNotFound is returned by Load when no object exists under the name.
var ErrObjectNotFound = errors.New("object not found")

// Storage provides an S3-compatible storage backend using MinIO.
// It stores photos in a single bucket under different subdirectories.
type Storage struct {
	client     *minio.Client
	bucketName string
}

// NewStorage creates a new Storage instance connected to the specified MinIO server.
// If the bucket does not exist, it will be created automatically.
func NewStorage(ctx context.Context, endpoint, accessKey, secretKey, bucketName string, useSSL bool) (*Storage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &Storage{
		client:     client,
		bucketName: bucketName,
	}, nil
}

// ObjectName joins a subdirectory and a file name into an object key.
// Object keys always use forward slashes regardless of the host OS.
func ObjectName(subdir, filename string) string {
	return path.Join(subdir, path.Base(filename))
}

// Save uploads size bytes from src to subdir/filename and returns the object key.
// A negative size streams the object with an unknown length.
func (s *Storage) Save(ctx context.Context, subdir, filename string, src io.Reader, size int64, contentType string) (string, error) {
	objectName := ObjectName(subdir, filename)

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, s.bucketName, objectName, src, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to save file %s: %w", objectName, err)
	}

	return objectName, nil
}

// Load returns a reader for the object stored under objectName.
// A missing object is reported here as ErrObjectNotFound rather than on the
// first read.
func (s *Storage) Load(ctx context.Context, objectName string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to load file %s: %w", objectName, err)
	}

	// GetObject is lazy; Stat issues the request.
	if _, err := obj.Stat(); err != nil {
		obj.Close()

		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, objectName)
		}
		return nil, fmt.Errorf("failed to load file %s: %w", objectName, err)
	}

	return obj, nil
}

// Delete removes the object stored under objectName. Empty names are ignored.
func (s *Storage) Delete(ctx context.Context, objectName string) error {
	if objectName == "" {
		return nil
	}

	if err := s.client.RemoveObject(ctx, s.bucketName, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete file %s: %w", objectName, err)
	}

	return nil
}
