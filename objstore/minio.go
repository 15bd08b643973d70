package objstore

import (
	"bytes"
	"context"
	"io"

	"github.com/hupe1980/filesaga/fault"
	"github.com/hupe1980/filesaga/userpath"
	"github.com/minio/minio-go/v7"
)

// MinioClient is the subset of the MinIO API used by MinioStore.
// *minio.Client satisfies it.
type MinioClient interface {
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinioStore stores file objects in a MinIO or other S3-compatible bucket.
type MinioStore struct {
	client MinioClient
	bucket string
	opts   Options
}

// NewMinioStore creates a new MinIO object store.
func NewMinioStore(client MinioClient, bucket string, optFns ...func(*Options)) *MinioStore {
	return &MinioStore{
		client: client,
		bucket: bucket,
		opts:   newOptions(optFns),
	}
}

// Bucket returns the bucket name.
func (s *MinioStore) Bucket() string {
	return s.bucket
}

// CheckPresence reports whether the object of p exists.
func (s *MinioStore) CheckPresence(ctx context.Context, p userpath.Path) (bool, error) {
	release, err := s.opts.Controller.Acquire(ctx)
	if err != nil {
		return false, fault.Server("checking file failed", err)
	}
	defer release()

	_, err = s.client.StatObject(ctx, s.bucket, p.Normalized(), minio.StatObjectOptions{})
	if err != nil {
		if isMinioNotFound(err) {
			return false, nil
		}
		s.opts.Logger.ErrorContext(ctx, "checking object failed", "bucket", s.bucket, "key", p.Normalized(), "error", err)
		return false, fault.Server("checking file failed", err)
	}

	return true, nil
}

// Create writes an empty object for p, replacing any existing one.
func (s *MinioStore) Create(ctx context.Context, p userpath.Path) error {
	release, err := s.opts.Controller.Acquire(ctx)
	if err != nil {
		return fault.Server("creating file failed", err)
	}
	defer release()

	_, err = s.client.PutObject(ctx, s.bucket, p.Normalized(), bytes.NewReader(nil), 0, minio.PutObjectOptions{})
	if err != nil {
		s.opts.Logger.ErrorContext(ctx, "creating object failed", "bucket", s.bucket, "key", p.Normalized(), "error", err)
		return fault.Server("creating file failed", err)
	}

	return nil
}

func isMinioNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return true
	default:
		return false
	}
}
