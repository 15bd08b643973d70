package objstore

import (
	"bytes"
	"context"
	"errors"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/hupe1980/filesaga/fault"
	"github.com/hupe1980/filesaga/resource"
	"github.com/hupe1980/filesaga/userpath"
)

// S3Client is the subset of the S3 API used by S3Store. *s3.Client satisfies it.
type S3Client interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Options configures S3Store and MinioStore.
type Options struct {
	// Logger receives failure details. Defaults to a discarding logger.
	Logger *slog.Logger

	// Controller optionally throttles calls. A nil Controller does not limit.
	Controller *resource.Controller
}

func newOptions(optFns []func(*Options)) Options {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return opts
}

// S3Store stores file objects in an S3 bucket.
type S3Store struct {
	client S3Client
	bucket string
	opts   Options
}

// NewS3Store creates a new S3 object store.
func NewS3Store(client S3Client, bucket string, optFns ...func(*Options)) *S3Store {
	return &S3Store{
		client: client,
		bucket: bucket,
		opts:   newOptions(optFns),
	}
}

// Bucket returns the bucket name.
func (s *S3Store) Bucket() string {
	return s.bucket
}

// CheckPresence reports whether the object of p exists.
func (s *S3Store) CheckPresence(ctx context.Context, p userpath.Path) (bool, error) {
	release, err := s.opts.Controller.Acquire(ctx)
	if err != nil {
		return false, fault.Server("checking file failed", err)
	}
	defer release()

	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(p.Normalized()),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		s.opts.Logger.ErrorContext(ctx, "checking object failed", "bucket", s.bucket, "key", p.Normalized(), "error", err)
		return false, fault.Server("checking file failed", err)
	}

	return true, nil
}

// Create writes an empty object for p, replacing any existing one.
func (s *S3Store) Create(ctx context.Context, p userpath.Path) error {
	release, err := s.opts.Controller.Acquire(ctx)
	if err != nil {
		return fault.Server("creating file failed", err)
	}
	defer release()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(p.Normalized()),
		Body:          bytes.NewReader(nil),
		ContentLength: aws.Int64(0),
	})
	if err != nil {
		s.opts.Logger.ErrorContext(ctx, "creating object failed", "bucket", s.bucket, "key", p.Normalized(), "error", err)
		return fault.Server("creating file failed", err)
	}

	return nil
}

// isS3NotFound reports whether err means the object does not exist.
// HeadObject has no body, so a 404 usually surfaces as a bare API error code.
func isS3NotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}

	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}

	return false
}
