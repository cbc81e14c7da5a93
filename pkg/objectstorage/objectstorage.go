package objectstorage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrObjectNotFound is returned when the requested object does not exist in the store
var ErrObjectNotFound = errors.New("object not found")

type DownloadOptions struct {
	HasRange   bool
	RangeStart int
	RangeEnd   int
}

type DownloadObjectOption = func(*DownloadOptions)

func WithDownloadRange(start int, end int) DownloadObjectOption {
	return func(opts *DownloadOptions) {
		opts.HasRange = true
		opts.RangeStart = start
		opts.RangeEnd = end
	}
}

func applyDownloadOptions(opts []DownloadObjectOption) DownloadOptions {
	options := DownloadOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// ObjectStore is the interface for reading from an external object storage service such as AWS S3
type ObjectStore interface {
	// Opens the object at path for reading. Callers must close the returned body.
	DownloadObject(ctx context.Context, path string, opts ...DownloadObjectOption) (io.ReadCloser, error)
	// Lists the paths of all objects under the provided prefix path
	ListObjects(ctx context.Context, path string) ([]string, error)
}

// AWS S3 Implementation of ObjectStore
//
// Could be further optimized with https://pkg.go.dev/github.com/aws/aws-sdk-go-v2/feature/s3/manager for large files,
// concurrent downloads, or more optimized copying behavior.

func splitS3Path(path string) (bucket string, key string, err error) {
	if !strings.HasPrefix(path, "s3://") {
		return "", "", fmt.Errorf("path does not contain s3:// protocol prefix: %s", path)
	}
	bucket, key, found := strings.Cut(path[5:], "/")
	if !found || bucket == "" {
		return "", "", fmt.Errorf("error occurred when retrieving bucket and key from: %s", path)
	}
	return bucket, key, nil
}

type awsS3ObjectStore struct {
	s3Client *s3.Client
}

func NewAwsS3ObjectStore(ctx context.Context, cfg aws.Config) ObjectStore {
	return &awsS3ObjectStore{s3Client: s3.NewFromConfig(cfg)}
}

func (store *awsS3ObjectStore) DownloadObject(ctx context.Context, path string, opts ...DownloadObjectOption) (io.ReadCloser, error) {
	s3Bucket, s3Key, err := splitS3Path(path)
	if err != nil {
		return nil, err
	}
	in := s3.GetObjectInput{
		Bucket: &s3Bucket,
		Key:    &s3Key,
	}
	if options := applyDownloadOptions(opts); options.HasRange {
		r := fmt.Sprintf("bytes=%d-%d", options.RangeStart, options.RangeEnd)
		in.Range = &r
	}
	getObjectOutput, err := store.s3Client.GetObject(ctx, &in)
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, path)
		}
		return nil, fmt.Errorf("unable to download object from AWS S3: %w", err)
	}
	return getObjectOutput.Body, nil
}

func (store *awsS3ObjectStore) ListObjects(ctx context.Context, path string) ([]string, error) {
	s3Bucket, s3Key, err := splitS3Path(path)
	if err != nil {
		return nil, err
	}
	paginator := s3.NewListObjectsV2Paginator(store.s3Client, &s3.ListObjectsV2Input{
		Bucket: &s3Bucket,
		Prefix: &s3Key,
	})
	objectPaths := []string{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("unable to list objects in AWS S3: %w", err)
		}
		for _, objMetadata := range page.Contents {
			objectPaths = append(objectPaths, fmt.Sprintf("s3://%s/%s", s3Bucket, aws.ToString(objMetadata.Key)))
		}
	}
	return objectPaths, nil
}
