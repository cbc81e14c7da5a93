package objectstorage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/config"
)

// Location kinds
const LocationKindAWSS3 = "aws_s3"
const LocationKindLocalDir = "local_dir"

// LocationConfig describes where artifacts are stored
type LocationConfig interface {
	Kind() string
	// Gets a fully qualified path to the object stored under key
	// For example, an S3 location would return s3://<bucket>/<key>
	ObjectPath(key string) string
}

type AWSS3LocationConfig struct {
	Bucket string
	Region string
}

func (config *AWSS3LocationConfig) Kind() string {
	return LocationKindAWSS3
}

func (config *AWSS3LocationConfig) ObjectPath(key string) string {
	return "s3://" + path.Join(config.Bucket, key)
}

type LocalDirLocationConfig struct {
	Dir string
}

func (config *LocalDirLocationConfig) Kind() string {
	return LocationKindLocalDir
}

func (config *LocalDirLocationConfig) ObjectPath(key string) string {
	return "file://" + filepath.ToSlash(filepath.Join(config.Dir, filepath.FromSlash(key)))
}

func StoreFactory(ctx context.Context, locationConfig LocationConfig) (ObjectStore, error) {
	switch locationConfig.Kind() {
	case LocationKindAWSS3:
		s3Config := locationConfig.(*AWSS3LocationConfig)
		awsConfig, err := config.LoadDefaultConfig(ctx, config.WithRegion(s3Config.Region))
		if err != nil {
			return nil, err
		}
		return NewAwsS3ObjectStore(ctx, awsConfig), nil
	case LocationKindLocalDir:
		return NewLocalObjectStore(), nil
	default:
		return nil, fmt.Errorf("object store for %s not implemented", locationConfig.Kind())
	}
}
