package storage

import (
	"context"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// s3API is the subset of the S3 client used by AWSStorage
type s3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// AWSStorage implements Source using the AWS SDK. It also works against
// S3-compatible endpoints such as R2 or MinIO.
type AWSStorage struct {
	client s3API
	config StorageConfig
	logger *zap.Logger
}

// NewAWSStorage creates a new AWS storage instance
func NewAWSStorage(storageConfig StorageConfig, logger *zap.Logger) (*AWSStorage, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(storageConfig.AWSRegion),
	}
	if storageConfig.AWSProfile != "" {
		opts = append(opts, config.WithSharedConfigProfile(storageConfig.AWSProfile))
	}

	awsConfig, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, NewStorageError("aws_config", "", StorageBackendAWS, err)
	}

	s3Options := []func(*s3.Options){}
	if storageConfig.AWSEndpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(storageConfig.AWSEndpoint)
			o.UsePathStyle = true // Required for custom endpoints
		})
	}

	logger.Info("AWS storage initialized",
		zap.String("region", storageConfig.AWSRegion),
		zap.String("profile", storageConfig.AWSProfile),
		zap.String("endpoint", storageConfig.AWSEndpoint))

	return newAWSStorageWithClient(s3.NewFromConfig(awsConfig, s3Options...), storageConfig, logger), nil
}

func newAWSStorageWithClient(client s3API, storageConfig StorageConfig, logger *zap.Logger) *AWSStorage {
	if storageConfig.Timeout <= 0 {
		storageConfig.Timeout = DefaultListTimeout
	}
	return &AWSStorage{
		client: client,
		config: storageConfig,
		logger: logger,
	}
}

// DefaultListTimeout bounds a full paginated S3 listing
const DefaultListTimeout = 5 * time.Minute

// ListObjects lists objects under the configured directory, largest first.
// The whole listing is bounded by the configured Timeout.
func (a *AWSStorage) ListObjects(ctx context.Context, req ListRequest) ([]Object, error) {
	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	bucket := req.Bucket
	if bucket == "" {
		bucket = a.config.Bucket
	}
	prefix := a.keyFor(req.Directory)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}

	a.logger.Debug("Listing S3 objects",
		zap.String("bucket", bucket),
		zap.String("prefix", prefix),
		zap.Int("limit", req.Limit))

	var objects []Object
	paginator := s3.NewListObjectsV2Paginator(a.client, input)

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, NewStorageError("list_objects", bucket+"/"+prefix, StorageBackendAWS, err)
		}

		for _, item := range page.Contents {
			path := strings.TrimPrefix(aws.ToString(item.Key), prefix)

			// Skip directory markers
			if path == "" || strings.HasSuffix(path, "/") {
				continue
			}
			if !matchesExtension(path, req.Extensions) {
				continue
			}

			obj := Object{
				Path: path,
				Size: aws.ToInt64(item.Size),
			}
			if item.LastModified != nil {
				obj.Modified = *item.LastModified
			}
			if item.ETag != nil {
				obj.ETag = strings.Trim(*item.ETag, `"`)
			}
			objects = append(objects, obj)
		}

		if req.Limit > 0 && len(objects) >= req.Limit {
			objects = objects[:req.Limit]
			break
		}
	}

	sort.SliceStable(objects, func(i, j int) bool {
		return objects[i].Size > objects[j].Size
	})

	a.logger.Info("Listed S3 objects",
		zap.Int("count", len(objects)),
		zap.String("bucket", bucket))

	return objects, nil
}

// OpenObject streams an object body from S3
func (a *AWSStorage) OpenObject(ctx context.Context, objectPath string) (io.ReadCloser, error) {
	key := a.keyFor(objectPath)

	a.logger.Debug("Opening S3 object",
		zap.String("bucket", a.config.Bucket),
		zap.String("key", key))

	output, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, NewStorageError("open_object", objectPath, StorageBackendAWS, err)
	}
	return output.Body, nil
}

// Close closes any resources used by the storage implementation
func (a *AWSStorage) Close() error {
	a.logger.Debug("Closing AWS storage")
	return nil
}

func (a *AWSStorage) keyFor(path string) string {
	path = strings.TrimPrefix(path, "/")
	if a.config.Directory == "" {
		return path
	}
	dir := strings.TrimSuffix(a.config.Directory, "/")
	if path == "" {
		return dir
	}
	return dir + "/" + path
}
