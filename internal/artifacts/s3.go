package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrObjectNotFound is returned when a requested artifact does not exist.
var ErrObjectNotFound = errors.New("artifacts: object not found")

// Bucket stores artifacts in an S3-compatible bucket under a key prefix.
type Bucket struct {
	s3Client   *s3.Client
	bucketName string
	prefix     string
}

// BucketConfig holds the configuration for creating a Bucket.
type BucketConfig struct {
	// Endpoint is the S3 endpoint URL. Leave empty to use default AWS S3.
	Endpoint string
	// Region is the AWS region (e.g., "us-east-1").
	Region string
	// AccessKeyID and SecretAccessKey are optional; without them the default
	// AWS credential chain applies.
	AccessKeyID     string
	SecretAccessKey string
	// BucketName is the bucket screenshots are mirrored to.
	BucketName string
	// Prefix is prepended to every key, e.g. "screenshots".
	Prefix string
	// UsePathStyle enables path-style addressing (MinIO, gofakes3).
	UsePathStyle bool
}

// NewBucket creates a Bucket with the given configuration.
func NewBucket(ctx context.Context, cfg BucketConfig) (*Bucket, error) {
	var opts []func(*config.LoadOptions) error

	opts = append(opts, config.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	sdkConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewBucketFromS3Client(s3Client, cfg.BucketName, cfg.Prefix), nil
}

// NewBucketFromS3Client creates a Bucket from an existing S3 client.
func NewBucketFromS3Client(s3Client *s3.Client, bucketName, prefix string) *Bucket {
	return &Bucket{
		s3Client:   s3Client,
		bucketName: bucketName,
		prefix:     strings.Trim(prefix, "/"),
	}
}

// Key returns the object key for an artifact name.
func (b *Bucket) Key(name string) string {
	if b.prefix == "" {
		return name
	}
	return path.Join(b.prefix, name)
}

// URI returns the s3:// location of an artifact name.
func (b *Bucket) URI(name string) string {
	return "s3://" + b.bucketName + "/" + b.Key(name)
}

// Put stores content under name with the given content type.
func (b *Bucket) Put(ctx context.Context, name string, content []byte, contentType string) error {
	key := b.Key(name)
	_, err := b.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("artifacts: failed to put object %q: %w", key, err)
	}
	return nil
}

// Get retrieves the artifact stored under name.
// Returns ErrObjectNotFound if it does not exist.
func (b *Bucket) Get(ctx context.Context, name string) ([]byte, error) {
	key := b.Key(name)
	result, err := b.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrObjectNotFound
		}
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("artifacts: failed to get object %q: %w", key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("artifacts: failed to read object body %q: %w", key, err)
	}
	return data, nil
}

// BucketName returns the configured bucket name.
func (b *Bucket) BucketName() string {
	return b.bucketName
}
