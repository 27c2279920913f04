// Package imagestore keeps note image payloads in S3-compatible object
// storage. Rows in note_images reference objects here by key; the hierarchy
// and cascade packages delete objects after their transactions commit.
package imagestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ManagedKeyPrefix marks object keys this store owns. Externally hosted image
// paths never carry it and are never deleted by us.
const ManagedKeyPrefix = "images/"

// ErrObjectNotFound is returned when a requested object does not exist.
var ErrObjectNotFound = errors.New("imagestore: object not found")

// Store wraps an S3 client with bucket and URL configuration.
type Store struct {
	s3Client  *s3.Client
	bucket    string
	publicURL string
}

// Config holds the settings for creating a Store.
type Config struct {
	// Endpoint is the S3 endpoint URL. Leave empty for default AWS S3.
	Endpoint string
	// Region is the AWS region ("auto" for Tigris-style services).
	Region string
	// AccessKeyID and SecretAccessKey are the S3 credentials.
	AccessKeyID     string
	SecretAccessKey string
	// Bucket is the bucket holding image objects.
	Bucket string
	// PublicURL is the base URL for reading objects back.
	PublicURL string
	// UsePathStyle enables path-style addressing (required for gofakes3).
	UsePathStyle bool
}

// New creates a Store with the given configuration.
func New(ctx context.Context, cfg Config) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	sdkConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("imagestore: load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewFromS3Client(s3Client, cfg.Bucket, cfg.PublicURL), nil
}

// NewFromS3Client creates a Store from an existing S3 client. Used by the
// gofakes3-backed test helper.
func NewFromS3Client(s3Client *s3.Client, bucket, publicURL string) *Store {
	return &Store{
		s3Client:  s3Client,
		bucket:    bucket,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}
}

// Put stores an image payload under key.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("imagestore: put object %q: %w", key, err)
	}
	return nil
}

// Get retrieves the payload stored under key. Returns ErrObjectNotFound when
// the key does not exist.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
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
		return nil, fmt.Errorf("imagestore: get object %q: %w", key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("imagestore: read object body %q: %w", key, err)
	}
	return data, nil
}

// Delete removes the object at key. Deleting a missing object is not an
// error.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("imagestore: delete object %q: %w", key, err)
	}
	return nil
}

// ManagesPath reports whether path is an object key owned by this store.
func (s *Store) ManagesPath(path string) bool {
	return strings.HasPrefix(path, ManagedKeyPrefix)
}

// ObjectURL returns the public URL for key.
func (s *Store) ObjectURL(key string) string {
	return s.publicURL + "/" + strings.TrimPrefix(key, "/")
}
