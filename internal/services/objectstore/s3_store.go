// Package objectstore uploads finished reports to S3-compatible storage (Wasabi, MinIO, AWS).
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ticketdigest/internal/common"
	"github.com/ternarybob/ticketdigest/internal/interfaces"
)

// ContentTypePDF is set on every uploaded object
const ContentTypePDF = "application/pdf"

// DefaultUploadTimeout bounds a single PUT attempt
const DefaultUploadTimeout = 60 * time.Second

// PutObjectAPI is the part of the S3 client the store needs
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store implements interfaces.ObjectStore
type S3Store struct {
	client   PutObjectAPI
	bucket   string
	endpoint string
	region   string
	timeout  time.Duration
	retry    common.RetryPolicy
	logger   arbor.ILogger
}

var _ interfaces.ObjectStore = (*S3Store)(nil)

// NewS3Store creates a store backed by an S3 client built from config.
// A custom endpoint switches to path-style addressing.
func NewS3Store(config common.StorageConfig, retry common.RetryPolicy, logger arbor.ILogger) (*S3Store, error) {
	if config.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	options := s3.Options{
		Region:      config.Region,
		Credentials: credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
	}
	if config.Endpoint != "" {
		options.BaseEndpoint = aws.String(config.Endpoint)
		options.UsePathStyle = true
	}

	return NewS3StoreWithClient(s3.New(options), config, retry, logger), nil
}

// NewS3StoreWithClient creates a store around an existing client
func NewS3StoreWithClient(client PutObjectAPI, config common.StorageConfig, retry common.RetryPolicy, logger arbor.ILogger) *S3Store {
	return &S3Store{
		client:   client,
		bucket:   config.Bucket,
		endpoint: strings.TrimRight(config.Endpoint, "/"),
		region:   config.Region,
		timeout:  DefaultUploadTimeout,
		retry:    retry,
		logger:   logger,
	}
}

// Store uploads data under key and returns the object URL. All attempts failing is an error.
func (s *S3Store) Store(ctx context.Context, data []byte, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}

	s.logger.Debug().
		Str("bucket", s.bucket).
		Str("key", key).
		Int("size", len(data)).
		Msg("Uploading object")

	err := common.Retry(ctx, s.retry, s.logger, "s3 put object", func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		_, err := s.client.PutObject(callCtx, &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(int64(len(data))),
			ContentType:   aws.String(ContentTypePDF),
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to bucket %s: %w", key, s.bucket, err)
	}

	objectURL := s.ObjectURL(key)
	s.logger.Info().
		Str("bucket", s.bucket).
		Str("key", key).
		Str("url", objectURL).
		Msg("Uploaded object")
	return objectURL, nil
}

// ObjectURL returns the address of key in the bucket
func (s *S3Store) ObjectURL(key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, escaped)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, escaped)
}
