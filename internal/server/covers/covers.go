// Package covers hands out presigned object-storage URLs for book cover
// images. Uploads and downloads go straight between the browser and the S3
// compatible store; the server only keeps the object key.
package covers

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/booklend/internal/server/config"
)

const presignExpiry = 15 * time.Minute

// Store presigns cover uploads and downloads.
type Store interface {
	PresignPut(ctx context.Context, key string) (string, error)
	PresignGet(ctx context.Context, key string) (string, error)
}

// NewKey returns a fresh object key for a cover uploaded at t.
func NewKey(t time.Time) string {
	return fmt.Sprintf("covers/%d/%02d/%02d/%v", t.Year(), int(t.Month()), t.Day(), uuid.New())
}

// seams for tests
var (
	loadDefaultAWSConfig  = awsconfig.LoadDefaultConfig
	newS3ClientFromConfig = s3.NewFromConfig
	newS3PresignClient    = func(c *s3.Client) *s3.PresignClient { return s3.NewPresignClient(c) }
)

// S3Store presigns against one bucket.
type S3Store struct {
	client *s3.PresignClient
	bucket string
}

// NewS3Store builds a presign client from static credentials. A non-empty
// base endpoint (MinIO and friends) switches to path-style addressing.
func NewS3Store(ctx context.Context, cfg *config.Config) (*S3Store, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: newS3PresignClient(client), bucket: cfg.S3Bucket}, nil
}

func (s *S3Store) PresignPut(ctx context.Context, key string) (string, error) {
	req, err := s.client.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", fmt.Errorf("presign put: %w", err)
	}
	return req.URL, nil
}

func (s *S3Store) PresignGet(ctx context.Context, key string) (string, error) {
	req, err := s.client.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}
