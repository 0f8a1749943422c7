// Package objstore implements the object-storage collaborator that carries
// the CSV artifact between the two stages. The interface is deliberately
// narrow, put bytes and get bytes, because the artifact is the only thing
// that ever crosses this boundary.
package objstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Store is the artifact store seen by the pipeline drivers.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Config configures the S3-backed store.
type Config struct {
	Bucket string
	Region string

	// AccessKeyID/SecretAccessKey select static credentials; when empty the
	// SDK's default provider chain applies (instance roles, env, etc.).
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// Endpoint optionally points at an S3-compatible service (MinIO,
	// localstack). PathStyle is usually required alongside it.
	Endpoint  string
	PathStyle bool
}

// S3Store implements Store on the AWS SDK v2 S3 client.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store builds the client from Config. The bucket must be named; the
// hosting environment owns its lifecycle.
func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("objstore: bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("objstore: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
	})
	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

// Put writes the artifact bytes under key.
func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return fmt.Errorf("objstore: put s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// Get reads the artifact bytes stored under key.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("objstore: get s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("objstore: read s3://%s/%s: %w", s.bucket, key, err)
	}
	return data, nil
}
