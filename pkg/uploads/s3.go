package uploads

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/dmitrymomot/studykit/pkg/studyauth"
)

// S3Client is the subset of the S3 API the sink needs. It matches the
// aws-sdk-go-v2 client so tests can substitute a mock.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config contains the bucket settings for direct delivery.
type S3Config struct {
	Bucket         string `env:"STUDY_UPLOADS_S3_BUCKET" yaml:"bucket"`
	Region         string `env:"STUDY_UPLOADS_S3_REGION" yaml:"region"`
	AccessKeyID    string `env:"STUDY_UPLOADS_S3_ACCESS_KEY_ID" yaml:"access_key_id"`
	SecretKey      string `env:"STUDY_UPLOADS_S3_SECRET_KEY" yaml:"secret_key"`
	Endpoint       string `env:"STUDY_UPLOADS_S3_ENDPOINT" yaml:"endpoint"`           // for S3-compatible services
	ForcePathStyle bool   `env:"STUDY_UPLOADS_S3_FORCE_PATH_STYLE" yaml:"path_style"` // for MinIO and friends
	KeyPrefix      string `env:"STUDY_UPLOADS_S3_KEY_PREFIX" yaml:"key_prefix"`
}

// S3Sink writes archives straight to a bucket, keyed by upload identifier.
// It serves deployments where the app holds bucket credentials instead of
// relying on pre-signed URLs.
type S3Sink struct {
	client    S3Client
	bucket    string
	keyPrefix string
}

var _ Sink = (*S3Sink)(nil)

// S3SinkOption configures an S3Sink.
type S3SinkOption func(*s3SinkOptions)

type s3SinkOptions struct {
	s3Client S3Client
}

// WithS3Client sets a pre-configured client, useful for testing with mocks.
func WithS3Client(client S3Client) S3SinkOption {
	return func(o *s3SinkOptions) {
		o.s3Client = client
	}
}

// NewS3Sink creates a direct-to-bucket sink.
func NewS3Sink(ctx context.Context, cfg S3Config, opts ...S3SinkOption) (*S3Sink, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, ErrInvalidS3Config
	}

	options := &s3SinkOptions{}
	for _, opt := range opts {
		opt(options)
	}

	client := options.s3Client
	if client == nil {
		awsOptions := []func(*config.LoadOptions) error{
			config.WithRegion(cfg.Region),
		}
		if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
			awsOptions = append(awsOptions,
				config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID,
					cfg.SecretKey,
					"",
				)),
			)
		}

		awsConfig, err := config.LoadDefaultConfig(ctx, awsOptions...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}

		client = s3.NewFromConfig(awsConfig, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			o.UsePathStyle = cfg.ForcePathStyle
		})
	}

	return &S3Sink{client: client, bucket: cfg.Bucket, keyPrefix: cfg.KeyPrefix}, nil
}

func (s *S3Sink) Deliver(ctx context.Context, grant *studyauth.UploadSession, name, contentMD5 string, data []byte) error {
	if grant == nil || grant.ID == "" {
		return ErrInvalidGrant
	}

	key := path.Join(s.keyPrefix, grant.ID, name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(archiveContentType),
		ContentMD5:  aws.String(contentMD5),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return fmt.Errorf("%w: %s", ErrDeliveryRejected, apiErr.ErrorCode())
		}
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}
