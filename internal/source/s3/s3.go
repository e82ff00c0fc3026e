// Package s3 implements a Source that reads attachments from AWS S3.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/rcastera/mailer/internal/source"
)

const uriScheme = "s3://"

// SourceConfig holds the configuration for creating an S3 Source.
type SourceConfig struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
}

// GetObjectAPI is the interface for the S3 GetObject operation.
// Used for testing with mock implementations.
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
}

// Source reads attachment objects from a bucket. References are either
// plain object keys in the configured bucket or s3://bucket/key URIs.
type Source struct {
	bucket string
	client GetObjectAPI
}

// New creates a Source using the default AWS credential chain, or static
// credentials when both keys are given.
func New(ctx context.Context, cfg SourceConfig) (*Source, error) {
	var opts []func(*awsconfig.LoadOptions) error

	opts = append(opts, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Source{
		bucket: cfg.Bucket,
		client: awss3.NewFromConfig(awsCfg),
	}, nil
}

// NewWithClient creates a Source with a custom client, used for testing.
func NewWithClient(bucket string, client GetObjectAPI) *Source {
	return &Source{
		bucket: bucket,
		client: client,
	}
}

// Open fetches the object named by ref and returns its body.
func (s *Source) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	bucket, key, err := s.locate(ref)
	if err != nil {
		return nil, err
	}

	slog.Debug("fetching attachment from S3",
		"bucket", bucket,
		"key", key,
	)

	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%w: %s", source.ErrNotFound, ref)
		}
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", bucket, key, err)
	}

	return out.Body, nil
}

// Name returns the source name.
func (s *Source) Name() string {
	return "s3"
}

// locate splits ref into bucket and key.
func (s *Source) locate(ref string) (string, string, error) {
	if !strings.HasPrefix(ref, uriScheme) {
		if s.bucket == "" {
			return "", "", fmt.Errorf("no bucket configured for %q", ref)
		}
		return s.bucket, strings.TrimPrefix(ref, "/"), nil
	}

	bucket, key, ok := strings.Cut(strings.TrimPrefix(ref, uriScheme), "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("malformed S3 reference %q", ref)
	}
	return bucket, key, nil
}
