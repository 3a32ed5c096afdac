// Package archiver mirrors a transmitted package's archive bytes to an
// S3-compatible bucket as they're written, for durable post-hoc audit
// (SPEC_FULL.md's supplemented "package audit archiver" feature). It
// has no teacher analogue as a package, but its client construction
// follows pkg/blocks/store/s3/store.go's Config/New/NewFromConfig
// shape and error wrapping exactly, adapted from a block store's
// read/write API to a single fire-and-forget upload per package.
package archiver

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/eclipse-pass/depositsvc/internal/logger"
)

// Config holds configuration for the S3 audit archiver.
type Config struct {
	// Enabled gates whether packages are mirrored at all.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Bucket is the destination S3 bucket name.
	Bucket string `mapstructure:"bucket" validate:"required_if=Enabled true" yaml:"bucket"`

	// Region is the AWS region (optional, uses SDK default if empty).
	Region string `mapstructure:"region" yaml:"region"`

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// KeyPrefix is prepended to every archived object's key.
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`

	// ForcePathStyle forces path-style addressing (required for Localstack/MinIO).
	ForcePathStyle bool `mapstructure:"force_path_style" yaml:"force_path_style"`

	// AccessKeyID and SecretAccessKey, if both set, are used as a
	// static credentials provider instead of the SDK's default chain
	// (environment, shared config, instance role). Left empty, the
	// default chain applies — the expected path for an in-cluster
	// deployment using an instance or pod identity role.
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
}

// Archiver uploads package bytes to S3 as a side channel alongside
// transmission to the repository. It implements pkgstream.ArchiveSink.
type Archiver struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// New constructs an Archiver with an existing S3 client.
func New(client *s3.Client, cfg Config) *Archiver {
	return &Archiver{client: client, bucket: cfg.Bucket, keyPrefix: cfg.KeyPrefix}
}

// NewFromConfig constructs an Archiver by building an S3 client from cfg.
func NewFromConfig(ctx context.Context, cfg Config) (*Archiver, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("archiver: loading AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)
	return New(client, cfg), nil
}

func (a *Archiver) fullKey(key string) string {
	return a.keyPrefix + key
}

// NewWriter returns a WriteCloser that uploads everything written to
// it as a single S3 object under key (prefixed with the configured key
// prefix); pkg/deposit passes the deposit ID as key. The upload runs on its own
// goroutine fed by an io.Pipe; a failed or slow upload is logged, not
// propagated, since the audit mirror is best-effort and must never
// hold up or fail the transmission it shadows.
func (a *Archiver) NewWriter(ctx context.Context, key string) io.WriteCloser {
	pr, pw := io.Pipe()

	go func() {
		_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(a.bucket),
			Key:    aws.String(a.fullKey(key)),
			Body:   pr,
		})
		if err != nil {
			logger.ErrorCtx(ctx, "archiver: audit upload failed", logger.Err(err))
			pr.CloseWithError(err)
			return
		}
		pr.Close()
	}()

	return pw
}
