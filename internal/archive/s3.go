// Package archive writes retired edges to an S3-compatible object store
// before the retention sweep deletes them. Custom endpoints and path-style
// addressing cover MinIO and similar providers.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/contracts"
	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
)

const defaultPrefix = "edges/expired"

// Config holds the object store connection parameters.
type Config struct {
	// Endpoint overrides the S3 endpoint for compatible providers.
	// Leave empty for AWS proper.
	Endpoint       string
	Region         string
	Bucket         string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool

	// Prefix is the object key prefix, defaulting to edges/expired
	Prefix string
}

// S3Archiver uploads edge batches as JSONL objects.
type S3Archiver struct {
	client *s3.Client
	bucket string
	prefix string
	logger zerolog.Logger
}

// New creates the archiver and its underlying S3 client.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("archive: region is required")
	}

	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := normalizeEndpoint(cfg.Endpoint)
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}

	return &S3Archiver{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.Bucket,
		prefix: prefix,
		logger: logger.With().Str("component", "archive").Logger(),
	}, nil
}

// Health verifies bucket connectivity and permissions
func (a *S3Archiver) Health(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if err != nil {
		return fmt.Errorf("archive: health check failed for bucket %s: %w", a.bucket, err)
	}
	return nil
}

// ArchiveEdges writes the batch as one JSONL object, one edge per line, and
// returns the object key.
func (a *S3Archiver) ArchiveEdges(ctx context.Context, edges []models.LiveEdge) (string, error) {
	if len(edges) == 0 {
		return "", nil
	}

	body, err := EncodeJSONL(edges)
	if err != nil {
		return "", fmt.Errorf("archive: encode batch: %w", err)
	}

	key := a.objectKey(time.Now().UTC())
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return "", fmt.Errorf("archive: put object %s: %w", key, err)
	}

	a.logger.Info().Str("object_key", key).Int("edges", len(edges)).Msg("archived edge batch")
	return key, nil
}

// objectKey builds a date-partitioned key: {prefix}/{yyyy}/{mm}/{dd}/{unixnano}.jsonl
func (a *S3Archiver) objectKey(now time.Time) string {
	return fmt.Sprintf("%s/%04d/%02d/%02d/%d.jsonl",
		a.prefix, now.Year(), int(now.Month()), now.Day(), now.UnixNano())
}

// normalizeEndpoint prepends https when the endpoint carries no scheme
func normalizeEndpoint(endpoint string) string {
	parsed, err := url.Parse(endpoint)
	if err == nil && parsed.Scheme != "" {
		return endpoint
	}
	return "https://" + endpoint
}

var _ contracts.Archiver = (*S3Archiver)(nil)
