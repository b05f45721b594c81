package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// S3Options configures an S3-compatible bucket (AWS S3, Cloudflare R2, MinIO).
type S3Options struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	PublicURL       string
}

// S3Bucket stores objects in an S3-compatible bucket and serves them from PublicURL.
type S3Bucket struct {
	client    *s3.Client
	bucket    string
	publicURL string
	host      string
	logger    *zap.Logger
}

// NewS3Bucket builds the client from static credentials.
func NewS3Bucket(ctx context.Context, opts S3Options, logger *zap.Logger) (*S3Bucket, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, errors.New("s3 bucket name is required")
	}
	if strings.TrimSpace(opts.PublicURL) == "" {
		return nil, errors.New("s3 public url is required")
	}
	publicURL, err := url.Parse(strings.TrimRight(opts.PublicURL, "/"))
	if err != nil || publicURL.Host == "" {
		return nil, fmt.Errorf("invalid s3 public url %q", opts.PublicURL)
	}

	region := opts.Region
	if region == "" {
		region = "auto"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID,
			opts.SecretAccessKey,
			"",
		)),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(opts.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	if logger == nil {
		logger = zap.NewNop()
	}

	return &S3Bucket{
		client:    client,
		bucket:    opts.Bucket,
		publicURL: publicURL.String(),
		host:      publicURL.Host,
		logger:    logger.Named("s3"),
	}, nil
}

// Put uploads body with PutObject. Non-seekable bodies are buffered first so the SDK can
// sign the payload.
func (s *S3Bucket) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string, progress ProgressFunc) (string, error) {
	seeker, ok := body.(io.ReadSeeker)
	if !ok {
		buf, err := io.ReadAll(body)
		if err != nil {
			return "", fmt.Errorf("failed to read file content: %w", err)
		}
		seeker = bytes.NewReader(buf)
		size = int64(len(buf))
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          newProgressReader(seeker, size, progress),
		ContentLength: aws.Int64(size),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		s.logger.Warn("put object failed", zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	s.logger.Debug("put object", zap.String("key", key), zap.Int64("size", size))
	return s.publicURL + "/" + escapeKey(key), nil
}

// Delete removes key. A missing object is reported as ErrNotFound.
func (s *S3Bucket) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Owns reports whether publicURL contains the bucket's public host.
func (s *S3Bucket) Owns(publicURL string) bool {
	return s.host != "" && strings.Contains(publicURL, s.host)
}

// KeyFromURL strips the public base URL; when the URL has a different shape it falls back
// to searching for a known key prefix.
func (s *S3Bucket) KeyFromURL(publicURL string) (string, bool) {
	if rest, ok := strings.CutPrefix(publicURL, s.publicURL+"/"); ok {
		if i := strings.IndexAny(rest, "?#"); i >= 0 {
			rest = rest[:i]
		}
		if key, err := url.PathUnescape(rest); err == nil && key != "" {
			return key, true
		}
	}
	return keyFromPath(publicURL)
}
