// Package awss3 implements objectstore.Store on Amazon S3 via aws-sdk-go-v2.
package awss3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithy "github.com/aws/smithy-go"

	"go-dirt/objectstore"
)

const contentTypeOctetStream = "application/octet-stream"

// Config controls the behaviour of the AWS backend.
type Config struct {
	Region         string
	Bucket         string
	Endpoint       string // optional, for S3-compatible services
	AccessKey      string // optional; the default credential chain is used when empty
	SecretKey      string
	Insecure       bool
	ForcePathStyle bool
	Logger         *slog.Logger
}

// Store implements objectstore.Store on an s3.Client.
type Store struct {
	client *s3.Client
	cfg    Config
	logger *slog.Logger
}

// New constructs a Store using the provided configuration.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("awss3: bucket is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("awss3: region is required")
	}

	var loadOpts = []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("awss3: load config: %w", err)
	}

	var client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
		// Trailing checksums use aws-chunked uploads that many S3-compatible
		// services reject; only send them when an operation demands it.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			if !strings.Contains(endpoint, "://") {
				var scheme = "https"
				if cfg.Insecure {
					scheme = "http"
				}
				endpoint = scheme + "://" + endpoint
			}
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	var logger = cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{client: client, cfg: cfg, logger: logger}, nil
}

// PutIfAbsent implements objectstore.Store.
func (s *Store) PutIfAbsent(ctx context.Context, key string, body io.Reader, size int64, metadata map[string]string) (objectstore.ObjectInfo, error) {
	out, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentTypeOctetStream),
		Metadata:      metadata,
		IfNoneMatch:   aws.String("*"),
	})
	if err != nil {
		if isPreconditionFailed(err) {
			s.logger.Debug("awss3.put_if_absent.exists", "key", key)
			return objectstore.ObjectInfo{}, objectstore.ErrPreconditionFailed
		}
		return objectstore.ObjectInfo{}, fmt.Errorf("awss3: put if absent %q: %w", key, err)
	}
	return objectstore.ObjectInfo{
		Key:          key,
		Size:         size,
		ETag:         stripETag(aws.ToString(out.ETag)),
		LastModified: time.Now().UTC(),
		Metadata:     objectstore.NormalizeMetadata(metadata),
	}, nil
}

// Head implements objectstore.Store.
func (s *Store) Head(ctx context.Context, key string) (objectstore.ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return objectstore.ObjectInfo{}, objectstore.ErrNotFound
		}
		return objectstore.ObjectInfo{}, fmt.Errorf("awss3: head %q: %w", key, err)
	}
	return objectstore.ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ETag:         stripETag(aws.ToString(out.ETag)),
		LastModified: aws.ToTime(out.LastModified),
		Metadata:     objectstore.NormalizeMetadata(out.Metadata),
	}, nil
}

// Get implements objectstore.Store.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, objectstore.ObjectInfo, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, objectstore.ObjectInfo{}, objectstore.ErrNotFound
		}
		return nil, objectstore.ObjectInfo{}, fmt.Errorf("awss3: get %q: %w", key, err)
	}
	return out.Body, objectstore.ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ETag:         stripETag(aws.ToString(out.ETag)),
		LastModified: aws.ToTime(out.LastModified),
		Metadata:     objectstore.NormalizeMetadata(out.Metadata),
	}, nil
}

// Put implements objectstore.Store.
func (s *Store) Put(ctx context.Context, key string, body io.Reader, size int64) (objectstore.ObjectInfo, error) {
	out, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentTypeOctetStream),
	})
	if err != nil {
		return objectstore.ObjectInfo{}, fmt.Errorf("awss3: put %q: %w", key, err)
	}
	s.logger.Debug("awss3.put.success", "key", key, "size", size)
	return objectstore.ObjectInfo{
		Key:          key,
		Size:         size,
		ETag:         stripETag(aws.ToString(out.ETag)),
		LastModified: time.Now().UTC(),
	}, nil
}

// Copy implements objectstore.Store.
func (s *Store) Copy(ctx context.Context, srcKey, dstKey string) (objectstore.ObjectInfo, error) {
	out, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.cfg.Bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(copySource(s.cfg.Bucket, srcKey)),
	})
	if err != nil {
		if isNotFound(err) {
			return objectstore.ObjectInfo{}, objectstore.ErrNotFound
		}
		return objectstore.ObjectInfo{}, fmt.Errorf("awss3: copy %q to %q: %w", srcKey, dstKey, err)
	}
	var info = objectstore.ObjectInfo{Key: dstKey, LastModified: time.Now().UTC()}
	if out.CopyObjectResult != nil {
		info.ETag = stripETag(aws.ToString(out.CopyObjectResult.ETag))
		info.LastModified = aws.ToTime(out.CopyObjectResult.LastModified)
	}
	return info, nil
}

// Delete implements objectstore.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("awss3: delete %q: %w", key, err)
	}
	return nil
}

// DeleteIfMatch implements objectstore.Store. The ETag is compared on a
// fresh head and sent as If-Match, which services that support conditional
// deletes enforce atomically.
func (s *Store) DeleteIfMatch(ctx context.Context, key, etag string) error {
	stat, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return objectstore.ErrNotFound
		}
		return fmt.Errorf("awss3: head %q: %w", key, err)
	}
	if current := stripETag(aws.ToString(stat.ETag)); current != etag {
		s.logger.Debug("awss3.delete_if_match.mismatch", "key", key, "expected_etag", etag, "current_etag", current)
		return objectstore.ErrPreconditionFailed
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket:  aws.String(s.cfg.Bucket),
		Key:     aws.String(key),
		IfMatch: aws.String(etag),
	})
	if err != nil {
		switch {
		case isPreconditionFailed(err):
			return objectstore.ErrPreconditionFailed
		case isNotFound(err):
			return objectstore.ErrNotFound
		}
		return fmt.Errorf("awss3: delete %q: %w", key, err)
	}
	return nil
}

// copySource builds the x-amz-copy-source value: the bucket, a literal
// slash, then the key with each segment escaped.
func copySource(bucket, key string) string {
	var segments = strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return bucket + "/" + strings.Join(segments, "/")
}

func stripETag(etag string) string {
	return strings.Trim(etag, "\"")
}

func httpStatusCode(err error) (int, bool) {
	if err == nil {
		return 0, false
	}
	var statusErr interface{ HTTPStatusCode() int }
	if errors.As(err, &statusErr) {
		return statusErr.HTTPStatusCode(), true
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode(), true
	}
	return 0, false
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	// A 404 can also mean NoSuchBucket; only a missing key counts.
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() != "" {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
		return false
	}
	if status, ok := httpStatusCode(err); ok {
		return status == http.StatusNotFound
	}
	return false
}

func isPreconditionFailed(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return true
		}
	}
	if status, ok := httpStatusCode(err); ok {
		return status == http.StatusPreconditionFailed
	}
	return false
}
