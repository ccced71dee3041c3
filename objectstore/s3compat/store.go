// Package s3compat implements objectstore.Store for S3-compatible endpoints
// (MinIO, Ceph RGW, R2, ...) using minio-go.
package s3compat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"go-dirt/objectstore"
)

const contentTypeOctetStream = "application/octet-stream"

// Config controls the behaviour of the s3compat backend.
type Config struct {
	Endpoint       string
	Region         string
	Bucket         string
	AccessKey      string
	SecretKey      string
	Insecure       bool
	ForcePathStyle bool
	Transport      http.RoundTripper
	Logger         *slog.Logger
}

// Store implements objectstore.Store on a minio client.
type Store struct {
	client *minio.Client
	cfg    Config
	logger *slog.Logger
}

// New constructs a Store using the provided configuration.
func New(cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3compat: bucket is required")
	}
	var endpoint = strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		if cfg.Region != "" {
			endpoint = fmt.Sprintf("s3.%s.amazonaws.com", cfg.Region)
		} else {
			endpoint = "s3.amazonaws.com"
		}
	}
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")

	var creds *credentials.Credentials
	if cfg.AccessKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	} else {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.EnvMinio{},
			&credentials.FileAWSCredentials{},
			&credentials.IAM{},
		})
	}

	var options = &minio.Options{
		Creds:     creds,
		Secure:    !cfg.Insecure,
		Region:    cfg.Region,
		Transport: cfg.Transport,
	}
	if cfg.ForcePathStyle {
		options.BucketLookup = minio.BucketLookupPath
	}

	client, err := minio.New(endpoint, options)
	if err != nil {
		return nil, fmt.Errorf("s3compat: create client: %w", err)
	}

	var logger = cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{client: client, cfg: cfg, logger: logger}, nil
}

// PutIfAbsent implements objectstore.Store.
func (s *Store) PutIfAbsent(ctx context.Context, key string, body io.Reader, size int64, metadata map[string]string) (objectstore.ObjectInfo, error) {
	var opts = minio.PutObjectOptions{
		ContentType:  contentTypeOctetStream,
		UserMetadata: metadata,
	}
	opts.SetMatchETagExcept("*")

	info, err := s.client.PutObject(ctx, s.cfg.Bucket, key, body, size, opts)
	if err != nil {
		if isPreconditionFailed(err) {
			s.logger.Debug("s3compat.put_if_absent.exists", "key", key)
			return objectstore.ObjectInfo{}, objectstore.ErrPreconditionFailed
		}
		return objectstore.ObjectInfo{}, fmt.Errorf("s3compat: put if absent %q: %w", key, err)
	}
	return objectstore.ObjectInfo{
		Key:          key,
		Size:         info.Size,
		ETag:         stripETag(info.ETag),
		LastModified: time.Now().UTC(),
		Metadata:     objectstore.NormalizeMetadata(metadata),
	}, nil
}

// Head implements objectstore.Store.
func (s *Store) Head(ctx context.Context, key string) (objectstore.ObjectInfo, error) {
	stat, err := s.client.StatObject(ctx, s.cfg.Bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return objectstore.ObjectInfo{}, objectstore.ErrNotFound
		}
		return objectstore.ObjectInfo{}, fmt.Errorf("s3compat: stat %q: %w", key, err)
	}
	return toInfo(key, stat), nil
}

// Get implements objectstore.Store.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, objectstore.ObjectInfo, error) {
	obj, err := s.client.GetObject(ctx, s.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, objectstore.ObjectInfo{}, fmt.Errorf("s3compat: get %q: %w", key, err)
	}
	// GetObject is lazy; Stat surfaces a missing key before any bytes are read.
	stat, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if isNotFound(err) {
			return nil, objectstore.ObjectInfo{}, objectstore.ErrNotFound
		}
		return nil, objectstore.ObjectInfo{}, fmt.Errorf("s3compat: stat %q: %w", key, err)
	}
	return obj, toInfo(key, stat), nil
}

// Put implements objectstore.Store.
func (s *Store) Put(ctx context.Context, key string, body io.Reader, size int64) (objectstore.ObjectInfo, error) {
	info, err := s.client.PutObject(ctx, s.cfg.Bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentTypeOctetStream,
	})
	if err != nil {
		return objectstore.ObjectInfo{}, fmt.Errorf("s3compat: put %q: %w", key, err)
	}
	s.logger.Debug("s3compat.put.success", "key", key, "size", info.Size)
	return objectstore.ObjectInfo{
		Key:          key,
		Size:         info.Size,
		ETag:         stripETag(info.ETag),
		LastModified: time.Now().UTC(),
	}, nil
}

// Copy implements objectstore.Store.
func (s *Store) Copy(ctx context.Context, srcKey, dstKey string) (objectstore.ObjectInfo, error) {
	var (
		src = minio.CopySrcOptions{Bucket: s.cfg.Bucket, Object: srcKey}
		dst = minio.CopyDestOptions{Bucket: s.cfg.Bucket, Object: dstKey}
	)
	info, err := s.client.CopyObject(ctx, dst, src)
	if err != nil {
		if isNotFound(err) {
			return objectstore.ObjectInfo{}, objectstore.ErrNotFound
		}
		return objectstore.ObjectInfo{}, fmt.Errorf("s3compat: copy %q to %q: %w", srcKey, dstKey, err)
	}
	return objectstore.ObjectInfo{
		Key:          dstKey,
		Size:         info.Size,
		ETag:         stripETag(info.ETag),
		LastModified: info.LastModified,
	}, nil
}

// Delete implements objectstore.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.cfg.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("s3compat: delete %q: %w", key, err)
	}
	return nil
}

// DeleteIfMatch implements objectstore.Store. minio-go has no conditional
// delete, so the ETag is compared on a fresh stat right before removal.
func (s *Store) DeleteIfMatch(ctx context.Context, key, etag string) error {
	stat, err := s.client.StatObject(ctx, s.cfg.Bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return objectstore.ErrNotFound
		}
		return fmt.Errorf("s3compat: stat %q: %w", key, err)
	}
	if current := stripETag(stat.ETag); current != etag {
		s.logger.Debug("s3compat.delete_if_match.mismatch", "key", key, "expected_etag", etag, "current_etag", current)
		return objectstore.ErrPreconditionFailed
	}
	if err := s.client.RemoveObject(ctx, s.cfg.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if isNotFound(err) {
			return objectstore.ErrNotFound
		}
		return fmt.Errorf("s3compat: delete %q: %w", key, err)
	}
	return nil
}

func toInfo(key string, stat minio.ObjectInfo) objectstore.ObjectInfo {
	return objectstore.ObjectInfo{
		Key:          key,
		Size:         stat.Size,
		ETag:         stripETag(stat.ETag),
		LastModified: stat.LastModified,
		Metadata:     objectstore.NormalizeMetadata(stat.UserMetadata),
	}
}

func stripETag(etag string) string {
	return strings.Trim(etag, "\"")
}

func isNotFound(err error) bool {
	var errResp = minio.ErrorResponse{}
	if errors.As(err, &errResp) {
		return errResp.StatusCode == http.StatusNotFound
	}
	return false
}

func isPreconditionFailed(err error) bool {
	var errResp = minio.ErrorResponse{}
	if !errors.As(err, &errResp) {
		return false
	}
	if errResp.StatusCode == http.StatusPreconditionFailed {
		return true
	}
	if errResp.StatusCode == http.StatusConflict {
		switch errResp.Code {
		case "ConditionalRequestConflict", "OperationAborted":
			return true
		}
	}
	return false
}
