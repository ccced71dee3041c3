// Package objectstore describes the small slice of object storage that dirt
// needs: conditional create, metadata reads, whole-object transfer, server-side
// copy and delete. Backends live in the awss3, s3compat and memory subpackages.
package objectstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when the requested object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrPreconditionFailed is returned by PutIfAbsent when an object already exists at the key.
	ErrPreconditionFailed = errors.New("object precondition failed")
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
	Metadata     map[string]string // lower-case keys
}

// Store is implemented by every backend.
type Store interface {
	// PutIfAbsent writes body only when no object exists at key.
	// It returns ErrPreconditionFailed when one does.
	PutIfAbsent(ctx context.Context, key string, body io.Reader, size int64, metadata map[string]string) (ObjectInfo, error)

	// Head returns object metadata without the body, or ErrNotFound.
	Head(ctx context.Context, key string) (ObjectInfo, error)

	// Get opens the object body, or returns ErrNotFound. Callers close the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Put replaces the object at key.
	Put(ctx context.Context, key string, body io.Reader, size int64) (ObjectInfo, error)

	// Copy performs a server-side copy. A missing source yields ErrNotFound.
	Copy(ctx context.Context, srcKey, dstKey string) (ObjectInfo, error)

	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error

	// DeleteIfMatch removes the object only while its ETag equals etag.
	// It returns ErrNotFound when the object is gone and
	// ErrPreconditionFailed when another object has replaced it.
	DeleteIfMatch(ctx context.Context, key, etag string) error
}

// NormalizeMetadata lower-cases metadata keys so backends that canonicalize
// header names (X-Amz-Meta-Created-At) and ones that don't agree on lookups.
func NormalizeMetadata(in map[string]string) map[string]string {
	if len(in) == 0 {
		return map[string]string{}
	}
	var out = make(map[string]string, len(in))
	for k, v := range in {
		out[strings.ToLower(k)] = v
	}
	return out
}
