// Package memory is an in-process objectstore.Store with real compare-and-swap
// semantics. It backs the test suites and `--backend memory` dry runs.
package memory

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"go-dirt/objectstore"
)

type object struct {
	data         []byte
	etag         string
	lastModified time.Time
	metadata     map[string]string
}

// Store keeps objects in a map guarded by a mutex.
type Store struct {
	mu      sync.Mutex
	objects map[string]*object
	now     func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		objects: make(map[string]*object),
		now:     time.Now,
	}
}

// PutIfAbsent implements objectstore.Store.
func (s *Store) PutIfAbsent(ctx context.Context, key string, body io.Reader, size int64, metadata map[string]string) (objectstore.ObjectInfo, error) {
	var data, err = readBody(body)
	if err != nil {
		return objectstore.ObjectInfo{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objects[key]; exists {
		return objectstore.ObjectInfo{}, objectstore.ErrPreconditionFailed
	}
	return s.write(key, data, metadata), nil
}

// Head implements objectstore.Store.
func (s *Store) Head(ctx context.Context, key string) (objectstore.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var obj, exists = s.objects[key]
	if !exists {
		return objectstore.ObjectInfo{}, objectstore.ErrNotFound
	}
	return info(key, obj), nil
}

// Get implements objectstore.Store.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, objectstore.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var obj, exists = s.objects[key]
	if !exists {
		return nil, objectstore.ObjectInfo{}, objectstore.ErrNotFound
	}
	var data = append([]byte(nil), obj.data...)
	return io.NopCloser(bytes.NewReader(data)), info(key, obj), nil
}

// Put implements objectstore.Store.
func (s *Store) Put(ctx context.Context, key string, body io.Reader, size int64) (objectstore.ObjectInfo, error) {
	var data, err = readBody(body)
	if err != nil {
		return objectstore.ObjectInfo{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.write(key, data, nil), nil
}

// Copy implements objectstore.Store.
func (s *Store) Copy(ctx context.Context, srcKey, dstKey string) (objectstore.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var src, exists = s.objects[srcKey]
	if !exists {
		return objectstore.ObjectInfo{}, objectstore.ErrNotFound
	}
	return s.write(dstKey, append([]byte(nil), src.data...), src.metadata), nil
}

// Delete implements objectstore.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, key)
	return nil
}

// DeleteIfMatch implements objectstore.Store.
func (s *Store) DeleteIfMatch(ctx context.Context, key, etag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var obj, exists = s.objects[key]
	if !exists {
		return objectstore.ErrNotFound
	}
	if obj.etag != etag {
		return objectstore.ErrPreconditionFailed
	}
	delete(s.objects, key)
	return nil
}

// Keys lists stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys = make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetClock overrides the clock used for LastModified.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) write(key string, data []byte, metadata map[string]string) objectstore.ObjectInfo {
	var sum = md5.Sum(data)
	var obj = &object{
		data:         data,
		etag:         hex.EncodeToString(sum[:]),
		lastModified: s.now().UTC(),
		metadata:     objectstore.NormalizeMetadata(metadata),
	}
	s.objects[key] = obj
	return info(key, obj)
}

func info(key string, obj *object) objectstore.ObjectInfo {
	var meta = make(map[string]string, len(obj.metadata))
	for k, v := range obj.metadata {
		meta[k] = v
	}
	return objectstore.ObjectInfo{
		Key:          key,
		Size:         int64(len(obj.data)),
		ETag:         obj.etag,
		LastModified: obj.lastModified,
		Metadata:     meta,
	}
}

func readBody(body io.Reader) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	var data, err = io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}
	return data, nil
}
