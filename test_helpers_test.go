package dirt

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-dirt/objectstore"
	"go-dirt/objectstore/memory"
)

// recordingStore counts calls per operation and key and can fail chosen ones.
type recordingStore struct {
	*memory.Store

	mu        sync.Mutex
	calls     map[string]int
	failures  map[string]error
	afterHead func(key string)
}

func newRecordingStore() *recordingStore {
	return &recordingStore{
		Store:    memory.New(),
		calls:    make(map[string]int),
		failures: make(map[string]error),
	}
}

func (r *recordingStore) failOn(op, key string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[op+" "+key] = err
}

func (r *recordingStore) count(op, key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op+" "+key]
}

// onceAfterHead runs fn right after the first successful Head of key.
func (r *recordingStore) onceAfterHead(key string, fn func()) {
	var once sync.Once
	r.mu.Lock()
	defer r.mu.Unlock()
	r.afterHead = func(k string) {
		if k == key {
			once.Do(fn)
		}
	}
}

func (r *recordingStore) record(op, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[op+" "+key]++
	return r.failures[op+" "+key]
}

func (r *recordingStore) PutIfAbsent(ctx context.Context, key string, body io.Reader, size int64, metadata map[string]string) (objectstore.ObjectInfo, error) {
	if err := r.record("put-if-absent", key); err != nil {
		return objectstore.ObjectInfo{}, err
	}
	return r.Store.PutIfAbsent(ctx, key, body, size, metadata)
}

func (r *recordingStore) Head(ctx context.Context, key string) (objectstore.ObjectInfo, error) {
	if err := r.record("head", key); err != nil {
		return objectstore.ObjectInfo{}, err
	}
	info, err := r.Store.Head(ctx, key)
	r.mu.Lock()
	var hook = r.afterHead
	r.mu.Unlock()
	if err == nil && hook != nil {
		hook(key)
	}
	return info, err
}

func (r *recordingStore) Get(ctx context.Context, key string) (io.ReadCloser, objectstore.ObjectInfo, error) {
	if err := r.record("get", key); err != nil {
		return nil, objectstore.ObjectInfo{}, err
	}
	return r.Store.Get(ctx, key)
}

func (r *recordingStore) Put(ctx context.Context, key string, body io.Reader, size int64) (objectstore.ObjectInfo, error) {
	if err := r.record("put", key); err != nil {
		return objectstore.ObjectInfo{}, err
	}
	return r.Store.Put(ctx, key, body, size)
}

func (r *recordingStore) Copy(ctx context.Context, srcKey, dstKey string) (objectstore.ObjectInfo, error) {
	if err := r.record("copy", srcKey); err != nil {
		return objectstore.ObjectInfo{}, err
	}
	return r.Store.Copy(ctx, srcKey, dstKey)
}

func (r *recordingStore) Delete(ctx context.Context, key string) error {
	if err := r.record("delete", key); err != nil {
		return err
	}
	return r.Store.Delete(ctx, key)
}

func (r *recordingStore) DeleteIfMatch(ctx context.Context, key, etag string) error {
	if err := r.record("delete-if-match", key); err != nil {
		return err
	}
	return r.Store.DeleteIfMatch(ctx, key, etag)
}

// simulateCrash leaves behind a lease created at createdAt, as a session
// that died before releasing would.
func simulateCrash(t *testing.T, objects objectstore.Store, lockKey string, createdAt time.Time) {
	t.Helper()
	var leases = NewLeaseStore(objects, lockKey, WithClock(func() time.Time { return createdAt }))
	acquired, err := leases.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, acquired, "lease should not already exist")
}

// fixedClock returns a clock that can be moved by the test.
func fixedClock(start time.Time) (now func() time.Time, set func(time.Time)) {
	var (
		mu      sync.Mutex
		current = start
	)
	now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
	set = func(t time.Time) {
		mu.Lock()
		defer mu.Unlock()
		current = t
	}
	return now, set
}
