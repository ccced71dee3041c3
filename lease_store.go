package dirt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-dirt/objectstore"
)

const (
	metaCreatedAt = "created-at"
	metaHolder    = "holder"
)

// LeaseStore owns the single lock object that guards the canonical replica.
type LeaseStore struct {
	objects objectstore.Store
	key     string
	holder  string
	options options
}

// NewLeaseStore creates a LeaseStore for the lock object at key.
func NewLeaseStore(objects objectstore.Store, key string, opts ...Option) *LeaseStore {
	return &LeaseStore{
		objects: objects,
		key:     key,
		holder:  newHolderMarker(),
		options: applyOptions(opts),
	}
}

// Key returns the lock object key.
func (ls *LeaseStore) Key() string {
	return ls.key
}

// Holder returns the marker this store writes when it acquires.
func (ls *LeaseStore) Holder() string {
	return ls.holder
}

// Acquire creates the lock object if none exists.
// It returns false when another session already holds it.
func (ls *LeaseStore) Acquire(ctx context.Context) (bool, error) {
	var (
		createdAt = ls.options.now().Unix()
		metadata  = map[string]string{
			metaCreatedAt: strconv.FormatInt(createdAt, 10),
			metaHolder:    ls.holder,
		}
	)

	_, err := ls.objects.PutIfAbsent(ctx, ls.key, strings.NewReader(ls.holder), int64(len(ls.holder)), metadata)
	if errors.Is(err, objectstore.ErrPreconditionFailed) {
		ls.options.logger.Debug("lease already held", "key", ls.key)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create lease %q: %w", ls.key, err)
	}

	ls.options.logger.Debug("lease acquired", "key", ls.key, "holder", ls.holder, "created_at", createdAt)
	return true, nil
}

// Release deletes the lock object. Releasing an absent lease is not an error.
func (ls *LeaseStore) Release(ctx context.Context) error {
	if err := ls.objects.Delete(ctx, ls.key); err != nil {
		return fmt.Errorf("failed to delete lease %q: %w", ls.key, err)
	}
	ls.options.logger.Debug("lease released", "key", ls.key)
	return nil
}

// Clear deletes the lease only while it is still the one described by
// lease, as returned by ReadMetadata. It returns false, leaving the lock
// object alone, when another session has replaced it since. A lease that
// is already gone counts as cleared.
func (ls *LeaseStore) Clear(ctx context.Context, lease *Lease) (bool, error) {
	var err = ls.objects.DeleteIfMatch(ctx, ls.key, lease.ETag)
	switch {
	case errors.Is(err, objectstore.ErrPreconditionFailed):
		ls.options.logger.Warn("lease changed hands, not clearing", "key", ls.key, "holder", lease.Holder)
		return false, nil
	case errors.Is(err, objectstore.ErrNotFound):
		ls.options.logger.Debug("lease already gone", "key", ls.key)
		return true, nil
	case err != nil:
		return false, fmt.Errorf("failed to clear lease %q: %w", ls.key, err)
	}

	ls.options.logger.Debug("lease cleared", "key", ls.key, "holder", lease.Holder)
	return true, nil
}

// ReadMetadata returns the current lease, or nil if none exists.
func (ls *LeaseStore) ReadMetadata(ctx context.Context) (*Lease, error) {
	info, err := ls.objects.Head(ctx, ls.key)
	if errors.Is(err, objectstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read lease %q: %w", ls.key, err)
	}

	var raw, ok = info.Metadata[metaCreatedAt]
	if !ok {
		return nil, fmt.Errorf("lease %q has no %s metadata", ls.key, metaCreatedAt)
	}
	epoch, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("lease %q has malformed %s %q: %w", ls.key, metaCreatedAt, raw, err)
	}

	return &Lease{
		Key:       ls.key,
		Holder:    info.Metadata[metaHolder],
		CreatedAt: time.Unix(epoch, 0),
		ETag:      info.ETag,
	}, nil
}

// newHolderMarker identifies this process in the lock object.
func newHolderMarker() string {
	var host, err = os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s/%d/%s", host, os.Getpid(), uuid.NewString())
}
