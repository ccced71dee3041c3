package dirt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go-dirt/objectstore"
)

// ReplicaSync moves the canonical database object to and from a local file.
type ReplicaSync struct {
	objects      objectstore.Store
	canonicalKey string
	options      options
}

// NewReplicaSync creates a ReplicaSync for the canonical object at canonicalKey.
func NewReplicaSync(objects objectstore.Store, canonicalKey string, opts ...Option) *ReplicaSync {
	return &ReplicaSync{
		objects:      objects,
		canonicalKey: canonicalKey,
		options:      applyOptions(opts),
	}
}

// Fetch downloads the canonical replica to localPath. The file is fully
// written and synced to disk before Fetch returns.
func (r *ReplicaSync) Fetch(ctx context.Context, localPath string) (int64, error) {
	var body, _, err = r.objects.Get(ctx, r.canonicalKey)
	if errors.Is(err, objectstore.ErrNotFound) {
		return 0, fmt.Errorf("%w: %q", ErrReplicaNotFound, r.canonicalKey)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to download replica %q: %w", r.canonicalKey, err)
	}
	defer body.Close()

	file, err := os.OpenFile(localPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, fmt.Errorf("failed to create local replica: %w", err)
	}

	var n, copyErr = io.Copy(file, body)
	if copyErr != nil {
		_ = file.Close()
		return n, fmt.Errorf("failed to download replica %q: %w", r.canonicalKey, copyErr)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return n, fmt.Errorf("failed to sync local replica: %w", err)
	}
	if err := file.Close(); err != nil {
		return n, fmt.Errorf("failed to close local replica: %w", err)
	}

	r.options.logger.Debug("replica fetched", "key", r.canonicalKey, "path", localPath, "bytes", n)
	return n, nil
}

// Store uploads localPath as the new canonical replica. Callers only invoke
// it after a successful backup. A failed upload leaves the prior object intact.
func (r *ReplicaSync) Store(ctx context.Context, localPath string) (int64, error) {
	var file, size, err = openForUpload(localPath)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	if _, err := r.objects.Put(ctx, r.canonicalKey, file, size); err != nil {
		return 0, fmt.Errorf("failed to upload replica %q: %w", r.canonicalKey, err)
	}

	r.options.logger.Debug("replica stored", "key", r.canonicalKey, "path", localPath, "bytes", size)
	return size, nil
}

// Seed uploads localPath as the canonical replica only if none exists yet.
// It returns false when a canonical replica is already present.
func (r *ReplicaSync) Seed(ctx context.Context, localPath string) (bool, error) {
	var file, size, err = openForUpload(localPath)
	if err != nil {
		return false, err
	}
	defer file.Close()

	_, err = r.objects.PutIfAbsent(ctx, r.canonicalKey, file, size, nil)
	if errors.Is(err, objectstore.ErrPreconditionFailed) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to seed replica %q: %w", r.canonicalKey, err)
	}

	r.options.logger.Info("replica seeded", "key", r.canonicalKey, "bytes", size)
	return true, nil
}

func openForUpload(localPath string) (*os.File, int64, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open local replica: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, 0, fmt.Errorf("failed to stat local replica: %w", err)
	}
	return file, info.Size(), nil
}
