package dirt

import (
	"context"
	"fmt"
	"time"

	"go-dirt/objectstore"
)

// BackupRotator copies the canonical replica to a day-of-year archive key
// before it gets overwritten. Keys wrap yearly: a backup taken on the same
// day a year later replaces the older one.
type BackupRotator struct {
	objects      objectstore.Store
	canonicalKey string
	options      options
}

// NewBackupRotator creates a rotator for the canonical object at canonicalKey.
func NewBackupRotator(objects objectstore.Store, canonicalKey string, opts ...Option) *BackupRotator {
	return &BackupRotator{
		objects:      objects,
		canonicalKey: canonicalKey,
		options:      applyOptions(opts),
	}
}

// BackupKey returns the archive key used for a backup taken at t.
func BackupKey(canonicalKey string, t time.Time) string {
	return fmt.Sprintf("%s.%d", canonicalKey, t.YearDay())
}

// Backup copies the canonical object to today's archive key and returns that key.
// Any error wraps ErrBackupFailed; callers must not overwrite canonical state after one.
func (b *BackupRotator) Backup(ctx context.Context) (string, error) {
	var key = BackupKey(b.canonicalKey, b.options.now())

	if _, err := b.objects.Copy(ctx, b.canonicalKey, key); err != nil {
		return "", fmt.Errorf("%w: copy %q to %q: %w", ErrBackupFailed, b.canonicalKey, key, err)
	}

	b.options.logger.Info("backup taken", "source", b.canonicalKey, "backup", key)
	return key, nil
}
