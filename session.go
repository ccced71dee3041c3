package dirt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"go-dirt/objectstore"
)

// Handler runs one command against the open local replica and reports
// whether it changed anything. The result is ignored when err is non-nil.
type Handler func(ctx context.Context, db *sql.DB) (mutated bool, err error)

// Session runs one command under the lease: acquire, fetch, run, back up
// and store if the command mutated data, release. The lease is released on
// every path once it has been acquired.
type Session struct {
	leases    *LeaseStore
	staleness *StalenessPolicy
	backups   *BackupRotator
	replica   *ReplicaSync
	options   options

	state       State
	transitions []State
	localPath   string
	mutated     bool
	synced      bool
}

// NewSession wires the lease store, staleness policy, backup rotator and
// replica sync for one canonical object and its lock object.
func NewSession(objects objectstore.Store, canonicalKey, lockKey string, opts ...Option) *Session {
	var leases = NewLeaseStore(objects, lockKey, opts...)
	return &Session{
		leases:    leases,
		staleness: NewStalenessPolicy(leases, opts...),
		backups:   NewBackupRotator(objects, canonicalKey, opts...),
		replica:   NewReplicaSync(objects, canonicalKey, opts...),
		options:   applyOptions(opts),
		state:     StateIdle,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Transitions returns every state the last run passed through, in order.
func (s *Session) Transitions() []State {
	return append([]State(nil), s.transitions...)
}

// Mutated reports whether the last handler said it changed data.
func (s *Session) Mutated() bool {
	return s.mutated
}

// Synced reports whether the last run replaced the canonical replica.
func (s *Session) Synced() bool {
	return s.synced
}

// Run executes handler against a freshly fetched local replica.
func (s *Session) Run(ctx context.Context, handler Handler) error {
	return s.withLease(ctx, func(ctx context.Context) error {
		return s.work(ctx, handler)
	})
}

// Seed creates an empty database and uploads it as the canonical replica,
// under the lease. It returns false if a canonical replica already exists.
func (s *Session) Seed(ctx context.Context) (bool, error) {
	var created bool
	var err = s.withLease(ctx, func(ctx context.Context) error {
		var seedErr error
		created, seedErr = s.seed(ctx)
		s.synced = created
		return seedErr
	})
	return created, err
}

func (s *Session) withLease(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	s.transitions = s.transitions[:0]
	s.mutated = false
	s.synced = false
	s.transition(StateIdle)

	if err := s.acquire(ctx); err != nil {
		return err
	}

	defer func() {
		s.transition(StateReleasing)
		// Release even when the caller's context was cancelled mid-session.
		if releaseErr := s.leases.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			s.options.logger.Error("failed to release lease", "key", s.leases.Key(), "error", releaseErr)
			err = errors.Join(err, releaseErr)
		}
		s.transition(StateDone)
	}()

	return fn(ctx)
}

func (s *Session) acquire(ctx context.Context) error {
	s.transition(StateAcquiring)

	var acquired, err = s.tryAcquire(ctx)
	if err != nil {
		s.transition(StateDone)
		return err
	}

	if !acquired && s.options.clearStale {
		cleared, err := s.clearStaleLease(ctx)
		if err != nil {
			s.transition(StateDone)
			return err
		}
		if cleared {
			if acquired, err = s.leases.Acquire(ctx); err != nil {
				s.transition(StateDone)
				return err
			}
		}
	}

	if !acquired {
		return s.deny(ctx)
	}

	s.transition(StateAcquired)
	return nil
}

// tryAcquire applies the retry policy. The default is one attempt.
func (s *Session) tryAcquire(ctx context.Context) (bool, error) {
	for attempt := 1; ; attempt++ {
		var acquired, err = s.leases.Acquire(ctx)
		if err != nil || acquired || attempt >= s.options.acquireAttempts {
			return acquired, err
		}

		s.options.logger.Info("lease held, retrying",
			"key", s.leases.Key(),
			"attempt", attempt,
			"max_attempts", s.options.acquireAttempts,
			"backoff", s.options.acquireBackoff)

		var timer = time.NewTimer(s.options.acquireBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *Session) clearStaleLease(ctx context.Context) (bool, error) {
	var status, err = s.staleness.Inspect(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to inspect lease: %w", err)
	}
	if status.Lease == nil {
		// Released between our attempt and the inspection.
		return true, nil
	}
	if !status.Stale {
		return false, nil
	}

	s.options.logger.Warn("clearing stale lease",
		"key", s.leases.Key(),
		"holder", status.Lease.Holder,
		"age", status.Age.Round(time.Second),
		"ttl", status.TTL)
	return s.leases.Clear(ctx, status.Lease)
}

func (s *Session) deny(ctx context.Context) error {
	s.transition(StateDenied)

	var status, err = s.staleness.Inspect(ctx)
	if err != nil {
		s.options.logger.Warn("failed to inspect held lease", "key", s.leases.Key(), "error", err)
		return &DeniedError{Key: s.leases.Key()}
	}
	return &DeniedError{Key: s.leases.Key(), Status: status}
}

func (s *Session) work(ctx context.Context, handler Handler) error {
	s.transition(StateFetching)

	s.localPath = s.newLocalPath()
	defer s.removeLocalReplica()

	var size, err = s.replica.Fetch(ctx, s.localPath)
	if err != nil {
		return err
	}
	s.options.logger.Debug("local replica ready", "path", s.localPath, "bytes", size)

	db, err := s.options.openDB(s.localPath)
	if err != nil {
		return fmt.Errorf("failed to open local replica: %w", err)
	}
	var closeDB = closeOnce(db)
	defer func() {
		if err := closeDB(); err != nil {
			s.options.logger.Warn("failed to close local replica", "error", err)
		}
	}()

	s.transition(StateRunning)
	mutated, err := invoke(ctx, handler, db)
	if err != nil {
		return fmt.Errorf("command failed: %w", err)
	}
	s.mutated = mutated

	if !mutated {
		s.transition(StateSkipSync)
		return nil
	}

	s.transition(StateSyncing)
	// The file must not be open while it is uploaded.
	if err := closeDB(); err != nil {
		return fmt.Errorf("failed to close local replica: %w", err)
	}

	backupKey, err := s.backups.Backup(ctx)
	if err != nil {
		s.options.logger.Error("backup failed, canonical replica left unchanged", "error", err)
		return err
	}

	stored, err := s.replica.Store(ctx, s.localPath)
	if err != nil {
		return err
	}
	s.synced = true

	s.options.logger.Info("replica synced", "backup", backupKey, "bytes", stored)
	return nil
}

func (s *Session) seed(ctx context.Context) (bool, error) {
	s.localPath = s.newLocalPath()
	defer s.removeLocalReplica()

	db, err := s.options.openDB(s.localPath)
	if err != nil {
		return false, fmt.Errorf("failed to create database: %w", err)
	}
	if err := db.Close(); err != nil {
		return false, fmt.Errorf("failed to close database: %w", err)
	}

	return s.replica.Seed(ctx, s.localPath)
}

func (s *Session) transition(state State) {
	s.state = state
	s.transitions = append(s.transitions, state)
	s.options.logger.Debug("session state", "state", state.String())
}

func (s *Session) newLocalPath() string {
	return filepath.Join(s.options.workDir, fmt.Sprintf("dirt-%s.db", uuid.NewString()))
}

// removeLocalReplica deletes the replica and any SQLite side files.
func (s *Session) removeLocalReplica() {
	if s.localPath == "" {
		return
	}
	for _, suffix := range []string{"", "-journal", "-wal", "-shm"} {
		if err := os.Remove(s.localPath + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.options.logger.Warn("failed to remove local replica", "path", s.localPath+suffix, "error", err)
		}
	}
	s.localPath = ""
}

// invoke runs the handler, turning a panic into an error.
func invoke(ctx context.Context, handler Handler, db *sql.DB) (mutated bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			mutated = false
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return handler(ctx, db)
}

func closeOnce(db *sql.DB) func() error {
	var closed bool
	return func() error {
		if closed {
			return nil
		}
		closed = true
		return db.Close()
	}
}
