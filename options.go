package dirt

import (
	"database/sql"
	"io"
	"log/slog"
	"os"
	"time"

	"go-dirt/database"
)

// options configures the lease-guarded session (internal only).
type options struct {
	leaseTTL        time.Duration
	acquireAttempts int
	acquireBackoff  time.Duration
	clearStale      bool
	workDir         string
	now             func() time.Time
	openDB          func(path string) (*sql.DB, error)
	logger          *slog.Logger
}

// defaultOptions returns sensible defaults.
func defaultOptions() options {
	return options{
		leaseTTL:        2 * time.Minute,
		acquireAttempts: 1,
		acquireBackoff:  time.Second,
		workDir:         os.TempDir(),
		now:             time.Now,
		openDB:          database.Open,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func applyOptions(opts []Option) options {
	var o = defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option is a functional option for configuring the session components.
type Option func(*options)

// WithLeaseTTL sets how old a lease may get before it is reported stale.
func WithLeaseTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.leaseTTL = ttl
	}
}

// WithAcquireRetry makes acquisition try up to attempts times, sleeping
// backoff between tries. The default is a single attempt.
func WithAcquireRetry(attempts int, backoff time.Duration) Option {
	return func(o *options) {
		if attempts < 1 {
			attempts = 1
		}
		o.acquireAttempts = attempts
		o.acquireBackoff = backoff
	}
}

// WithClearStale lets a session delete a lease that the staleness policy
// reports as abandoned and try once more. Only set this on explicit
// operator request.
func WithClearStale(clear bool) Option {
	return func(o *options) {
		o.clearStale = clear
	}
}

// WithWorkDir sets the directory that holds local replicas.
// DEFAULT: os.TempDir()
func WithWorkDir(dir string) Option {
	return func(o *options) {
		if dir != "" {
			o.workDir = dir
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithDatabaseOpener overrides how the local replica is opened.
// DEFAULT: database.Open
func WithDatabaseOpener(open func(path string) (*sql.DB, error)) Option {
	return func(o *options) {
		if open != nil {
			o.openDB = open
		}
	}
}

// WithLogger sets the logger.
// If the logger is nil, a no-op logger is used.
// DEFAULT: A no-op logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger == nil {
			o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
			return
		}

		o.logger = logger
	}
}
