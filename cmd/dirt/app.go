package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	dirt "go-dirt"
	"go-dirt/config"
	"go-dirt/console"
	"go-dirt/objectstore"
	"go-dirt/objectstore/awss3"
	"go-dirt/objectstore/memory"
	"go-dirt/objectstore/s3compat"
)

// app holds what every command needs once configuration is loaded.
type app struct {
	v       *viper.Viper
	cfg     *config.Config
	logger  *slog.Logger
	objects objectstore.Store
	stdout  io.Writer
	stderr  io.Writer

	clearStale bool
	verbose    bool

	console    *console.Console
	newConsole func() (*console.Console, error)
	openStore  func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (objectstore.Store, error)
	now        func() time.Time
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		v:          config.New(),
		stdout:     stdout,
		stderr:     stderr,
		newConsole: console.NewTerminal,
		openStore:  openStore,
		now:        time.Now,
	}
}

// setup loads configuration, the logger and the object store.
func (a *app) setup(ctx context.Context) error {
	if _, err := config.ReadFile(a.v); err != nil {
		return &ExitError{Code: exitConfig, Message: "configuration error", Err: err}
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return &ExitError{Code: exitConfig, Message: "configuration error", Err: err}
	}
	a.cfg = cfg

	var level = cfg.LogLevel
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))

	objects, err := a.openStore(ctx, cfg, a.logger)
	if err != nil {
		return &ExitError{Code: exitFailure, Message: "failed to open object storage", Err: err}
	}
	a.objects = objects
	return nil
}

// prompt returns the console, opening the terminal on first use.
func (a *app) prompt() (*console.Console, error) {
	if a.console != nil {
		return a.console, nil
	}
	c, err := a.newConsole()
	if err != nil {
		return nil, err
	}
	a.console = c
	return c, nil
}

func (a *app) close() {
	if a.console != nil {
		_ = a.console.Close()
	}
}

func (a *app) sessionOptions() []dirt.Option {
	return []dirt.Option{
		dirt.WithLeaseTTL(a.cfg.LockTTL),
		dirt.WithAcquireRetry(a.cfg.AcquireAttempts(), a.cfg.LockRetryBackoff),
		dirt.WithClearStale(a.clearStale),
		dirt.WithWorkDir(a.cfg.WorkDir),
		dirt.WithClock(a.now),
		dirt.WithLogger(a.logger),
	}
}

func (a *app) newSession() *dirt.Session {
	return dirt.NewSession(a.objects, a.cfg.DBKey, a.cfg.LockKey, a.sessionOptions()...)
}

// run executes handler under the lease and maps the outcome to an exit error.
func (a *app) run(ctx context.Context, handler dirt.Handler) error {
	var session = a.newSession()
	var err = session.Run(ctx, handler)
	return classify(err, session.Synced())
}

func (a *app) location(key string) string {
	return fmt.Sprintf("%s://%s/%s", a.cfg.Backend, a.cfg.Bucket, key)
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (objectstore.Store, error) {
	switch cfg.Backend {
	case config.BackendS3:
		return awss3.New(ctx, awss3.Config{
			Region:         cfg.Region,
			Bucket:         cfg.Bucket,
			Endpoint:       cfg.Endpoint,
			AccessKey:      cfg.AccessKey,
			SecretKey:      cfg.SecretKey,
			Insecure:       cfg.Insecure,
			ForcePathStyle: cfg.PathStyle,
			Logger:         logger,
		})
	case config.BackendMinio:
		return s3compat.New(s3compat.Config{
			Endpoint:       cfg.Endpoint,
			Region:         cfg.Region,
			Bucket:         cfg.Bucket,
			AccessKey:      cfg.AccessKey,
			SecretKey:      cfg.SecretKey,
			Insecure:       cfg.Insecure,
			ForcePathStyle: cfg.PathStyle,
			Logger:         logger,
		})
	case config.BackendMemory:
		logger.Warn("using the in-memory backend, nothing outlives this process")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
