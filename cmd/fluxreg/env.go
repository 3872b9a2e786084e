package main

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/vango-dev/fluxreg/internal/config"
	"github.com/vango-dev/fluxreg/internal/errors"
	"github.com/vango-dev/fluxreg/internal/manifest"
	"github.com/vango-dev/fluxreg/internal/sample"
	"github.com/vango-dev/fluxreg/pkg/flux"
	"github.com/vango-dev/fluxreg/pkg/middleware"
	"github.com/vango-dev/fluxreg/pkg/registry"
	"github.com/vango-dev/fluxreg/pkg/snapshot"
)

// env holds what commands build from fluxreg.json.
type env struct {
	cfg    *config.Config
	logger *slog.Logger

	// async is set when the dispatcher runs in async mode.
	async      *flux.AsyncDispatcher
	dispatcher flux.Dispatcher

	failures atomic.Int64
}

// loadEnv reads the configuration and applies flag overrides.
func loadEnv(flags *globalFlags) (*env, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadFile(flags.configPath)
	} else {
		cfg, err = config.LoadFromWorkingDir()
	}
	if err != nil {
		return nil, err
	}

	if flags.manifest != "" {
		abs, err := filepath.Abs(flags.manifest)
		if err != nil {
			return nil, err
		}
		cfg.Manifest = abs
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, _ := cfg.LogLevel()
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	e := &env{cfg: cfg, logger: logger}
	if cfg.Dispatcher.Mode == config.DispatcherAsync {
		e.async = flux.NewAsyncDispatcher(
			flux.WithQueueSize(cfg.Dispatcher.QueueSize),
			flux.WithPanicHandler(func(r any, stack []byte) {
				logger.Error("flux: dispatcher panic", "panic", r, "stack", string(stack))
			}),
		)
		e.dispatcher = e.async
	} else {
		e.dispatcher = flux.NewSyncDispatcher()
	}
	return e, nil
}

// definitions reads the manifest, falling back to the built-in sample
// modules when the manifest file does not exist.
func (e *env) definitions() (map[string]registry.Definition, string, error) {
	path := e.cfg.ManifestPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		e.logger.Debug("fluxreg: manifest not found, using sample modules", "path", path)
		return sample.Definitions(), "", nil
	}

	f, err := manifest.Parse(path)
	if err != nil {
		return nil, path, err
	}
	defs, err := manifest.Bind(f, sample.Stores())
	return defs, path, err
}

// options translates the configuration into registry options.
func (e *env) options() ([]registry.Option, error) {
	policy, ok := registry.ParsePolicy(e.cfg.Actions.Policy)
	if !ok {
		return nil, errors.New("E161").WithDetailf("actions.policy %q", e.cfg.Actions.Policy)
	}

	mws := []flux.Middleware{middleware.Logging(e.logger)}
	if e.cfg.Tracing.Enabled {
		mws = append(mws, middleware.OpenTelemetry(middleware.WithTracerName(e.cfg.Tracing.TracerName)))
	}

	opts := []registry.Option{
		registry.WithLogger(e.logger),
		registry.WithDispatcher(e.dispatcher),
		registry.WithActionPolicy(policy),
		registry.WithErrorHandler(func(inv *flux.Invocation, err error) {
			e.failures.Add(1)
			e.logger.Error("fluxreg: handler failed", "action", inv.Action, "store", inv.Store, "error", err)
		}),
	}
	if e.cfg.Metrics.Enabled {
		mws = append(mws, middleware.Prometheus(middleware.WithNamespace(e.cfg.Metrics.Namespace)))
		opts = append(opts, registry.WithHydrateMiss(middleware.RecordHydrateMiss))
	}
	return append(opts, registry.WithMiddleware(mws...)), nil
}

// build constructs the registry from the configured definitions. The
// dispatcher is started first; callers must call stop.
func (e *env) build() (*registry.Registry, error) {
	defs, _, err := e.definitions()
	if err != nil {
		return nil, err
	}
	return e.buildFrom(defs)
}

// buildFrom starts the dispatcher and constructs the registry from defs,
// so store Init functions may trigger actions.
func (e *env) buildFrom(defs map[string]registry.Definition) (*registry.Registry, error) {
	opts, err := e.options()
	if err != nil {
		return nil, err
	}
	if err := e.start(); err != nil {
		return nil, err
	}
	return registry.New(defs, opts...)
}

// start starts the async dispatcher, if any.
func (e *env) start() error {
	if e.async == nil {
		return nil
	}
	if err := e.async.Start(); err != nil && !stderrors.Is(err, flux.ErrAlreadyRunning) {
		return err
	}
	return nil
}

// settle waits for queued deliveries.
func (e *env) settle(ctx context.Context) error {
	if e.async == nil {
		return nil
	}
	if err := e.async.Flush(ctx); err != nil {
		return err
	}
	if e.cfg.Metrics.Enabled {
		middleware.RecordDispatcherStats(e.async.Stats())
	}
	return nil
}

// stop stops the async dispatcher, if any.
func (e *env) stop() {
	if e.async == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.async.Stop(ctx); err != nil && !stderrors.Is(err, flux.ErrNotRunning) {
		e.logger.Warn("fluxreg: dispatcher stop", "error", err)
	}
}

// openSnapshotStore opens the configured snapshot backend.
func (e *env) openSnapshotStore() (snapshot.Store, error) {
	sc := e.cfg.Snapshot
	switch sc.Backend {
	case config.BackendMemory:
		return snapshot.NewMemoryStore(), nil
	case config.BackendFile:
		return snapshot.NewFileStore(e.cfg.SnapshotDir()), nil
	case config.BackendS3:
		region := sc.Region
		if region == "" {
			region = os.Getenv("AWS_REGION")
		}
		client := snapshot.NewS3Client(snapshot.S3ClientOptions{
			Region:          region,
			Endpoint:        sc.Endpoint,
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		})
		return snapshot.NewS3Store(client, sc.Bucket, sc.Prefix), nil
	default:
		return nil, errors.New("E200").WithDetailf("snapshot.backend %q", sc.Backend)
	}
}
