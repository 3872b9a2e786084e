package registry

import (
	"log/slog"

	"github.com/vango-dev/fluxreg/pkg/flux"
)

// Option configures New.
type Option func(*config)

type config struct {
	logger      *slog.Logger
	dispatcher  flux.Dispatcher
	policy      Policy
	middleware  []flux.Middleware
	onError     flux.ErrorHandler
	hydrateMiss func(name string)
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithDispatcher sets the dispatcher shared by every action.
// Default: a new flux.SyncDispatcher.
func WithDispatcher(d flux.Dispatcher) Option {
	return func(c *config) {
		c.dispatcher = d
	}
}

// WithActionPolicy sets the duplicate action policy. Default: SharedActions.
func WithActionPolicy(p Policy) Option {
	return func(c *config) {
		c.policy = p
	}
}

// WithMiddleware appends delivery middleware applied to every action.
func WithMiddleware(mws ...flux.Middleware) Option {
	return func(c *config) {
		c.middleware = append(c.middleware, mws...)
	}
}

// WithErrorHandler sets the handler for store handler errors.
// Default: log at error level.
func WithErrorHandler(h flux.ErrorHandler) Option {
	return func(c *config) {
		c.onError = h
	}
}

// WithHydrateMiss sets a hook called for every serialized entry that names
// no store, in addition to the warning log.
func WithHydrateMiss(fn func(name string)) Option {
	return func(c *config) {
		c.hydrateMiss = fn
	}
}
