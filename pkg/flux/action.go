package flux

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// listenerFunc is the signature shared by store handlers and plain listeners.
type listenerFunc func(args ...any) error

// subscription is one listener attached to an action.
type subscription struct {
	id     uint64
	store  string
	fn     listenerFunc
	active atomic.Bool
}

var subscriptionIDs atomic.Uint64

// Action is a named callable. Triggering it delivers its arguments to every
// listener subscribed at the time of the call.
type Action struct {
	name       string
	dispatcher Dispatcher
	middleware []Middleware
	onError    ErrorHandler

	mu   sync.RWMutex
	subs []*subscription
}

// ActionOption configures actions created by CreateActions.
type ActionOption func(*actionConfig)

type actionConfig struct {
	dispatcher Dispatcher
	middleware []Middleware
	onError    ErrorHandler
	logger     *slog.Logger
}

// WithDispatcher sets the dispatcher used for deliveries.
// Default: a new SyncDispatcher shared by the actions of one CreateActions call.
func WithDispatcher(d Dispatcher) ActionOption {
	return func(c *actionConfig) {
		c.dispatcher = d
	}
}

// WithMiddleware appends delivery middleware.
func WithMiddleware(mws ...Middleware) ActionOption {
	return func(c *actionConfig) {
		c.middleware = append(c.middleware, mws...)
	}
}

// WithErrorHandler sets the handler for listener errors.
// Default: log at error level.
func WithErrorHandler(h ErrorHandler) ActionOption {
	return func(c *actionConfig) {
		c.onError = h
	}
}

// WithLogger sets the logger used by the default error handler.
func WithLogger(logger *slog.Logger) ActionOption {
	return func(c *actionConfig) {
		c.logger = logger
	}
}

// CreateActions creates one action per name. Duplicate names yield a single
// action; empty names are skipped.
func CreateActions(names []string, opts ...ActionOption) map[string]*Action {
	cfg := actionConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.dispatcher == nil {
		cfg.dispatcher = NewSyncDispatcher()
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.onError == nil {
		logger := cfg.logger
		cfg.onError = func(inv *Invocation, err error) {
			logger.Error("flux: handler failed",
				"action", inv.Action,
				"store", inv.Store,
				"error", err,
			)
		}
	}

	actions := make(map[string]*Action, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, ok := actions[name]; ok {
			continue
		}
		actions[name] = &Action{
			name:       name,
			dispatcher: cfg.dispatcher,
			middleware: cfg.middleware,
			onError:    cfg.onError,
		}
	}
	return actions
}

// Name returns the action name.
func (a *Action) Name() string {
	return a.name
}

// Trigger delivers args to the current listeners.
func (a *Action) Trigger(args ...any) error {
	return a.TriggerContext(context.Background(), args...)
}

// TriggerContext is Trigger with a context that is handed to middleware.
// Listeners added after this call returns are not part of the delivery;
// listeners removed before delivery are skipped.
func (a *Action) TriggerContext(ctx context.Context, args ...any) error {
	if ctx == nil {
		ctx = context.Background()
	}

	a.mu.RLock()
	subs := make([]*subscription, len(a.subs))
	copy(subs, a.subs)
	a.mu.RUnlock()

	if len(subs) == 0 {
		return nil
	}

	argsCopy := make([]any, len(args))
	copy(argsCopy, args)

	return a.dispatcher.Dispatch(func() {
		for _, sub := range subs {
			if !sub.active.Load() {
				continue
			}
			a.deliver(ctx, sub, argsCopy)
		}
	})
}

// Listen subscribes a plain listener that is not attached to a store.
func (a *Action) Listen(fn func(args ...any) error) (unsubscribe func()) {
	return a.subscribe("", fn)
}

// ListenerCount returns the number of active listeners.
func (a *Action) ListenerCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.subs)
}

func (a *Action) subscribe(store string, fn listenerFunc) func() {
	sub := &subscription{
		id:    subscriptionIDs.Add(1),
		store: store,
		fn:    fn,
	}
	sub.active.Store(true)

	a.mu.Lock()
	a.subs = append(a.subs, sub)
	a.mu.Unlock()

	return func() { a.unsubscribe(sub) }
}

func (a *Action) unsubscribe(sub *subscription) {
	if !sub.active.Swap(false) {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for i, existing := range a.subs {
		if existing.id == sub.id {
			// Preserve delivery order for the remaining listeners
			a.subs = append(a.subs[:i], a.subs[i+1:]...)
			return
		}
	}
}

// deliver runs one listener through the middleware chain.
func (a *Action) deliver(ctx context.Context, sub *subscription, args []any) {
	inv := &Invocation{
		Context: ctx,
		Action:  a.name,
		Store:   sub.store,
		Args:    args,
	}
	err := chain(a.middleware, inv, func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{
					Action: a.name,
					Store:  sub.store,
					Value:  r,
					Stack:  debug.Stack(),
				}
			}
		}()
		return sub.fn(args...)
	})
	if err != nil && a.onError != nil {
		a.onError(inv, err)
	}
}
