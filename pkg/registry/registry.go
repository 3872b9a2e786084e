package registry

import (
	"log/slog"

	"github.com/vango-dev/fluxreg/internal/errors"
	"github.com/vango-dev/fluxreg/pkg/flux"
)

// Registry holds the actions and stores built from a set of definitions.
// Its membership does not change after New returns.
type Registry struct {
	actions map[string]*flux.Action
	stores  map[string]*flux.Store
	names   []string

	dispatcher  flux.Dispatcher
	logger      *slog.Logger
	hydrateMiss func(name string)
}

// New validates defs and builds them into a Registry.
//
// Modules are processed in name order. Validation problems are returned
// together as a *ValidationError before anything is built. An Init error
// aborts construction.
func New(defs map[string]Definition, opts ...Option) (*Registry, error) {
	cfg := config{policy: SharedActions}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.dispatcher == nil {
		cfg.dispatcher = flux.NewSyncDispatcher()
	}

	if err := Validate(defs, cfg.policy); err != nil {
		return nil, err
	}

	r := &Registry{
		actions:     make(map[string]*flux.Action),
		stores:      make(map[string]*flux.Store, len(defs)),
		names:       sortedNames(defs),
		dispatcher:  cfg.dispatcher,
		logger:      cfg.logger,
		hydrateMiss: cfg.hydrateMiss,
	}

	actionOpts := []flux.ActionOption{
		flux.WithDispatcher(cfg.dispatcher),
		flux.WithMiddleware(cfg.middleware...),
		flux.WithLogger(cfg.logger),
	}
	if cfg.onError != nil {
		actionOpts = append(actionOpts, flux.WithErrorHandler(cfg.onError))
	}

	// Pass 1: materialize every action and store
	for _, name := range r.names {
		def := defs[name]

		var fresh []string
		for _, action := range def.Actions {
			if _, ok := r.actions[action]; !ok {
				fresh = append(fresh, action)
			}
		}
		for action, a := range flux.CreateActions(fresh, actionOpts...) {
			r.actions[action] = a
		}

		r.stores[name] = flux.CreateStore(name, *def.Store, r)
	}

	// Pass 2: init, then subscribe
	for _, name := range r.names {
		def := defs[name]
		store := r.stores[name]

		if def.Store.Init != nil {
			if err := def.Store.Init(store); err != nil {
				return nil, errors.New("E107").
					WithDetailf("store %q", name).
					Wrap(err)
			}
		}

		listenables := make(map[string]*flux.Action, len(def.Actions))
		for _, action := range def.Actions {
			listenables[action] = r.actions[action]
		}
		subscribed := store.ListenToMany(listenables)

		r.logger.Debug("registry: store wired",
			"store", name,
			"actions", subscribed,
		)
	}

	return r, nil
}

// Action returns the named action. It implements flux.Parent.
func (r *Registry) Action(name string) (*flux.Action, bool) {
	a, ok := r.actions[name]
	return a, ok
}

// Store returns the named store. It implements flux.Parent.
func (r *Registry) Store(name string) (*flux.Store, bool) {
	s, ok := r.stores[name]
	return s, ok
}

// MustAction returns the named action or panics.
func (r *Registry) MustAction(name string) *flux.Action {
	a, ok := r.actions[name]
	if !ok {
		panic(errors.New("E121").WithDetailf("action %q", name))
	}
	return a
}

// MustStore returns the named store or panics.
func (r *Registry) MustStore(name string) *flux.Store {
	s, ok := r.stores[name]
	if !ok {
		panic(errors.New("E140").WithDetailf("store %q", name))
	}
	return s
}

// Actions returns a copy of the action mapping.
func (r *Registry) Actions() map[string]*flux.Action {
	out := make(map[string]*flux.Action, len(r.actions))
	for name, a := range r.actions {
		out[name] = a
	}
	return out
}

// Stores returns a copy of the store mapping.
func (r *Registry) Stores() map[string]*flux.Store {
	out := make(map[string]*flux.Store, len(r.stores))
	for name, s := range r.stores {
		out[name] = s
	}
	return out
}

// Names returns the module names in construction order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// ActionNames returns every action name, sorted.
func (r *Registry) ActionNames() []string {
	return sortedKeys(r.actions)
}

// Dispatcher returns the dispatcher shared by the registry's actions.
func (r *Registry) Dispatcher() flux.Dispatcher {
	return r.dispatcher
}
