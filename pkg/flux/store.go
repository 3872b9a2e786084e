package flux

import (
	"sort"
	"sync"
)

// Handler handles one action delivered to a store. Returned errors are passed
// to the action's ErrorHandler.
type Handler func(s *Store, args ...any) error

// Transform converts state for hydration or dehydration.
type Transform func(value any) (any, error)

// Parent gives a store access to the actions and stores it was built with.
type Parent interface {
	Action(name string) (*Action, bool)
	Store(name string) (*Store, bool)
}

// StoreSpec describes a store.
type StoreSpec struct {
	// Initial is the state before any action is handled.
	Initial any

	// Handlers maps action names to the handler run for that action.
	Handlers map[string]Handler

	// Init runs once after every store in a registry exists and before this
	// store is subscribed to its actions. CreateStore does not call it.
	Init func(s *Store) error

	// Hydrate converts a serialized value into state. Default: Identity.
	Hydrate Transform

	// Dehydrate converts state into a serializable value. Default: Identity.
	Dehydrate Transform
}

// Store holds state that changes only in response to actions.
type Store struct {
	name   string
	parent Parent

	handlers  map[string]Handler
	hydrate   Transform
	dehydrate Transform

	mu    sync.RWMutex
	state any

	// umu serializes Update so fn runs without holding mu.
	umu sync.Mutex

	lmu       sync.Mutex
	listeners map[uint64]func(state any)
	nextID    uint64

	smu       sync.Mutex
	listening map[string]*listenEntry
}

type listenEntry struct {
	unsubscribe func()
}

// CreateStore creates a store from spec. The parent may be nil.
func CreateStore(name string, spec StoreSpec, parent Parent) *Store {
	handlers := make(map[string]Handler, len(spec.Handlers))
	for action, h := range spec.Handlers {
		if h != nil {
			handlers[action] = h
		}
	}

	s := &Store{
		name:      name,
		parent:    parent,
		handlers:  handlers,
		hydrate:   spec.Hydrate,
		dehydrate: spec.Dehydrate,
		state:     spec.Initial,
		listeners: make(map[uint64]func(any)),
		listening: make(map[string]*listenEntry),
	}
	if s.hydrate == nil {
		s.hydrate = Identity
	}
	if s.dehydrate == nil {
		s.dehydrate = Identity
	}
	return s
}

// Name returns the store name.
func (s *Store) Name() string {
	return s.name
}

// Parent returns the registry the store was created in, or nil.
func (s *Store) Parent() Parent {
	return s.parent
}

// Action looks up a sibling action through the parent.
func (s *Store) Action(name string) (*Action, bool) {
	if s.parent == nil {
		return nil, false
	}
	return s.parent.Action(name)
}

// Sibling looks up another store through the parent.
func (s *Store) Sibling(name string) (*Store, bool) {
	if s.parent == nil {
		return nil, false
	}
	return s.parent.Store(name)
}

// State returns the current state.
func (s *Store) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetState replaces the state and notifies change listeners.
func (s *Store) SetState(state any) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	s.emit(state)
}

// Update replaces the state with fn(state) and notifies change listeners.
// fn may read the store but must not call Update on it.
func (s *Store) Update(fn func(state any) any) {
	next := s.apply(fn)
	s.emit(next)
}

func (s *Store) apply(fn func(state any) any) any {
	s.umu.Lock()
	defer s.umu.Unlock()

	next := fn(s.State())
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
	return next
}

// Listen registers a change listener called with the new state after every
// SetState or Update. Hydrate does not notify.
func (s *Store) Listen(fn func(state any)) (unsubscribe func()) {
	s.lmu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

// emit notifies change listeners in registration order.
func (s *Store) emit(state any) {
	s.lmu.Lock()
	ids := make([]uint64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(any), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.lmu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

// HasHandler reports whether the store handles the named action.
func (s *Store) HasHandler(action string) bool {
	_, ok := s.handlers[action]
	return ok
}

// ListenTo subscribes h to a. Subscribing twice to the same action replaces
// the earlier subscription.
func (s *Store) ListenTo(a *Action, h Handler) (unsubscribe func()) {
	name := a.Name()

	s.smu.Lock()
	if prev, ok := s.listening[name]; ok {
		prev.unsubscribe()
	}
	entry := &listenEntry{
		unsubscribe: a.subscribe(s.name, func(args ...any) error {
			return h(s, args...)
		}),
	}
	s.listening[name] = entry
	s.smu.Unlock()

	return func() {
		s.smu.Lock()
		defer s.smu.Unlock()
		entry.unsubscribe()
		if s.listening[name] == entry {
			delete(s.listening, name)
		}
	}
}

// ListenToMany subscribes the store's handlers to the given actions. Actions
// without a matching handler are skipped. It returns the names subscribed,
// sorted.
func (s *Store) ListenToMany(actions map[string]*Action) []string {
	names := make([]string, 0, len(actions))
	for name := range actions {
		names = append(names, name)
	}
	sort.Strings(names)

	subscribed := make([]string, 0, len(names))
	for _, name := range names {
		a := actions[name]
		h, ok := s.handlers[name]
		if !ok || a == nil {
			continue
		}
		s.ListenTo(a, h)
		subscribed = append(subscribed, name)
	}
	return subscribed
}

// ListensTo reports whether the store is subscribed to the named action.
func (s *Store) ListensTo(action string) bool {
	s.smu.Lock()
	defer s.smu.Unlock()
	_, ok := s.listening[action]
	return ok
}

// StopListeningToAll removes every action subscription.
func (s *Store) StopListeningToAll() {
	s.smu.Lock()
	defer s.smu.Unlock()
	for name, entry := range s.listening {
		entry.unsubscribe()
		delete(s.listening, name)
	}
}

// Hydrate sets the state to the store's hydrate transform of value without
// notifying change listeners. Transform errors are returned unchanged and
// leave the state untouched.
func (s *Store) Hydrate(value any) error {
	state, err := s.hydrate(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	return nil
}

// Dehydrate returns the store's dehydrate transform of the current state.
func (s *Store) Dehydrate() (any, error) {
	return s.dehydrate(s.State())
}

// StateAs returns the store state as T, or the zero value if the state is
// nil or of another type.
func StateAs[T any](s *Store) T {
	v, _ := s.State().(T)
	return v
}
