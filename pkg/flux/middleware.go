package flux

import "context"

// Invocation describes one delivery of an action to one listener.
type Invocation struct {
	// Context is the context passed to TriggerContext.
	Context context.Context

	// Action is the name of the triggered action.
	Action string

	// Store is the name of the receiving store, empty for plain listeners.
	Store string

	// Args are the arguments passed to Trigger.
	Args []any
}

// Middleware wraps every delivery. Implementations must call next exactly
// once unless they intend to skip the handler.
type Middleware interface {
	Handle(inv *Invocation, next func() error) error
}

// MiddlewareFunc adapts a function to the Middleware interface.
type MiddlewareFunc func(inv *Invocation, next func() error) error

// Handle implements Middleware.
func (f MiddlewareFunc) Handle(inv *Invocation, next func() error) error {
	return f(inv, next)
}

// ErrorHandler receives errors returned (or panics raised) by handlers.
type ErrorHandler func(inv *Invocation, err error)

// chain runs final wrapped by mws, the first middleware outermost.
func chain(mws []Middleware, inv *Invocation, final func() error) error {
	if len(mws) == 0 {
		return final()
	}
	next := final
	for i := len(mws) - 1; i >= 0; i-- {
		mw := mws[i]
		inner := next
		next = func() error { return mw.Handle(inv, inner) }
	}
	return next()
}
