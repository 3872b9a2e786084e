package flux

import (
	"errors"
	"fmt"
)

// ErrQueueFull is returned when the async dispatcher cannot accept more deliveries.
var ErrQueueFull = errors.New("flux: dispatch queue full")

// ErrNotRunning is returned when dispatching to a stopped async dispatcher.
var ErrNotRunning = errors.New("flux: dispatcher not running")

// ErrAlreadyRunning is returned by Start on a running async dispatcher.
var ErrAlreadyRunning = errors.New("flux: dispatcher already running")

// PanicError reports a handler panic recovered during delivery.
type PanicError struct {
	Action string
	Store  string
	Value  any
	Stack  []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	if e.Store != "" {
		return fmt.Sprintf("flux: panic in %s handler for %s: %v", e.Store, e.Action, e.Value)
	}
	return fmt.Sprintf("flux: panic in listener for %s: %v", e.Action, e.Value)
}

// TypeMismatchError is returned by DecodeAs when a value cannot become the
// store's state type.
type TypeMismatchError struct {
	Expected string
	Actual   string
	Err      error
}

// Error implements the error interface.
func (e *TypeMismatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("flux: cannot use %s as %s: %v", e.Actual, e.Expected, e.Err)
	}
	return fmt.Sprintf("flux: cannot use %s as %s", e.Actual, e.Expected)
}

// Unwrap returns the underlying decode error.
func (e *TypeMismatchError) Unwrap() error {
	return e.Err
}
