package registry

import (
	"github.com/vango-dev/fluxreg/pkg/flux"
)

// Definition describes one module.
type Definition struct {
	// Actions lists the actions the module declares. The module's store
	// listens to each of them it has a handler for.
	Actions []string

	// Store is the module's store spec. Required.
	Store *flux.StoreSpec

	// Dependencies names stores and actions from other modules that this
	// module expects to exist.
	Dependencies *Dependencies
}

// Dependencies names the stores and actions a module relies on.
type Dependencies struct {
	Stores  []string
	Actions []string
}

// Policy decides what happens when two modules declare the same action.
type Policy int

const (
	// SharedActions creates one action per name. Every module that lists
	// the name gets the same action. This is the default.
	SharedActions Policy = iota

	// ExclusiveActions rejects a name declared by more than one module.
	ExclusiveActions
)

// String returns a human-readable name for the policy.
func (p Policy) String() string {
	switch p {
	case SharedActions:
		return "shared"
	case ExclusiveActions:
		return "exclusive"
	default:
		return "unknown"
	}
}

// ParsePolicy parses "shared" or "exclusive".
func ParsePolicy(s string) (Policy, bool) {
	switch s {
	case "shared", "":
		return SharedActions, true
	case "exclusive":
		return ExclusiveActions, true
	default:
		return SharedActions, false
	}
}
