package registry

import (
	"sort"
	"strconv"
	"strings"

	"github.com/vango-dev/fluxreg/internal/errors"
)

// ValidationError collects every problem found in a set of definitions.
type ValidationError struct {
	Problems []*errors.FluxError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return e.Problems[0].Error()
	}
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return "registry: " + strconv.Itoa(len(e.Problems)) + " definition errors: " + strings.Join(msgs, "; ")
}

// Unwrap returns the individual problems for errors.Is/As support.
func (e *ValidationError) Unwrap() []error {
	errs := make([]error, len(e.Problems))
	for i, p := range e.Problems {
		errs[i] = p
	}
	return errs
}

// Codes returns the error code of every problem, in order.
func (e *ValidationError) Codes() []string {
	codes := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		codes[i] = p.Code
	}
	return codes
}

// Validate checks defs without building anything. It returns nil or a
// *ValidationError listing every problem, ordered by module name.
func Validate(defs map[string]Definition, policy Policy) error {
	names := sortedNames(defs)
	var problems []*errors.FluxError

	// Action ownership, needed before dependency checks
	declared := make(map[string]string)
	for _, name := range names {
		def := defs[name]
		seen := make(map[string]bool, len(def.Actions))
		for _, action := range def.Actions {
			if action == "" {
				problems = append(problems, errors.New("E106").
					WithDetailf("module %q declares an action with an empty name", name))
				continue
			}
			if seen[action] {
				continue
			}
			seen[action] = true

			owner, taken := declared[action]
			if !taken {
				declared[action] = name
				continue
			}
			if policy == ExclusiveActions {
				problems = append(problems, errors.New("E104").
					WithDetailf("action %q is declared by both %q and %q", action, owner, name).
					WithSuggestion("Declare the action in one module and list it under the other module's dependencies"))
			}
		}
	}

	for _, name := range names {
		def := defs[name]

		if name == "" {
			problems = append(problems, errors.New("E106").
				WithDetail("a module has an empty name"))
		}

		if def.Store == nil {
			problems = append(problems, errors.New("E101").
				WithDetailf("module %q has no store", name).
				WithSuggestion("Set Store to a *flux.StoreSpec, even an empty one"))
		} else {
			own := make(map[string]bool, len(def.Actions))
			for _, action := range def.Actions {
				own[action] = true
			}
			for _, action := range sortedKeys(def.Store.Handlers) {
				if !own[action] {
					problems = append(problems, errors.New("E105").
						WithDetailf("store %q handles %q but its module does not list it", name, action).
						WithSuggestion("Add \"" + action + "\" to the module's Actions"))
				}
			}
		}

		if def.Dependencies == nil {
			continue
		}
		for _, dep := range def.Dependencies.Stores {
			if _, ok := defs[dep]; !ok {
				problems = append(problems, errors.New("E102").
					WithDetailf("%s depends on the store %s, but that isn't defined", name, dep))
			}
		}
		for _, dep := range def.Dependencies.Actions {
			if _, ok := declared[dep]; !ok {
				problems = append(problems, errors.New("E103").
					WithDetailf("%s depends on the action %s, but that isn't defined", name, dep))
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func sortedNames(defs map[string]Definition) []string {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
