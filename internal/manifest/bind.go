package manifest

import (
	"github.com/vango-dev/fluxreg/internal/errors"
	"github.com/vango-dev/fluxreg/pkg/flux"
	"github.com/vango-dev/fluxreg/pkg/registry"
)

// Bind pairs each manifest module with its store implementation from impls
// and returns registry definitions. Every module gets its own copy of the
// spec; an initial value in the manifest replaces the spec's Initial after
// passing through the spec's Hydrate transform. Implementations no module
// names are ignored.
//
// All problems are reported together as a *registry.ValidationError.
func Bind(f *File, impls map[string]*flux.StoreSpec) (map[string]registry.Definition, error) {
	defs := make(map[string]registry.Definition, len(f.Modules))
	var problems []*errors.FluxError

	for _, m := range f.Modules {
		impl, ok := impls[m.Store]
		if !ok || impl == nil {
			problems = append(problems, locate(errors.New("E109").
				WithDetailf("module %q uses store %q", m.Name, m.Store).
				WithSuggestion("Register the store implementation or fix the store attribute"), m.Range))
			continue
		}

		spec := *impl
		if m.HasInitial {
			hydrate := spec.Hydrate
			if hydrate == nil {
				hydrate = flux.Identity
			}
			v, err := hydrate(m.Initial)
			if err != nil {
				problems = append(problems, locate(errors.New("E141").
					WithDetailf("module %q initial value", m.Name).
					Wrap(err), m.Range))
				continue
			}
			spec.Initial = v
		}

		def := registry.Definition{
			Actions: append([]string(nil), m.Actions...),
			Store:   &spec,
		}
		if m.Dependencies != nil {
			def.Dependencies = &registry.Dependencies{
				Stores:  m.Dependencies.Stores,
				Actions: m.Dependencies.Actions,
			}
		}
		defs[m.Name] = def
	}

	if len(problems) > 0 {
		return nil, &registry.ValidationError{Problems: problems}
	}
	return defs, nil
}

// Load parses the manifest at path, binds it to impls and builds a registry.
func Load(path string, impls map[string]*flux.StoreSpec, opts ...registry.Option) (*registry.Registry, error) {
	f, err := Parse(path)
	if err != nil {
		return nil, err
	}
	defs, err := Bind(f, impls)
	if err != nil {
		return nil, err
	}
	return registry.New(defs, opts...)
}
