package registry

import (
	"sort"
)

// Hydrate restores store state from serialized, keyed by store name. Each
// matching store's state becomes its hydrate transform of the value. Names
// with no store are logged and skipped. The first transform error is
// returned unchanged; stores hydrated before it keep their new state.
func (r *Registry) Hydrate(serialized map[string]any) error {
	names := make([]string, 0, len(serialized))
	for name := range serialized {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		store, ok := r.stores[name]
		if !ok {
			r.logger.Warn("registry: hydrate couldn't find a matching store", "store", name)
			if r.hydrateMiss != nil {
				r.hydrateMiss(name)
			}
			continue
		}
		if err := store.Hydrate(serialized[name]); err != nil {
			return err
		}
	}
	return nil
}

// Dehydrate returns every store's dehydrate transform of its state, keyed by
// store name. The first transform error is returned unchanged.
func (r *Registry) Dehydrate() (map[string]any, error) {
	out := make(map[string]any, len(r.stores))
	for _, name := range r.names {
		v, err := r.stores[name].Dehydrate()
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}
