// Package sample holds the store implementations the fluxreg CLI binds
// manifests to: a counter, a todo list and a change history.
package sample

import (
	"fmt"
	"strconv"

	"github.com/vango-dev/fluxreg/pkg/flux"
	"github.com/vango-dev/fluxreg/pkg/registry"
)

// Item is one todo entry.
type Item struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

// Entry is one recorded change.
type Entry struct {
	Store string `json:"store"`
	Value any    `json:"value"`
}

// HistoryLimit caps the number of entries History keeps.
const HistoryLimit = 100

// Manifest declares the sample modules. It is what `fluxreg init` writes.
const Manifest = `module "Counter" {
  actions = ["increment", "decrement", "reset"]
  initial = 0
}

module "Todos" {
  actions = ["addTodo", "toggleTodo", "removeTodo", "clearCompleted", "reset"]
}

module "History" {
  actions = ["clearHistory"]

  dependencies {
    stores = ["Counter", "Todos"]
  }
}
`

// Stores returns the store implementations keyed by implementation name.
func Stores() map[string]*flux.StoreSpec {
	return map[string]*flux.StoreSpec{
		"Counter": Counter(),
		"Todos":   Todos(),
		"History": History(),
	}
}

// Definitions returns the sample modules without a manifest.
func Definitions() map[string]registry.Definition {
	return map[string]registry.Definition{
		"Counter": {
			Actions: []string{"increment", "decrement", "reset"},
			Store:   Counter(),
		},
		"Todos": {
			Actions: []string{"addTodo", "toggleTodo", "removeTodo", "clearCompleted", "reset"},
			Store:   Todos(),
		},
		"History": {
			Actions:      []string{"clearHistory"},
			Store:        History(),
			Dependencies: &registry.Dependencies{Stores: []string{"Counter", "Todos"}},
		},
	}
}

// Counter counts. increment and decrement take an optional step.
func Counter() *flux.StoreSpec {
	return &flux.StoreSpec{
		Initial: 0,
		Handlers: map[string]flux.Handler{
			"increment": func(s *flux.Store, args ...any) error {
				step, err := optionalInt(args, 1)
				if err != nil {
					return err
				}
				s.SetState(flux.StateAs[int](s) + step)
				return nil
			},
			"decrement": func(s *flux.Store, args ...any) error {
				step, err := optionalInt(args, 1)
				if err != nil {
					return err
				}
				s.SetState(flux.StateAs[int](s) - step)
				return nil
			},
			"reset": func(s *flux.Store, args ...any) error {
				s.SetState(0)
				return nil
			},
		},
		Hydrate: flux.DecodeAs[int](),
	}
}

// Todos is a todo list.
func Todos() *flux.StoreSpec {
	return &flux.StoreSpec{
		Initial: []Item{},
		Handlers: map[string]flux.Handler{
			"addTodo": func(s *flux.Store, args ...any) error {
				if len(args) == 0 {
					return fmt.Errorf("addTodo: title required")
				}
				title := fmt.Sprint(args[0])
				items := flux.StateAs[[]Item](s)
				next := 1
				for _, it := range items {
					if it.ID >= next {
						next = it.ID + 1
					}
				}
				s.SetState(append(append([]Item(nil), items...), Item{ID: next, Title: title}))
				return nil
			},
			"toggleTodo": func(s *flux.Store, args ...any) error {
				return updateItem(s, args, "toggleTodo", func(items []Item, i int) []Item {
					items[i].Done = !items[i].Done
					return items
				})
			},
			"removeTodo": func(s *flux.Store, args ...any) error {
				return updateItem(s, args, "removeTodo", func(items []Item, i int) []Item {
					return append(items[:i], items[i+1:]...)
				})
			},
			"clearCompleted": func(s *flux.Store, args ...any) error {
				var kept []Item
				for _, it := range flux.StateAs[[]Item](s) {
					if !it.Done {
						kept = append(kept, it)
					}
				}
				if kept == nil {
					kept = []Item{}
				}
				s.SetState(kept)
				return nil
			},
			"reset": func(s *flux.Store, args ...any) error {
				s.SetState([]Item{})
				return nil
			},
		},
		Hydrate: flux.DecodeAs[[]Item](),
	}
}

// History records every state change of the Counter and Todos stores.
func History() *flux.StoreSpec {
	return &flux.StoreSpec{
		Initial: []Entry{},
		Handlers: map[string]flux.Handler{
			"clearHistory": func(s *flux.Store, args ...any) error {
				s.SetState([]Entry{})
				return nil
			},
		},
		Init: func(s *flux.Store) error {
			for _, name := range []string{"Counter", "Todos"} {
				name := name
				sibling, ok := s.Sibling(name)
				if !ok {
					continue
				}
				sibling.Listen(func(state any) {
					s.Update(func(cur any) any {
						entries, _ := cur.([]Entry)
						entries = append(append([]Entry(nil), entries...), Entry{Store: name, Value: state})
						if len(entries) > HistoryLimit {
							entries = entries[len(entries)-HistoryLimit:]
						}
						return entries
					})
				})
			}
			return nil
		},
		Hydrate: flux.DecodeAs[[]Entry](),
	}
}

func updateItem(s *flux.Store, args []any, action string, fn func([]Item, int) []Item) error {
	id, err := optionalInt(args, -1)
	if err != nil || id < 0 {
		return fmt.Errorf("%s: item id required", action)
	}
	items := append([]Item(nil), flux.StateAs[[]Item](s)...)
	for i := range items {
		if items[i].ID == id {
			s.SetState(fn(items, i))
			return nil
		}
	}
	return fmt.Errorf("%s: item %d not found", action, id)
}

// optionalInt reads args[0] as an int, returning def when absent.
func optionalInt(args []any, def int) (int, error) {
	if len(args) == 0 {
		return def, nil
	}
	switch v := args[0].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("invalid number %v", v)
	}
}
