// Package flux provides the action and store primitives of a unidirectional
// data flow.
//
// Actions are named callables. Triggering an action enqueues a delivery to
// every store listening at the moment of the call; a Dispatcher serializes
// deliveries so handlers never run concurrently or re-entrantly.
//
// # Core Types
//
// Action is created by name and triggered with arbitrary arguments:
//
//	actions := flux.CreateActions([]string{"increment", "reset"})
//	actions["increment"].Trigger(1)
//
// Store holds state and handles the actions it listens to:
//
//	counter := flux.CreateStore("Counter", flux.StoreSpec{
//	    Initial: 0,
//	    Handlers: map[string]flux.Handler{
//	        "increment": func(s *flux.Store, args ...any) error {
//	            s.SetState(flux.StateAs[int](s) + 1)
//	            return nil
//	        },
//	    },
//	}, nil)
//	counter.ListenToMany(actions)
//
// # Dispatchers
//
// SyncDispatcher (the default) delivers on the triggering goroutine. Triggers
// made from inside a handler are queued and delivered after the handler
// returns. AsyncDispatcher delivers on a single worker goroutine.
//
// # Hydration
//
// Stores convert serialized state with Transform functions. Identity is the
// default; DecodeAs[T] restores typed state from JSON. Hydrate replaces the
// state without notifying change listeners.
package flux
