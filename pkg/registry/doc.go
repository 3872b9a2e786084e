// Package registry builds a set of named modules into flattened actions and
// wired stores.
//
// A module bundles the action names its store listens to with the store
// spec itself:
//
//	reg, err := registry.New(map[string]registry.Definition{
//	    "Counter": {
//	        Actions: []string{"increment", "reset"},
//	        Store:   &counterSpec,
//	    },
//	    "History": {
//	        Actions:      []string{"reset"},
//	        Store:        &historySpec,
//	        Dependencies: &registry.Dependencies{Stores: []string{"Counter"}},
//	    },
//	})
//
//	reg.MustAction("increment").Trigger()
//	counter := reg.MustStore("Counter")
//
// Construction happens in two passes. The first creates every action and
// every store; the second runs each store's Init and subscribes it to its
// module's actions. Stores may therefore look up any sibling in Init.
//
// Hydrate and Dehydrate move the state of every store in and out of a
// map keyed by store name.
package registry
