// Package errors provides structured, actionable error messages for fluxreg.
//
// Every error has a unique code (e.g., "E101") that maps to a short message,
// a detailed explanation and a documentation URL. Errors may carry a source
// location (used for manifest files) and a fix suggestion.
//
// # Error Categories
//
//   - definition: module definitions that cannot be built into a registry
//   - runtime: action delivery and store lifecycle failures
//   - hydration: problems restoring serialized state
//   - config: fluxreg.json problems
//   - snapshot: snapshot storage problems
//   - cli: command-line usage problems
//
// # Usage
//
//	err := errors.New("E101").
//	    WithDetail(`module "Counter" has no store`).
//	    WithSuggestion("Add a Store spec to the definition")
//
//	fmt.Println(err.Format())
package errors
