// Package manifest reads module declarations from an HCL file and binds
// them to Go store implementations.
//
// A manifest declares what each module exposes; the store behavior stays in
// Go:
//
//	module "Counter" {
//	  actions = ["increment", "reset"]
//	  initial = 10
//
//	  dependencies {
//	    stores = ["History"]
//	  }
//	}
//
//	module "Audit" {
//	  store   = "History"
//	  actions = ["record"]
//	}
//
// The store attribute names the implementation and defaults to the module
// name, so one implementation can back several modules.
package manifest
