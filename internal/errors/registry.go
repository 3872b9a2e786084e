package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Definition Errors (E100-E119)
	// ============================================

	"E101": {
		Category: CategoryDefinition,
		Message:  "Definition has no store",
		Detail:   "Every module definition must contain a store spec.",
		DocURL:   "https://fluxreg.dev/docs/errors/E101",
	},
	"E102": {
		Category: CategoryDefinition,
		Message:  "Unknown store dependency",
		Detail:   "A module depends on a store that no module defines.",
		DocURL:   "https://fluxreg.dev/docs/errors/E102",
	},
	"E103": {
		Category: CategoryDefinition,
		Message:  "Unknown action dependency",
		Detail:   "A module depends on an action that no module declares.",
		DocURL:   "https://fluxreg.dev/docs/errors/E103",
	},
	"E104": {
		Category: CategoryDefinition,
		Message:  "Duplicate action",
		Detail:   "An action is declared by more than one module while actions are exclusive.",
		DocURL:   "https://fluxreg.dev/docs/errors/E104",
	},
	"E105": {
		Category: CategoryDefinition,
		Message:  "Handler for undeclared action",
		Detail:   "A store has a handler for an action its module does not list, so it would never run.",
		DocURL:   "https://fluxreg.dev/docs/errors/E105",
	},
	"E106": {
		Category: CategoryDefinition,
		Message:  "Empty name",
		Detail:   "Module and action names must not be empty.",
		DocURL:   "https://fluxreg.dev/docs/errors/E106",
	},
	"E107": {
		Category: CategoryDefinition,
		Message:  "Store init failed",
		Detail:   "A store's Init function returned an error during construction.",
		DocURL:   "https://fluxreg.dev/docs/errors/E107",
	},
	"E108": {
		Category: CategoryDefinition,
		Message:  "Invalid manifest",
		Detail:   "The module manifest could not be parsed.",
		DocURL:   "https://fluxreg.dev/docs/errors/E108",
	},
	"E109": {
		Category: CategoryDefinition,
		Message:  "Unknown store implementation",
		Detail:   "A manifest module names a store implementation that does not exist.",
		DocURL:   "https://fluxreg.dev/docs/errors/E109",
	},

	// ============================================
	// Runtime Errors (E120-E139)
	// ============================================

	"E120": {
		Category: CategoryRuntime,
		Message:  "Handler failed",
		Detail:   "A store handler returned an error while handling an action.",
		DocURL:   "https://fluxreg.dev/docs/errors/E120",
	},
	"E121": {
		Category: CategoryRuntime,
		Message:  "Unknown action",
		Detail:   "The requested action is not part of the registry.",
		DocURL:   "https://fluxreg.dev/docs/errors/E121",
	},

	// ============================================
	// Hydration Errors (E140-E159)
	// ============================================

	"E140": {
		Category: CategoryHydration,
		Message:  "No matching store",
		Detail:   "Serialized state names a store the registry does not have.",
		DocURL:   "https://fluxreg.dev/docs/errors/E140",
	},
	"E141": {
		Category: CategoryHydration,
		Message:  "State type mismatch",
		Detail:   "Serialized state could not be converted to the store's state type.",
		DocURL:   "https://fluxreg.dev/docs/errors/E141",
	},

	// ============================================
	// Config Errors (E160-E179)
	// ============================================

	"E160": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "The fluxreg.json file could not be read or parsed.",
		DocURL:   "https://fluxreg.dev/docs/errors/E160",
	},
	"E161": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
		Detail:   "A configuration value is out of range or not recognized.",
		DocURL:   "https://fluxreg.dev/docs/errors/E161",
	},
	"E162": {
		Category: CategoryConfig,
		Message:  "Not a fluxreg project",
		Detail:   "No fluxreg.json was found in this directory or any parent.",
		DocURL:   "https://fluxreg.dev/docs/errors/E162",
	},

	// ============================================
	// Snapshot Errors (E180-E199)
	// ============================================

	"E180": {
		Category: CategorySnapshot,
		Message:  "Snapshot store unavailable",
		Detail:   "The snapshot backend returned an error.",
		DocURL:   "https://fluxreg.dev/docs/errors/E180",
	},
	"E181": {
		Category: CategorySnapshot,
		Message:  "Corrupt snapshot",
		Detail:   "The snapshot could not be decoded.",
		DocURL:   "https://fluxreg.dev/docs/errors/E181",
	},
	"E182": {
		Category: CategorySnapshot,
		Message:  "Unsupported snapshot version",
		Detail:   "The snapshot was written by a newer format version.",
		DocURL:   "https://fluxreg.dev/docs/errors/E182",
	},
	"E183": {
		Category: CategorySnapshot,
		Message:  "Snapshot not found",
		Detail:   "No snapshot exists under the given key, or it has expired.",
		DocURL:   "https://fluxreg.dev/docs/errors/E183",
	},

	// ============================================
	// CLI Errors (E200-E219)
	// ============================================

	"E200": {
		Category: CategoryCLI,
		Message:  "Unknown snapshot backend",
		Detail:   "Supported backends are memory, file and s3.",
		DocURL:   "https://fluxreg.dev/docs/errors/E200",
	},
}

// GetTemplate returns the template registered for code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// GetAllCodes returns every registered code in sorted order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
