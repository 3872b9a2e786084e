package main

import (
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vango-dev/fluxreg/internal/errors"
	"github.com/vango-dev/fluxreg/pkg/registry"
)

func checkCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "check [manifest]",
		Short: "Validate module declarations",
		Long: `Parse the module manifest, bind it to the store implementations
and build the registry, reporting every definition problem.

Examples:
  fluxreg check
  fluxreg check modules.hcl
  fluxreg check --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				flags.manifest = args[0]
			}
			if asJSON {
				return runCheckJSON(flags)
			}
			return runCheck(flags)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func runCheck(flags *globalFlags) error {
	e, err := loadEnv(flags)
	if err != nil {
		return err
	}

	defs, path, err := e.definitions()
	if err != nil {
		return err
	}
	reg, err := e.buildFrom(defs)
	defer e.stop()
	if err != nil {
		return err
	}

	source := path
	if source == "" {
		source = "built-in sample modules"
	}
	success("%s: %d modules, %d actions", source, len(reg.Names()), len(reg.ActionNames()))

	for _, name := range reg.Names() {
		info("%-12s listens to %s", name, orNone(listensTo(reg, name)))
	}
	return nil
}

// checkReport is the --json output of check.
type checkReport struct {
	OK       bool                `json:"ok"`
	Manifest string              `json:"manifest,omitempty"`
	Modules  map[string][]string `json:"modules,omitempty"`
	Actions  []string            `json:"actions,omitempty"`
	Problems []*errors.FluxError `json:"problems,omitempty"`
}

func runCheckJSON(flags *globalFlags) error {
	report := checkReport{}

	e, err := loadEnv(flags)
	if err == nil {
		report.Manifest, err = checkInto(e, &report)
	}
	if err != nil {
		report.Problems = problemsOf(err)
		if report.Problems == nil {
			return err
		}
	}
	report.OK = len(report.Problems) == 0

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	stdout.Write(append(data, '\n'))
	if !report.OK {
		return errReported
	}
	return nil
}

func checkInto(e *env, report *checkReport) (string, error) {
	defs, path, err := e.definitions()
	if err != nil {
		return path, err
	}
	reg, err := e.buildFrom(defs)
	defer e.stop()
	if err != nil {
		return path, err
	}

	report.Modules = make(map[string][]string, len(reg.Names()))
	for _, name := range reg.Names() {
		report.Modules[name] = listensTo(reg, name)
	}
	report.Actions = reg.ActionNames()
	return path, nil
}

// problemsOf flattens err into FluxErrors, or nil if it holds none.
func problemsOf(err error) []*errors.FluxError {
	var ve *registry.ValidationError
	if stderrors.As(err, &ve) {
		return ve.Problems
	}
	var fe *errors.FluxError
	if stderrors.As(err, &fe) {
		return []*errors.FluxError{fe}
	}
	return nil
}

func listensTo(reg *registry.Registry, name string) []string {
	store := reg.MustStore(name)
	var listens []string
	for _, action := range reg.ActionNames() {
		if store.ListensTo(action) {
			listens = append(listens, action)
		}
	}
	return listens
}

func orNone(items []string) string {
	if len(items) == 0 {
		return "(nothing)"
	}
	return strings.Join(items, ", ")
}
