package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vango-dev/fluxreg/internal/errors"
)

func errorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "errors [code]",
		Short: "List error codes or explain one",
		Long: `Without arguments, list every fluxreg error code. With a code,
print its category, message and description.

Examples:
  fluxreg errors
  fluxreg errors E105`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runExplain(args[0])
			}
			for _, code := range errors.GetAllCodes() {
				t, _ := errors.GetTemplate(code)
				fmt.Fprintf(stdout, "%s  %-11s %s\n", code, t.Category, t.Message)
			}
			return nil
		},
	}
}

func runExplain(code string) error {
	code = strings.ToUpper(code)
	t, ok := errors.GetTemplate(code)
	if !ok {
		return errors.Newf(errors.CategoryCLI, "unknown error code %q", code).
			WithSuggestion("Run 'fluxreg errors' to list known codes")
	}
	fmt.Fprintf(stdout, "%s: %s\n", code, t.Message)
	info("Category: %s", t.Category)
	if t.Detail != "" {
		info("%s", t.Detail)
	}
	if t.DocURL != "" {
		info("Docs: %s", t.DocURL)
	}
	return nil
}
