package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/vango-dev/fluxreg/internal/errors"
	"github.com/vango-dev/fluxreg/pkg/registry"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Output streams, replaced in tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	manifest   string
	logLevel   string
	noColor    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		printErr(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "fluxreg",
		Short: "Build and inspect flux module registries",
		Long: `fluxreg builds a registry of actions and stores from module
declarations, triggers actions against it and persists its state.

  • Modules are declared in an HCL manifest (fluxreg.hcl)
  • Store behavior is implemented in Go
  • State snapshots go to memory, disk or S3`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.noColor {
				errors.DisableColors()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to fluxreg.json (default: search upward from the working directory)")
	rootCmd.PersistentFlags().StringVarP(&flags.manifest, "manifest", "m", "", "Path to the module manifest (default from fluxreg.json)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		initCmd(),
		checkCmd(flags),
		runCmd(flags),
		snapshotCmd(flags),
		errorsCmd(),
		versionCmd(),
	)
	return rootCmd
}

// errReported is returned by commands that already printed their failure.
var errReported = stderrors.New("fluxreg: failure already reported")

// printErr prints err, expanding definition problems one per block.
func printErr(err error) {
	if stderrors.Is(err, errReported) {
		return
	}
	errors.Fprint(stderr, err)
	if ve, ok := err.(*registry.ValidationError); ok {
		errorMsg("%d definition error(s)", len(ve.Problems))
	}
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Fprintf(stdout, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Fprintf(stdout, "  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Fprintf(stdout, "\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}

// errorMsg prints an error message.
func errorMsg(format string, args ...any) {
	fmt.Fprintf(stderr, "\033[31m✗\033[0m %s\n", fmt.Sprintf(format, args...))
}
