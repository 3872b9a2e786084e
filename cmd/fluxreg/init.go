package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/vango-dev/fluxreg/internal/config"
	"github.com/vango-dev/fluxreg/internal/errors"
	"github.com/vango-dev/fluxreg/internal/sample"
)

func initCmd() *cobra.Command {
	var (
		name    string
		backend string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create fluxreg.json and a sample manifest",
		Long: `Create a fluxreg.json and a fluxreg.hcl declaring the sample
Counter, Todos and History modules.

Examples:
  fluxreg init
  fluxreg init demo --backend memory`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(dir, name, backend, force)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Project name (default: directory name)")
	cmd.Flags().StringVar(&backend, "backend", config.BackendFile, "Snapshot backend: memory, file or s3")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing files")

	return cmd
}

func runInit(dir, name, backend string, force bool) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return err
	}

	if !force && config.Exists(abs) {
		return errors.Newf(errors.CategoryCLI, "%s already exists in %s", config.ConfigFileName, abs).
			WithSuggestion("Use --force to overwrite")
	}

	cfg := config.New()
	cfg.Name = name
	if cfg.Name == "" {
		cfg.Name = filepath.Base(abs)
	}
	cfg.Snapshot.Backend = backend
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.SaveTo(filepath.Join(abs, config.ConfigFileName)); err != nil {
		return err
	}
	success("Created %s", config.ConfigFileName)

	manifestPath := cfg.ManifestPath()
	if _, err := os.Stat(manifestPath); err == nil && !force {
		warn("Kept existing %s", filepath.Base(manifestPath))
		return nil
	}
	if err := os.WriteFile(manifestPath, []byte(sample.Manifest), 0644); err != nil {
		return err
	}
	success("Created %s", filepath.Base(manifestPath))
	info("Next: fluxreg check && fluxreg run increment")
	return nil
}
