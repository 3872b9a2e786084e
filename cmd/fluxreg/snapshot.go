package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vango-dev/fluxreg/internal/errors"
	"github.com/vango-dev/fluxreg/pkg/snapshot"
)

func snapshotCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect and manage saved snapshots",
		Long: `Inspect and manage snapshots in the configured backend.

Examples:
  fluxreg snapshot list
  fluxreg snapshot show today
  fluxreg snapshot delete today`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List snapshot keys",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSnapshotStore(flags, func(store snapshot.Store) error {
					return runSnapshotList(cmd.Context(), store)
				})
			},
		},
		&cobra.Command{
			Use:   "show <key>",
			Short: "Print a snapshot",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSnapshotStore(flags, func(store snapshot.Store) error {
					return runSnapshotShow(cmd.Context(), store, args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "delete <key>",
			Short: "Delete a snapshot",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSnapshotStore(flags, func(store snapshot.Store) error {
					return runSnapshotDelete(cmd.Context(), store, args[0])
				})
			},
		},
	)
	return cmd
}

func withSnapshotStore(flags *globalFlags, fn func(snapshot.Store) error) error {
	e, err := loadEnv(flags)
	if err != nil {
		return err
	}
	store, err := e.openSnapshotStore()
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func runSnapshotList(ctx context.Context, store snapshot.Store) error {
	keys, err := store.Keys(orBackground(ctx))
	if err != nil {
		return errors.FromError(err, "E180")
	}
	if len(keys) == 0 {
		info("No snapshots")
		return nil
	}
	for _, key := range keys {
		fmt.Fprintln(stdout, key)
	}
	return nil
}

func runSnapshotShow(ctx context.Context, store snapshot.Store, key string) error {
	env, err := snapshot.Load(orBackground(ctx), store, key)
	if err != nil {
		return err
	}
	if env == nil {
		return errors.New("E183").WithDetailf("key %q", key)
	}

	info("Version: %d", env.Version)
	info("Created: %s", env.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	for _, name := range env.Names() {
		var pretty any
		if err := json.Unmarshal(env.Stores[name], &pretty); err != nil {
			return errors.New("E181").WithDetailf("store %q", name).Wrap(err)
		}
		data, _ := json.MarshalIndent(pretty, "    ", "  ")
		info("%s: %s", name, data)
	}
	return nil
}

func runSnapshotDelete(ctx context.Context, store snapshot.Store, key string) error {
	if err := store.Delete(orBackground(ctx), key); err != nil {
		return errors.FromError(err, "E180")
	}
	success("Deleted snapshot %q", key)
	return nil
}

func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
