package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"
	"github.com/vango-dev/fluxreg/internal/errors"
	"github.com/vango-dev/fluxreg/pkg/registry"
	"github.com/vango-dev/fluxreg/pkg/snapshot"
)

type runOptions struct {
	restore     string
	save        string
	ttl         time.Duration
	showMetrics bool
}

func runCmd(flags *globalFlags) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [action[=args]...]",
		Short: "Trigger actions and print the resulting state",
		Long: `Build the registry, optionally restore a snapshot, trigger each
action in order and print every store's dehydrated state.

Arguments after '=' are JSON. A JSON array is spread into several
arguments; anything that is not valid JSON is passed as a string.

Examples:
  fluxreg run increment increment=5
  fluxreg run addTodo=milk toggleTodo=1 --save today
  fluxreg run --restore today reset`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), flags, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.restore, "restore", "", "Restore the snapshot with this key first")
	cmd.Flags().StringVar(&opts.save, "save", "", "Save a snapshot under this key afterwards")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", 0, "Snapshot TTL (default from fluxreg.json)")
	cmd.Flags().BoolVar(&opts.showMetrics, "metrics", false, "Print collected metrics (requires metrics.enabled)")

	return cmd
}

// invocation is one parsed action argument.
type invocation struct {
	action string
	args   []any
}

// parseInvocation parses "name" or "name=json".
func parseInvocation(s string) (invocation, error) {
	name, raw, hasArgs := strings.Cut(s, "=")
	if name == "" {
		return invocation{}, errors.New("E121").WithDetailf("%q has no action name", s)
	}
	inv := invocation{action: name}
	if !hasArgs {
		return inv, nil
	}

	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		inv.args = []any{raw}
		return inv, nil
	}
	if list, ok := v.([]any); ok {
		inv.args = list
	} else {
		inv.args = []any{v}
	}
	return inv, nil
}

func runRun(ctx context.Context, flags *globalFlags, opts *runOptions, args []string) error {
	ctx = orBackground(ctx)

	invocations := make([]invocation, 0, len(args))
	for _, arg := range args {
		inv, err := parseInvocation(arg)
		if err != nil {
			return err
		}
		invocations = append(invocations, inv)
	}

	e, err := loadEnv(flags)
	if err != nil {
		return err
	}
	reg, err := e.build()
	defer e.stop()
	if err != nil {
		return err
	}
	if err := e.settle(ctx); err != nil {
		return err
	}

	for _, inv := range invocations {
		if _, ok := reg.Action(inv.action); !ok {
			return errors.New("E121").
				WithDetailf("action %q", inv.action).
				WithSuggestion("Known actions: " + strings.Join(reg.ActionNames(), ", "))
		}
	}

	var store snapshot.Store
	if opts.restore != "" || opts.save != "" {
		store, err = e.openSnapshotStore()
		if err != nil {
			return err
		}
		defer store.Close()
	}

	if opts.restore != "" {
		found, err := snapshot.Restore(ctx, store, opts.restore, reg)
		if err != nil {
			return err
		}
		if !found {
			return errors.New("E183").WithDetailf("key %q", opts.restore)
		}
		success("Restored snapshot %q", opts.restore)
	}

	for _, inv := range invocations {
		if err := reg.MustAction(inv.action).TriggerContext(ctx, inv.args...); err != nil {
			return fmt.Errorf("trigger %s: %w", inv.action, err)
		}
	}
	if err := e.settle(ctx); err != nil {
		return err
	}

	if n := e.failures.Load(); n > 0 {
		warn("%d handler error(s), see log output", n)
	}

	if opts.save != "" {
		ttl := opts.ttl
		if ttl == 0 {
			ttl, _ = e.cfg.SnapshotTTL()
		}
		if err := snapshot.Save(ctx, store, opts.save, reg, ttl); err != nil {
			return err
		}
		success("Saved snapshot %q", opts.save)
	}

	if err := printState(reg); err != nil {
		return err
	}
	if opts.showMetrics {
		return printMetrics(e.cfg.Metrics.Namespace)
	}
	return nil
}

func printState(reg *registry.Registry) error {
	state, err := reg.Dehydrate()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, string(data))
	return nil
}

// printMetrics prints counters and gauges under namespace from the default
// Prometheus registry.
func printMetrics(namespace string) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), namespace+"_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			value, ok := metricValue(mf.GetType(), m)
			if !ok {
				continue
			}
			info("%s%s %g", mf.GetName(), formatLabels(m.GetLabel()), value)
		}
	}
	return nil
}

func metricValue(t dto.MetricType, m *dto.Metric) (float64, bool) {
	switch t {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue(), true
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue(), true
	case dto.MetricType_HISTOGRAM:
		return float64(m.GetHistogram().GetSampleCount()), true
	default:
		return 0, false
	}
}

func formatLabels(labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return ""
	}
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = fmt.Sprintf("%s=%q", l.GetName(), l.GetValue())
	}
	return "{" + strings.Join(parts, ",") + "}"
}
