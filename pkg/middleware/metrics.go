package middleware

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	fluxerrors "github.com/vango-dev/fluxreg/internal/errors"
	"github.com/vango-dev/fluxreg/pkg/flux"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "fluxreg").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for delivery duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "fluxreg",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

type metrics struct {
	deliveriesTotal   *prometheus.CounterVec
	deliveryDuration  *prometheus.HistogramVec
	deliveryErrors    *prometheus.CounterVec
	hydrateMisses     *prometheus.CounterVec
	dispatcherPending prometheus.Gauge
	dispatcherDropped prometheus.Gauge
}

// globalMetrics is created on the first call to Prometheus().
var (
	globalMetrics   *metrics
	globalMetricsMu sync.Mutex
)

func initMetrics(config MetricsConfig) *metrics {
	factory := promauto.With(config.Registry)

	return &metrics{
		deliveriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "deliveries_total",
			Help:        "Total number of action deliveries to listeners",
			ConstLabels: config.ConstLabels,
		}, []string{"action", "store", "status"}),

		deliveryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "delivery_duration_seconds",
			Help:        "Handler duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"action"}),

		deliveryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "delivery_errors_total",
			Help:        "Total number of handler errors",
			ConstLabels: config.ConstLabels,
		}, []string{"action", "error_type"}),

		hydrateMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "hydrate_misses_total",
			Help:        "Serialized state entries with no matching store",
			ConstLabels: config.ConstLabels,
		}, []string{"store"}),

		dispatcherPending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "dispatcher_pending",
			Help:        "Deliveries queued on the async dispatcher",
			ConstLabels: config.ConstLabels,
		}),

		dispatcherDropped: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "dispatcher_dropped",
			Help:        "Deliveries rejected because the async queue was full",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Prometheus creates middleware that collects Prometheus metrics for action
// deliveries. Metrics are registered once per process; options passed to
// later calls are ignored.
//
// Example:
//
//	reg, err := registry.New(defs,
//	    registry.WithMiddleware(middleware.Prometheus(middleware.WithNamespace("myapp"))),
//	)
//
//	// Expose metrics endpoint
//	http.Handle("/metrics", promhttp.Handler())
func Prometheus(opts ...MetricsOption) flux.Middleware {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	globalMetricsMu.Lock()
	if globalMetrics == nil {
		globalMetrics = initMetrics(config)
	}
	m := globalMetrics
	globalMetricsMu.Unlock()

	return flux.MiddlewareFunc(func(inv *flux.Invocation, next func() error) error {
		store := inv.Store
		if store == "" {
			store = "listener"
		}

		start := time.Now()
		err := next()
		m.deliveryDuration.WithLabelValues(inv.Action).Observe(time.Since(start).Seconds())

		status := "success"
		if err != nil {
			status = "error"
			m.deliveryErrors.WithLabelValues(inv.Action, categorizeError(err)).Inc()
		}
		m.deliveriesTotal.WithLabelValues(inv.Action, store, status).Inc()

		return err
	})
}

// categorizeError returns a low-cardinality label for err.
func categorizeError(err error) string {
	var pe *flux.PanicError
	if errors.As(err, &pe) {
		return "panic"
	}
	var tm *flux.TypeMismatchError
	if errors.As(err, &tm) {
		return "type_mismatch"
	}
	var fe *fluxerrors.FluxError
	if errors.As(err, &fe) && fe.Code != "" {
		return string(fe.Category)
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline"):
		return "timeout"
	case strings.Contains(errStr, "not found"):
		return "not_found"
	case strings.Contains(errStr, "validation"), strings.Contains(errStr, "invalid"):
		return "validation"
	default:
		return "internal"
	}
}

// RecordHydrateMiss counts serialized state naming an unknown store.
// It has the signature registry.WithHydrateMiss expects.
func RecordHydrateMiss(store string) {
	if m := currentMetrics(); m != nil {
		m.hydrateMisses.WithLabelValues(store).Inc()
	}
}

// RecordDispatcherStats publishes async dispatcher counters.
func RecordDispatcherStats(stats flux.AsyncStats) {
	if m := currentMetrics(); m != nil {
		m.dispatcherPending.Set(float64(stats.Pending))
		m.dispatcherDropped.Set(float64(stats.Dropped))
	}
}

// currentMetrics returns the global metrics, or nil before Prometheus().
func currentMetrics() *metrics {
	globalMetricsMu.Lock()
	defer globalMetricsMu.Unlock()
	return globalMetrics
}
