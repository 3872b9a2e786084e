// Package middleware provides observability middleware for flux action
// deliveries.
//
// This package includes:
//   - OpenTelemetry tracing middleware
//   - Prometheus metrics middleware
//   - slog delivery logging
//
// Middleware is installed on a registry and wraps every delivery of every
// action to every listening store:
//
//	reg, err := registry.New(defs,
//	    registry.WithMiddleware(
//	        middleware.OpenTelemetry(middleware.WithTracerName("my-app")),
//	        middleware.Prometheus(middleware.WithNamespace("myapp")),
//	    ),
//	    registry.WithHydrateMiss(middleware.RecordHydrateMiss),
//	)
//
// # Prometheus Metrics
//
// The Prometheus middleware collects:
//   - fluxreg_deliveries_total: deliveries by action, store and status
//   - fluxreg_delivery_duration_seconds: handler duration by action
//   - fluxreg_delivery_errors_total: handler errors by action and error type
//   - fluxreg_hydrate_misses_total: serialized state with no matching store
//   - fluxreg_dispatcher_pending: deliveries queued on an async dispatcher
//
// # Context Propagation
//
// The OpenTelemetry middleware replaces the invocation context with the span
// context, so middleware further down the chain inherit the trace:
//
//	flux.MiddlewareFunc(func(inv *flux.Invocation, next func() error) error {
//	    if span := middleware.SpanFromInvocation(inv); span != nil {
//	        span.AddEvent("checked")
//	    }
//	    return next()
//	})
package middleware
