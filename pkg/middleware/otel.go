package middleware

import (
	"context"
	"fmt"

	"github.com/vango-dev/fluxreg/pkg/flux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultTracerName = "fluxreg"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "fluxreg").
	TracerName string

	// IncludeArgs records the number and Go types of action arguments.
	// Argument values are never recorded.
	IncludeArgs bool

	// Filter determines which deliveries to trace.
	// If nil, all deliveries are traced.
	Filter func(inv *flux.Invocation) bool

	// AttributeExtractor adds custom attributes for each traced delivery.
	AttributeExtractor func(inv *flux.Invocation) []attribute.KeyValue

	// TracerProvider overrides the global provider.
	TracerProvider trace.TracerProvider

	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithIncludeArgs enables recording argument types.
func WithIncludeArgs(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeArgs = include
	}
}

// WithDeliveryFilter sets a filter function for deliveries.
func WithDeliveryFilter(filter func(inv *flux.Invocation) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(inv *flux.Invocation) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName: defaultTracerName,
	}
}

// OpenTelemetry creates middleware that traces every action delivery.
//
// The middleware:
//   - Creates a span "flux.<action>" with the action and store names
//   - Replaces the invocation context with the span context
//   - Records errors and sets span status
//
// The tracer uses the global OpenTelemetry tracer provider unless
// WithTracerProvider is given. Configure it in main():
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...OTelOption) flux.Middleware {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}

	if config.TracerProvider != nil {
		config.tracer = config.TracerProvider.Tracer(config.TracerName)
	} else {
		config.tracer = otel.Tracer(config.TracerName)
	}

	return flux.MiddlewareFunc(func(inv *flux.Invocation, next func() error) error {
		if config.Filter != nil && !config.Filter(inv) {
			return next()
		}

		attrs := []attribute.KeyValue{
			attribute.String("flux.action", inv.Action),
			attribute.String("flux.store", inv.Store),
		}
		if config.IncludeArgs {
			types := make([]string, len(inv.Args))
			for i, arg := range inv.Args {
				types[i] = fmt.Sprintf("%T", arg)
			}
			attrs = append(attrs,
				attribute.Int("flux.args.count", len(inv.Args)),
				attribute.StringSlice("flux.args.types", types),
			)
		}
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(inv)...)
		}

		parent := inv.Context
		if parent == nil {
			parent = context.Background()
		}
		spanCtx, span := config.tracer.Start(
			parent,
			"flux."+inv.Action,
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		inv.Context = spanCtx
		err := next()
		inv.Context = parent

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return err
	})
}

// SpanFromInvocation returns the span recording inv, or nil when the
// delivery is not being traced.
func SpanFromInvocation(inv *flux.Invocation) trace.Span {
	if inv == nil || inv.Context == nil {
		return nil
	}
	span := trace.SpanFromContext(inv.Context)
	if !span.SpanContext().IsValid() && !span.IsRecording() {
		return nil
	}
	return span
}
