package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/vango-dev/fluxreg/pkg/flux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type recordingProvider struct {
	noop.TracerProvider
	mu    sync.Mutex
	spans []*recordedSpan
}

func (p *recordingProvider) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return &recordingTracer{provider: p}
}

type recordingTracer struct {
	noop.Tracer
	provider *recordingProvider
}

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	span := &recordedSpan{
		name:  name,
		attrs: cfg.Attributes(),
		sc: trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    trace.TraceID{1},
			SpanID:     trace.SpanID{byte(len(t.provider.spans) + 1)},
			TraceFlags: trace.FlagsSampled,
		}),
	}
	t.provider.mu.Lock()
	t.provider.spans = append(t.provider.spans, span)
	t.provider.mu.Unlock()
	return trace.ContextWithSpan(ctx, span), span
}

type recordedSpan struct {
	noop.Span
	name   string
	attrs  []attribute.KeyValue
	sc     trace.SpanContext
	status codes.Code
	errs   []error
	ended  bool
}

func (s *recordedSpan) SpanContext() trace.SpanContext { return s.sc }
func (s *recordedSpan) IsRecording() bool              { return !s.ended }
func (s *recordedSpan) End(...trace.SpanEndOption)     { s.ended = true }
func (s *recordedSpan) SetStatus(c codes.Code, _ string) {
	s.status = c
}
func (s *recordedSpan) RecordError(err error, _ ...trace.EventOption) {
	s.errs = append(s.errs, err)
}

func (s *recordedSpan) attr(key string) (attribute.Value, bool) {
	for _, kv := range s.attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestOpenTelemetry_SpanPerDelivery(t *testing.T) {
	tp := &recordingProvider{}
	mw := OpenTelemetry(
		WithTracerProvider(tp),
		WithIncludeArgs(true),
		WithAttributeExtractor(func(*flux.Invocation) []attribute.KeyValue {
			return []attribute.KeyValue{attribute.String("test.attr", "ok")}
		}),
	)

	inv := &flux.Invocation{Context: context.Background(), Action: "add", Store: "Todos", Args: []any{"x", 2}}
	err := mw.Handle(inv, func() error {
		if SpanFromInvocation(inv) == nil {
			t.Fatal("expected a span during execution")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(tp.spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(tp.spans))
	}
	span := tp.spans[0]
	if span.name != "flux.add" {
		t.Errorf("span name = %q", span.name)
	}
	if !span.ended || span.status != codes.Ok {
		t.Errorf("span ended=%v status=%v", span.ended, span.status)
	}
	if v, _ := span.attr("flux.store"); v.AsString() != "Todos" {
		t.Errorf("flux.store = %q", v.AsString())
	}
	if v, _ := span.attr("flux.args.types"); strings.Join(v.AsStringSlice(), ",") != "string,int" {
		t.Errorf("flux.args.types = %v", v.AsStringSlice())
	}
	if _, ok := span.attr("test.attr"); !ok {
		t.Error("custom attribute missing")
	}
	if SpanFromInvocation(inv) != nil {
		t.Error("invocation context not restored after delivery")
	}
}

func TestOpenTelemetry_RecordsError(t *testing.T) {
	tp := &recordingProvider{}
	mw := OpenTelemetry(WithTracerProvider(tp))

	boom := errors.New("boom")
	inv := &flux.Invocation{Action: "save"}
	if err := mw.Handle(inv, func() error { return boom }); err != boom {
		t.Fatalf("error = %v, want %v", err, boom)
	}

	span := tp.spans[0]
	if span.status != codes.Error || len(span.errs) != 1 || span.errs[0] != boom {
		t.Errorf("status=%v errs=%v", span.status, span.errs)
	}
	if _, ok := span.attr("flux.args.count"); ok {
		t.Error("args recorded without WithIncludeArgs")
	}
}

func TestOpenTelemetry_Filter(t *testing.T) {
	tp := &recordingProvider{}
	mw := OpenTelemetry(
		WithTracerProvider(tp),
		WithDeliveryFilter(func(inv *flux.Invocation) bool { return inv.Action != "tick" }),
	)

	called := false
	_ = mw.Handle(&flux.Invocation{Action: "tick"}, func() error { called = true; return nil })
	if !called {
		t.Fatal("next not called for filtered delivery")
	}
	if len(tp.spans) != 0 {
		t.Errorf("filtered delivery traced: %d spans", len(tp.spans))
	}
}

func TestOpenTelemetry_GlobalNoopProvider(t *testing.T) {
	mw := OpenTelemetry()
	inv := &flux.Invocation{Action: "a"}
	err := mw.Handle(inv, func() error {
		if SpanFromInvocation(inv) != nil {
			t.Error("noop provider produced a recording span")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	mw := Logging(logger)

	_ = mw.Handle(&flux.Invocation{Action: "ok", Store: "S"}, func() error { return nil })
	_ = mw.Handle(&flux.Invocation{Action: "bad", Store: "S"}, func() error { return errors.New("nope") })

	out := buf.String()
	if !strings.Contains(out, `msg="flux: delivered" action=ok store=S`) {
		t.Errorf("missing debug line:\n%s", out)
	}
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "error=nope") {
		t.Errorf("missing warn line:\n%s", out)
	}
}
