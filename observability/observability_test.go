package observability

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func TestDefaultTracerConfig(t *testing.T) {
	cfg := DefaultTracerConfig("test-service")

	if cfg.ServiceName != "test-service" {
		t.Errorf("expected ServiceName 'test-service', got %s", cfg.ServiceName)
	}
	if cfg.Endpoint != "localhost:4318" {
		t.Errorf("expected Endpoint 'localhost:4318', got %s", cfg.Endpoint)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected SampleRate 1.0, got %f", cfg.SampleRate)
	}
	if !cfg.Insecure {
		t.Error("expected Insecure to be true")
	}
}

func TestDefaultMeterConfig(t *testing.T) {
	cfg := DefaultMeterConfig("test-service")

	if cfg.ServiceName != "test-service" {
		t.Errorf("expected ServiceName 'test-service', got %s", cfg.ServiceName)
	}
	if cfg.Interval != 15*time.Second {
		t.Errorf("expected Interval 15s, got %v", cfg.Interval)
	}
}

func TestNewMetrics(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	metrics, err := NewMetrics(meter)
	if err != nil {
		t.Fatalf("unexpected error creating metrics: %v", err)
	}

	ctx := context.Background()
	metrics.RecordRunStart(ctx, "summarize", "chain")
	metrics.RecordChunk(ctx, "summarize")
	metrics.RecordRunEnd(ctx, "summarize", "chain", "ok", 100*time.Millisecond)
	metrics.RecordRequestStart(ctx)
	metrics.RecordRequestEnd(ctx, "svc", "POST /chat/invoke", "ok", 100*time.Millisecond)
	metrics.RecordError(ctx, "TIMEOUT", "chat")
}

func TestStartRequest(t *testing.T) {
	rec := withRecorder(t)

	ctx, req := StartRequest(context.Background(), "runkit", "/chat/invoke", "req-1", nil)
	if RequestFromContext(ctx) != req {
		t.Fatal("expected the request in its context")
	}
	if RequestFromContext(context.Background()) != nil {
		t.Error("expected nil without a request")
	}
	if !SpanFromContext(ctx).SpanContext().IsValid() {
		t.Error("expected a server span in the request context")
	}

	req.End(ctx, "200", nil)
	spans := rec.Ended()
	if len(spans) != 1 || spans[0].Name() != SpanHTTPRequest {
		t.Fatalf("expected one %s span, got %d", SpanHTTPRequest, len(spans))
	}
	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs[AttrOperationName] != "/chat/invoke" || attrs[AttrRequestID] != "req-1" || attrs[AttrStatus] != "200" {
		t.Errorf("unexpected attributes %v", attrs)
	}
}

func TestRequest_Duration(t *testing.T) {
	_, req := StartRequest(context.Background(), "runkit", "op", "", nil)
	req.Start = time.Now().Add(-50 * time.Millisecond)

	if d := req.Duration(); d < 45*time.Millisecond || d > 200*time.Millisecond {
		t.Errorf("expected duration around 50ms, got %v", d)
	}
}

func TestRequest_EndWithErrorMarksSpan(t *testing.T) {
	rec := withRecorder(t)
	metrics, _ := NewMetrics(noop.NewMeterProvider().Meter("test"))

	ctx, req := StartRequest(context.Background(), "runkit", "/chat/invoke", "req-1", metrics)
	req.End(ctx, "500", fmt.Errorf("something failed"))

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 ended span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", spans[0].Status())
	}
}

func TestServiceHealth(t *testing.T) {
	sh := NewServiceHealth("runkit", "1.0.0")
	if sh.Status != HealthStatusUp {
		t.Errorf("expected Status 'up', got %s", sh.Status)
	}

	sh.Check(context.Background(),
		HealthCheckerFunc(func(context.Context) Health { return Health{Name: "registry", Status: HealthStatusUp} }),
		HealthCheckerFunc(func(context.Context) Health { return Health{Name: "llm", Status: HealthStatusDegraded} }),
	)
	if sh.Status != HealthStatusDegraded {
		t.Errorf("expected status 'degraded', got %s", sh.Status)
	}

	sh.AddComponent(Health{Name: "queue", Status: HealthStatusDown})
	sh.AddComponent(Health{Name: "other", Status: HealthStatusDegraded})
	if sh.Status != HealthStatusDown {
		t.Errorf("expected 'down' not overridden by 'degraded', got %s", sh.Status)
	}
	if len(sh.Components) != 4 {
		t.Errorf("expected 4 components, got %d", len(sh.Components))
	}
}

func TestStartSpan_Recorded(t *testing.T) {
	rec := withRecorder(t)

	ctx, span := StartSpan(context.Background(), SpanRun)
	SetSpanAttribute(ctx, AttrRunName, "upper")
	SetSpanAttribute(ctx, AttrChunks, 3)
	SetSpanAttribute(ctx, AttrRunTags, []string{"a", "b"})
	SetSpanAttribute(ctx, "unsupported", struct{}{})
	SetSpanError(ctx, fmt.Errorf("boom"))
	span.End()

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := spans[0]
	if s.Name() != SpanRun {
		t.Errorf("expected span name %q, got %q", SpanRun, s.Name())
	}
	if s.InstrumentationScope().Name != TracerName {
		t.Errorf("expected scope %q, got %q", TracerName, s.InstrumentationScope().Name)
	}
	if len(s.Attributes()) != 3 {
		t.Errorf("expected 3 attributes, got %v", s.Attributes())
	}
	if s.Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", s.Status())
	}
}

func TestSpanHelpers_NoSpan(t *testing.T) {
	ctx := context.Background()
	SetSpanAttribute(ctx, "key", "value")
	SetSpanError(ctx, fmt.Errorf("no span error"))
	if SpanFromContext(ctx) == nil {
		t.Fatal("expected non-nil noop span")
	}
}

func TestAttribute(t *testing.T) {
	tests := []struct {
		value any
		ok    bool
	}{
		{"s", true},
		{1, true},
		{int64(1), true},
		{1.5, true},
		{true, true},
		{[]string{"x"}, true},
		{map[string]any{}, false},
	}
	for _, tc := range tests {
		if _, ok := Attribute("k", tc.value); ok != tc.ok {
			t.Errorf("Attribute(%T) ok = %v, want %v", tc.value, ok, tc.ok)
		}
	}
}

func TestInitTracerSamplingRates(t *testing.T) {
	for _, rate := range []float64{1.0, 0.0, 0.5} {
		cfg := DefaultTracerConfig("test")
		cfg.SampleRate = rate
		tp, err := InitTracer(context.Background(), &cfg)
		if err != nil {
			t.Fatalf("InitTracer(rate=%v) error = %v", rate, err)
		}
		shutdown(tp.Shutdown)
	}
}

func TestInitMeter(t *testing.T) {
	cfg := DefaultMeterConfig("test-service")
	mp, err := InitMeter(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("InitMeter() error = %v", err)
	}
	shutdown(mp.Shutdown)
}

// shutdown bounds provider shutdown; no collector listens in tests.
func shutdown(fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = fn(ctx)
}
