package callbacks

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/runkit/errors"
	"github.com/kbukum/runkit/observability"
)

// TracingHandler opens one OpenTelemetry span per run. A child run's span
// is parented to its parent run's span; root runs continue the span found
// in the context (for example an incoming request).
type TracingHandler struct {
	tracer      trace.Tracer
	serviceName string

	mu     sync.Mutex
	spans  map[string]trace.Span
	chunks map[string]int
}

// NewTracingHandler returns a handler that traces through the global provider.
func NewTracingHandler(serviceName string) *TracingHandler {
	return NewTracingHandlerWithTracer(observability.Tracer(observability.TracerName), serviceName)
}

// NewTracingHandlerWithTracer returns a handler that traces through tracer.
func NewTracingHandlerWithTracer(tracer trace.Tracer, serviceName string) *TracingHandler {
	return &TracingHandler{
		tracer:      tracer,
		serviceName: serviceName,
		spans:       make(map[string]trace.Span),
		chunks:      make(map[string]int),
	}
}

func (h *TracingHandler) OnStart(ctx context.Context, run RunInfo, _ any) {
	h.mu.Lock()
	parent, ok := h.spans[run.ParentRunID]
	h.mu.Unlock()
	if ok {
		ctx = trace.ContextWithSpan(ctx, parent)
	}

	attrs := []attribute.KeyValue{
		attribute.String(observability.AttrRunID, run.RunID),
		attribute.String(observability.AttrRunName, run.Name),
		attribute.String(observability.AttrRunKind, run.Kind),
	}
	if h.serviceName != "" {
		attrs = append(attrs, attribute.String(observability.AttrServiceName, h.serviceName))
	}
	if run.ParentRunID != "" {
		attrs = append(attrs, attribute.String(observability.AttrParentRunID, run.ParentRunID))
	}
	if len(run.Tags) > 0 {
		attrs = append(attrs, attribute.StringSlice(observability.AttrRunTags, run.Tags))
	}
	for k, v := range run.Metadata {
		if kv, ok := observability.Attribute("run.metadata."+k, v); ok {
			attrs = append(attrs, kv)
		}
	}

	_, span := h.tracer.Start(ctx, spanName(run),
		trace.WithTimestamp(run.StartTime),
		trace.WithAttributes(attrs...),
	)

	h.mu.Lock()
	h.spans[run.RunID] = span
	h.mu.Unlock()
}

func (h *TracingHandler) OnNewToken(_ context.Context, run RunInfo, _ any) {
	h.mu.Lock()
	h.chunks[run.RunID]++
	h.mu.Unlock()
}

func (h *TracingHandler) OnEnd(_ context.Context, run RunInfo, _ any) {
	span, chunks := h.take(run.RunID)
	if span == nil {
		return
	}
	if chunks > 0 {
		span.SetAttributes(attribute.Int(observability.AttrChunks, chunks))
	}
	span.SetAttributes(
		attribute.String(observability.AttrStatus, "ok"),
		attribute.Int64(observability.AttrDurationMs, time.Since(run.StartTime).Milliseconds()),
	)
	span.End()
}

func (h *TracingHandler) OnError(_ context.Context, run RunInfo, err error) {
	span, _ := h.take(run.RunID)
	if span == nil {
		return
	}
	status := "error"
	if errors.IsCanceled(err) {
		status = "canceled"
	}
	if code := errors.CodeOf(err); code != "" {
		span.SetAttributes(attribute.String(observability.AttrErrorCode, string(code)))
	}
	span.SetAttributes(attribute.String(observability.AttrStatus, status))
	observability.RecordSpanError(span, err)
	span.End()
}

// take removes and returns the span of a finished run.
func (h *TracingHandler) take(runID string) (trace.Span, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	span := h.spans[runID]
	chunks := h.chunks[runID]
	delete(h.spans, runID)
	delete(h.chunks, runID)
	return span, chunks
}

func spanName(run RunInfo) string {
	if run.Name == "" {
		return observability.SpanRun
	}
	return observability.SpanRun + " " + run.Name
}
