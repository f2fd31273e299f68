package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/runkit/logger"
)

// TracerName is the instrumentation scope of every span runkit opens.
const TracerName = "github.com/kbukum/runkit"

// Span names.
const (
	SpanRun         = "runnable.run"
	SpanHTTPRequest = "http.request"
)

// Span attribute keys.
const (
	AttrServiceName   = "service.name"
	AttrOperationName = "operation.name"
	AttrRequestID     = "request.id"
	AttrStatus        = "status"
	AttrDurationMs    = "duration_ms"
	AttrErrorCode     = "error.code"
	AttrErrorMessage  = "error.message"

	AttrRunID       = "run.id"
	AttrParentRunID = "run.parent_id"
	AttrRunName     = "run.name"
	AttrRunKind     = "run.kind"
	AttrRunTags     = "run.tags"
	AttrChunks      = "run.chunks"
)

// Exporter names the service and the OTLP HTTP collector that traces and
// metrics are pushed to.
type Exporter struct {
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	Environment    string `mapstructure:"environment"`
	// Endpoint is the collector host:port, e.g. "localhost:4318".
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

func defaultExporter(serviceName string) Exporter {
	return Exporter{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
	}
}

// resource describes the service. The service attributes are schemaless so
// merging never conflicts with the SDK default schema.
func (e Exporter) resource() (*resource.Resource, error) {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(e.ServiceName),
		semconv.ServiceVersion(e.ServiceVersion),
		attribute.String("environment", e.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}
	return res, nil
}

// TracerConfig configures InitTracer.
type TracerConfig struct {
	Exporter `mapstructure:",squash"`
	// SampleRate is the fraction of root traces kept, 0 to 1. Child spans
	// follow their parent.
	SampleRate float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

// DefaultTracerConfig samples everything and exports to a local collector.
func DefaultTracerConfig(serviceName string) TracerConfig {
	return TracerConfig{Exporter: defaultExporter(serviceName), SampleRate: 1.0}
}

func (c *TracerConfig) sampler() sdktrace.Sampler {
	switch {
	case c.SampleRate >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case c.SampleRate <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.SampleRate))
}

// InitTracer installs a batching OTLP tracer provider and the W3C
// propagators as the otel globals. The caller shuts the provider down.
func InitTracer(ctx context.Context, config *TracerConfig) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(config.Endpoint)}
	if config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	res, err := config.resource()
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(config.sampler()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("tracer initialized", logger.Fields(
		logger.FieldService, config.ServiceName,
		"endpoint", config.Endpoint,
		"sample_rate", config.SampleRate,
	))
	return tp, nil
}

func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartSpan starts a span on the runkit tracer of the global provider.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer(TracerName).Start(ctx, name, opts...)
}

func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// SetSpanAttribute sets one attribute on the span in ctx. Values Attribute
// cannot convert are dropped.
func SetSpanAttribute(ctx context.Context, key string, value any) {
	span := SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	if kv, ok := Attribute(key, value); ok {
		span.SetAttributes(kv)
	}
}

// Attribute converts scalars and string slices to a span attribute.
func Attribute(key string, value any) (attribute.KeyValue, bool) {
	k := attribute.Key(key)
	switch v := value.(type) {
	case string:
		return k.String(v), true
	case int:
		return k.Int(v), true
	case int64:
		return k.Int64(v), true
	case float64:
		return k.Float64(v), true
	case bool:
		return k.Bool(v), true
	case []string:
		return k.StringSlice(v), true
	default:
		return attribute.KeyValue{}, false
	}
}

func SetSpanError(ctx context.Context, err error) {
	RecordSpanError(SpanFromContext(ctx), err)
}

// RecordSpanError records err as a span event and marks the span failed.
func RecordSpanError(span trace.Span, err error) {
	if err == nil || !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
