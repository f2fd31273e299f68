package observability

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/runkit/logger"
)

// MeterConfig configures InitMeter.
type MeterConfig struct {
	Exporter `mapstructure:",squash"`
	// Interval is the export period. Zero keeps the SDK default.
	Interval time.Duration `mapstructure:"interval"`
}

// DefaultMeterConfig exports to a local collector every 15s.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{Exporter: defaultExporter(serviceName), Interval: 15 * time.Second}
}

// InitMeter installs a periodic OTLP meter provider as the otel global. The
// caller shuts the provider down.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(config.Endpoint)}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}
	res, err := config.resource()
	if err != nil {
		return nil, err
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		logger.FieldService, config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))
	return mp, nil
}

func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the instruments for runs and for the HTTP surface that
// serves them.
type Metrics struct {
	runTotal        metric.Int64Counter
	runDuration     metric.Float64Histogram
	runActive       metric.Int64UpDownCounter
	chunkTotal      metric.Int64Counter
	requestTotal    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestActive   metric.Int64UpDownCounter
	errorTotal      metric.Int64Counter
}

// instruments collects the first error while creating instruments, so
// NewMetrics reads as a flat list.
type instruments struct {
	meter metric.Meter
	errs  []error
}

func (b *instruments) counter(name, desc string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc))
	b.check(name, err)
	return c
}

func (b *instruments) gauge(name, desc string) metric.Int64UpDownCounter {
	g, err := b.meter.Int64UpDownCounter(name, metric.WithDescription(desc))
	b.check(name, err)
	return g
}

func (b *instruments) seconds(name, desc string) metric.Float64Histogram {
	h, err := b.meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"))
	b.check(name, err)
	return h
}

func (b *instruments) check(name string, err error) {
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("creating %s: %w", name, err))
	}
}

// NewMetrics creates every instrument on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	b := &instruments{meter: meter}
	m := &Metrics{
		runTotal:        b.counter("run.total", "Completed runs by runnable, kind and status"),
		runDuration:     b.seconds("run.duration", "Run duration"),
		runActive:       b.gauge("run.active", "Runs currently executing"),
		chunkTotal:      b.counter("run.chunks", "Streamed chunks"),
		requestTotal:    b.counter("request.total", "Completed requests"),
		requestDuration: b.seconds("request.duration", "Request duration"),
		requestActive:   b.gauge("request.active", "Requests in flight"),
		errorTotal:      b.counter("error.total", "Errors by code and component"),
	}
	if err := stderrors.Join(b.errs...); err != nil {
		return nil, err
	}
	return m, nil
}

func runAttrs(runnable, kind string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("runnable", runnable),
		attribute.String("kind", kind),
	}
}

func (m *Metrics) RecordRunStart(ctx context.Context, runnable, kind string) {
	m.runActive.Add(ctx, 1, metric.WithAttributes(runAttrs(runnable, kind)...))
}

// RecordRunEnd closes a run opened by RecordRunStart.
func (m *Metrics) RecordRunEnd(ctx context.Context, runnable, kind, status string, duration time.Duration) {
	attrs := runAttrs(runnable, kind)
	m.runActive.Add(ctx, -1, metric.WithAttributes(attrs...))
	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.runTotal.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.String("status", status))...))
}

func (m *Metrics) RecordChunk(ctx context.Context, runnable string) {
	m.chunkTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("runnable", runnable)))
}

func (m *Metrics) RecordRequestStart(ctx context.Context) {
	m.requestActive.Add(ctx, 1)
}

// RecordRequestEnd closes a request opened by RecordRequestStart. Status is
// left off the duration histogram.
func (m *Metrics) RecordRequestEnd(ctx context.Context, service, method, status string, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("service", service),
		attribute.String("method", method),
	}
	m.requestActive.Add(ctx, -1)
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.String("status", status))...))
}

func (m *Metrics) RecordError(ctx context.Context, code, component string) {
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("code", code),
		attribute.String("component", component),
	))
}
