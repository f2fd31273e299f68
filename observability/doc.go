// Package observability exports runkit spans and metrics over OTLP HTTP and
// reports service health.
//
//	tp, err := observability.InitTracer(ctx, &tracerCfg)
//	defer tp.Shutdown(ctx)
//	metrics, err := observability.NewMetrics(observability.Meter(observability.TracerName))
//
// Every run opens a SpanRun span through the tracing callback handler. An
// HTTP request opens a SpanHTTPRequest span with StartRequest, and the runs
// it drives nest under it.
package observability
