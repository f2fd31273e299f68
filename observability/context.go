package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Request follows one served request from its server span to its metrics.
// Runs started while serving it become children of the span.
type Request struct {
	Service   string
	Route     string
	RequestID string
	Start     time.Time

	span    trace.Span
	metrics *Metrics
}

type requestKey struct{}

// StartRequest opens a server span for route and records the request start.
// A nil metrics skips metric recording.
func StartRequest(ctx context.Context, service, route, requestID string, metrics *Metrics) (context.Context, *Request) {
	req := &Request{
		Service:   service,
		Route:     route,
		RequestID: requestID,
		Start:     time.Now(),
		metrics:   metrics,
	}

	ctx, req.span = StartSpan(ctx, SpanHTTPRequest, trace.WithSpanKind(trace.SpanKindServer))
	req.span.SetAttributes(
		attribute.String(AttrServiceName, service),
		attribute.String(AttrOperationName, route),
	)
	if requestID != "" {
		req.span.SetAttributes(attribute.String(AttrRequestID, requestID))
	}
	if metrics != nil {
		metrics.RecordRequestStart(ctx)
	}
	return context.WithValue(ctx, requestKey{}, req), req
}

// RequestFromContext returns the Request being served, or nil.
func RequestFromContext(ctx context.Context) *Request {
	req, _ := ctx.Value(requestKey{}).(*Request)
	return req
}

// End closes the span and records the request end with status. A non-nil
// err marks the span as failed.
func (r *Request) End(ctx context.Context, status string, err error) {
	d := r.Duration()
	if err != nil {
		RecordSpanError(r.span, err)
		r.span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	}
	r.span.SetAttributes(
		attribute.String(AttrStatus, status),
		attribute.Int64(AttrDurationMs, d.Milliseconds()),
	)
	r.span.End()

	if r.metrics != nil {
		r.metrics.RecordRequestEnd(ctx, r.Service, r.Route, status, d)
	}
}

// Duration returns the time since the request started.
func (r *Request) Duration() time.Duration {
	return time.Since(r.Start)
}
