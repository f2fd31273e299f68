package callbacks

import (
	"context"
	"time"

	"github.com/kbukum/runkit/errors"
	"github.com/kbukum/runkit/observability"
)

// MetricsHandler records run counts, durations, chunks and errors.
type MetricsHandler struct {
	metrics *observability.Metrics
}

// NewMetricsHandler returns a handler that records into metrics.
func NewMetricsHandler(metrics *observability.Metrics) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

func (h *MetricsHandler) OnStart(ctx context.Context, run RunInfo, _ any) {
	h.metrics.RecordRunStart(ctx, run.Name, run.Kind)
}

func (h *MetricsHandler) OnNewToken(ctx context.Context, run RunInfo, _ any) {
	h.metrics.RecordChunk(ctx, run.Name)
}

func (h *MetricsHandler) OnEnd(ctx context.Context, run RunInfo, _ any) {
	h.metrics.RecordRunEnd(ctx, run.Name, run.Kind, "ok", time.Since(run.StartTime))
}

func (h *MetricsHandler) OnError(ctx context.Context, run RunInfo, err error) {
	status := "error"
	if errors.IsCanceled(err) {
		status = "canceled"
	}
	h.metrics.RecordRunEnd(ctx, run.Name, run.Kind, status, time.Since(run.StartTime))

	code := string(errors.CodeOf(err))
	if code == "" {
		code = "UNKNOWN"
	}
	h.metrics.RecordError(ctx, code, run.Name)
}
