package callbacks

import (
	"context"
	"time"

	"github.com/kbukum/runkit/errors"
	"github.com/kbukum/runkit/logger"
)

// LoggingHandler writes one line per run lifecycle step.
// Starts and successful ends log at debug level; root runs end at info.
type LoggingHandler struct {
	log *logger.Logger
}

// NewLoggingHandler returns a handler that logs through log.
func NewLoggingHandler(log *logger.Logger) *LoggingHandler {
	if log == nil {
		log = logger.Get("runs")
	}
	return &LoggingHandler{log: log}
}

func (h *LoggingHandler) runLog(run RunInfo) *logger.Logger {
	return h.log.WithRun(run.RunID, run.ParentRunID, run.Name, run.Kind)
}

func (h *LoggingHandler) OnStart(_ context.Context, run RunInfo, _ any) {
	fields := map[string]interface{}{}
	if len(run.Tags) > 0 {
		fields[logger.FieldTags] = run.Tags
	}
	h.runLog(run).Debug("run started", fields)
}

func (h *LoggingHandler) OnEnd(_ context.Context, run RunInfo, _ any) {
	fields := logger.MergeWithDuration(nil, time.Since(run.StartTime))
	fields[logger.FieldStatus] = "ok"
	if run.IsRoot() {
		h.runLog(run).Info("run finished", fields)
		return
	}
	h.runLog(run).Debug("run finished", fields)
}

func (h *LoggingHandler) OnError(_ context.Context, run RunInfo, err error) {
	fields := logger.MergeWithDuration(logger.MergeWithError(nil, err), time.Since(run.StartTime))
	if errors.IsCanceled(err) {
		fields[logger.FieldStatus] = "canceled"
		h.runLog(run).Warn("run cancelled", fields)
		return
	}
	fields[logger.FieldStatus] = "error"
	if code := errors.CodeOf(err); code != "" {
		fields["code"] = string(code)
	}
	h.runLog(run).Error("run failed", fields)
}
