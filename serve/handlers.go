package serve

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/runkit/errors"
	"github.com/kbukum/runkit/runnable"
	"github.com/kbukum/runkit/validation"
)

const headerRunID = "X-Run-Id"

// RequestConfig is the per-request part of a run configuration.
type RequestConfig struct {
	Tags           []string       `json:"tags,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Configurable   map[string]any `json:"configurable,omitempty"`
	RunName        string         `json:"run_name,omitempty"`
	RunID          string         `json:"run_id,omitempty"`
	MaxConcurrency int            `json:"max_concurrency,omitempty"`
}

// InvokeRequest is the body of invoke and stream calls.
type InvokeRequest struct {
	Input  any           `json:"input"`
	Config RequestConfig `json:"config"`
}

// InvokeResponse is the body of a successful invoke call.
type InvokeResponse struct {
	Output any    `json:"output"`
	RunID  string `json:"run_id"`
}

// BatchRequest is the body of a batch call. Configs, when set, holds one
// config per input; otherwise Config applies to every input.
type BatchRequest struct {
	Inputs           []any           `json:"inputs" binding:"required"`
	Config           RequestConfig   `json:"config"`
	Configs          []RequestConfig `json:"configs,omitempty"`
	ReturnExceptions bool            `json:"return_exceptions"`
}

// BatchResponse is the body of a successful batch call. With
// return_exceptions, Errors is aligned with Outputs and failed items have a
// null output.
type BatchResponse struct {
	Outputs []any               `json:"outputs"`
	Errors  []*errors.ErrorBody `json:"errors,omitempty"`
	RunIDs  []string            `json:"run_ids"`
}

// StreamEventsRequest is the body of a stream_events call.
type StreamEventsRequest struct {
	InvokeRequest
	IncludeNames []string        `json:"include_names,omitempty"`
	IncludeKinds []runnable.Kind `json:"include_kinds,omitempty"`
	IncludeTags  []string        `json:"include_tags,omitempty"`
	ExcludeNames []string        `json:"exclude_names,omitempty"`
	ExcludeKinds []runnable.Kind `json:"exclude_kinds,omitempty"`
	ExcludeTags  []string        `json:"exclude_tags,omitempty"`
}

func (r StreamEventsRequest) filter() runnable.EventFilter {
	return runnable.EventFilter{
		IncludeNames: r.IncludeNames,
		IncludeKinds: r.IncludeKinds,
		IncludeTags:  r.IncludeTags,
		ExcludeNames: r.ExcludeNames,
		ExcludeKinds: r.ExcludeKinds,
		ExcludeTags:  r.ExcludeTags,
	}
}

func (s *Server) invoke(r runnable.Runnable) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req InvokeRequest
		if !s.bind(c, &req) {
			return
		}
		cfg, err := s.runConfig(req.Config)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.Header(headerRunID, cfg.RunID)

		out, err := runnable.InvokeConfig(c.Request.Context(), r, req.Input, cfg)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, InvokeResponse{Output: out, RunID: cfg.RunID})
	}
}

func (s *Server) batch(r runnable.Runnable) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req BatchRequest
		if !s.bind(c, &req) {
			return
		}
		cfgs, err := s.batchConfigs(req)
		if err != nil {
			s.fail(c, err)
			return
		}
		runIDs := make([]string, len(cfgs))
		for i, cfg := range cfgs {
			runIDs[i] = cfg.RunID
		}

		outs, err := runnable.BatchWith(c.Request.Context(), r, req.Inputs, runnable.BatchOptions{
			Configs:  cfgs,
			FailFast: !req.ReturnExceptions,
		})
		resp := BatchResponse{Outputs: outs, RunIDs: runIDs}
		var be *runnable.BatchError
		switch {
		case err == nil:
		case req.ReturnExceptions && stderrors.As(err, &be):
			resp.Errors = make([]*errors.ErrorBody, len(be.Errs))
			for i, itemErr := range be.Errs {
				if itemErr != nil {
					resp.Errors[i] = errors.FromError(itemErr).Body()
				}
			}
		default:
			s.fail(c, err)
			return
		}
		if resp.Outputs == nil {
			resp.Outputs = []any{}
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) stream(r runnable.Runnable) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req InvokeRequest
		if !s.bind(c, &req) {
			return
		}
		cfg, err := s.runConfig(req.Config)
		if err != nil {
			s.fail(c, err)
			return
		}
		ctx := c.Request.Context()
		it, err := runnable.StreamConfig(ctx, r, req.Input, cfg)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.Header(headerRunID, cfg.RunID)

		sw := s.startSSE(c)
		items := pump(ctx, it.Next, it.Close)
		err = relay(ctx, sw, s.config.KeepAlive, items, func(v any) any { return v })
		s.finishSSE(c, sw, cfg.RunID, err)
	}
}

func (s *Server) streamEvents(r runnable.Runnable) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req StreamEventsRequest
		if !s.bind(c, &req) {
			return
		}
		cfg, err := s.runConfig(req.Config)
		if err != nil {
			s.fail(c, err)
			return
		}
		ctx := c.Request.Context()
		it, err := runnable.StreamEventsConfig(ctx, r, req.Input, cfg, req.filter())
		if err != nil {
			s.fail(c, err)
			return
		}
		c.Header(headerRunID, cfg.RunID)

		sw := s.startSSE(c)
		items := pump(ctx, it.Next, it.Close)
		err = relay(ctx, sw, s.config.KeepAlive, items, toWireEvent)
		s.finishSSE(c, sw, cfg.RunID, err)
	}
}

// wireEvent is the JSON form of a run event. The error of an error event
// is carried as an error body.
type wireEvent struct {
	runnable.Event
	Error *errors.ErrorBody `json:"error,omitempty"`
}

func toWireEvent(e runnable.Event) any {
	w := wireEvent{Event: e}
	if e.Data.Error != nil {
		w.Error = errors.FromError(e.Data.Error).Body()
	}
	return w
}

// bind decodes the JSON body into dst and reports decoding failures as
// invalid input.
func (s *Server) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		s.fail(c, errors.InvalidInput("body", err.Error()).WithCause(err))
		return false
	}
	return true
}

// runConfig merges rc onto the server's base config. A missing run id is
// generated so it can be returned to the caller.
func (s *Server) runConfig(rc RequestConfig) (runnable.Config, error) {
	err := validation.New().
		OptionalUUID("config.run_id", rc.RunID).
		Min("config.max_concurrency", rc.MaxConcurrency, 0).
		Validate()
	if err != nil {
		return runnable.Config{}, err
	}

	runID := rc.RunID
	if runID == "" {
		runID = uuid.Must(uuid.NewV7()).String()
	}
	override := runnable.NewConfig(
		runnable.WithTags(rc.Tags...),
		runnable.WithMetadata(rc.Metadata),
		runnable.WithConfigurable(rc.Configurable),
		runnable.WithRunName(rc.RunName),
		runnable.WithRunID(runID),
		runnable.WithMaxConcurrency(rc.MaxConcurrency),
		runnable.WithCallbacks(s.handlers...),
	)
	return runnable.MergeConfigs(s.runCfg(), override), nil
}

func (s *Server) batchConfigs(req BatchRequest) ([]runnable.Config, error) {
	n := len(req.Inputs)
	if len(req.Configs) > 0 && len(req.Configs) != n {
		return nil, errors.InvalidInput("configs",
			fmt.Sprintf("got %d configs for %d inputs", len(req.Configs), n))
	}
	if len(req.Configs) == 0 && req.Config.RunID != "" && n > 1 {
		return nil, errors.InvalidInput("config.run_id", "a shared config cannot fix the run id of several inputs")
	}

	cfgs := make([]runnable.Config, n)
	for i := range cfgs {
		rc := req.Config
		if len(req.Configs) > 0 {
			rc = req.Configs[i]
		}
		cfg, err := s.runConfig(rc)
		if err != nil {
			return nil, err
		}
		cfgs[i] = cfg
	}
	return cfgs, nil
}

// fail writes err as a JSON error response with its AppError status.
func (s *Server) fail(c *gin.Context, err error) {
	appErr := errors.FromError(err)
	_ = c.Error(err)
	if s.metrics != nil {
		s.metrics.RecordError(c.Request.Context(), string(appErr.Code), "serve")
	}
	c.AbortWithStatusJSON(errors.StatusOf(err), appErr.ToResponse())
}
