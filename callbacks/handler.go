package callbacks

import (
	"context"
	"time"
)

// KindChain labels runs of composite units. Runs of this kind also receive
// the chain start and end hooks.
const KindChain = "chain"

// RunInfo identifies one run of a unit.
type RunInfo struct {
	RunID       string
	ParentRunID string
	Name        string
	Kind        string
	Tags        []string
	Metadata    map[string]any
	StartTime   time.Time
}

// IsRoot reports whether the run has no parent.
func (r RunInfo) IsRoot() bool { return r.ParentRunID == "" }

// Handler is any value implementing at least one hook interface below.
type Handler interface{}

// StartHandler observes the start of every run.
type StartHandler interface {
	OnStart(ctx context.Context, run RunInfo, input any)
}

// EndHandler observes successful completion of every run.
type EndHandler interface {
	OnEnd(ctx context.Context, run RunInfo, output any)
}

// ErrorHandler observes failed runs.
type ErrorHandler interface {
	OnError(ctx context.Context, run RunInfo, err error)
}

// TokenHandler observes every chunk a streaming run yields.
type TokenHandler interface {
	OnNewToken(ctx context.Context, run RunInfo, chunk any)
}

// ChainStartHandler observes the start of chain runs.
type ChainStartHandler interface {
	OnChainStart(ctx context.Context, run RunInfo, input any)
}

// ChainEndHandler observes successful completion of chain runs.
type ChainEndHandler interface {
	OnChainEnd(ctx context.Context, run RunInfo, output any)
}

// HandlerFuncs builds a handler from optional functions. Nil fields are skipped.
type HandlerFuncs struct {
	Start      func(ctx context.Context, run RunInfo, input any)
	End        func(ctx context.Context, run RunInfo, output any)
	Error      func(ctx context.Context, run RunInfo, err error)
	Token      func(ctx context.Context, run RunInfo, chunk any)
	ChainStart func(ctx context.Context, run RunInfo, input any)
	ChainEnd   func(ctx context.Context, run RunInfo, output any)
}

func (h HandlerFuncs) OnStart(ctx context.Context, run RunInfo, input any) {
	if h.Start != nil {
		h.Start(ctx, run, input)
	}
}

func (h HandlerFuncs) OnEnd(ctx context.Context, run RunInfo, output any) {
	if h.End != nil {
		h.End(ctx, run, output)
	}
}

func (h HandlerFuncs) OnError(ctx context.Context, run RunInfo, err error) {
	if h.Error != nil {
		h.Error(ctx, run, err)
	}
}

func (h HandlerFuncs) OnNewToken(ctx context.Context, run RunInfo, chunk any) {
	if h.Token != nil {
		h.Token(ctx, run, chunk)
	}
}

func (h HandlerFuncs) OnChainStart(ctx context.Context, run RunInfo, input any) {
	if h.ChainStart != nil {
		h.ChainStart(ctx, run, input)
	}
}

func (h HandlerFuncs) OnChainEnd(ctx context.Context, run RunInfo, output any) {
	if h.ChainEnd != nil {
		h.ChainEnd(ctx, run, output)
	}
}
