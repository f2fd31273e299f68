package callbacks

import (
	"context"
	"fmt"

	"github.com/kbukum/runkit/logger"
)

// Manager fans lifecycle notifications out to a fixed list of handlers.
// It is immutable once built and safe for concurrent use.
type Manager struct {
	handlers []Handler
	log      *logger.Logger
}

// NewManager returns a manager for handlers. Nil handlers are dropped.
// A nil log uses the "callbacks" logger from the registry.
func NewManager(log *logger.Logger, handlers ...Handler) *Manager {
	if log == nil {
		log = logger.Get("callbacks")
	}
	kept := make([]Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			kept = append(kept, h)
		}
	}
	return &Manager{handlers: kept, log: log}
}

// Len returns the number of handlers.
func (m *Manager) Len() int { return len(m.handlers) }

// StartRun dispatches OnStart, plus OnChainStart for chain runs.
func (m *Manager) StartRun(ctx context.Context, run RunInfo, input any) {
	for _, h := range m.handlers {
		if sh, ok := h.(StartHandler); ok {
			m.safely(run, "on_start", h, func() { sh.OnStart(ctx, run, input) })
		}
		if run.Kind == KindChain {
			if ch, ok := h.(ChainStartHandler); ok {
				m.safely(run, "on_chain_start", h, func() { ch.OnChainStart(ctx, run, input) })
			}
		}
	}
}

// EndRun dispatches OnEnd, plus OnChainEnd for chain runs.
func (m *Manager) EndRun(ctx context.Context, run RunInfo, output any) {
	for _, h := range m.handlers {
		if eh, ok := h.(EndHandler); ok {
			m.safely(run, "on_end", h, func() { eh.OnEnd(ctx, run, output) })
		}
		if run.Kind == KindChain {
			if ch, ok := h.(ChainEndHandler); ok {
				m.safely(run, "on_chain_end", h, func() { ch.OnChainEnd(ctx, run, output) })
			}
		}
	}
}

// ErrorRun dispatches OnError.
func (m *Manager) ErrorRun(ctx context.Context, run RunInfo, err error) {
	for _, h := range m.handlers {
		if eh, ok := h.(ErrorHandler); ok {
			m.safely(run, "on_error", h, func() { eh.OnError(ctx, run, err) })
		}
	}
}

// Token dispatches OnNewToken.
func (m *Manager) Token(ctx context.Context, run RunInfo, chunk any) {
	for _, h := range m.handlers {
		if th, ok := h.(TokenHandler); ok {
			m.safely(run, "on_new_token", h, func() { th.OnNewToken(ctx, run, chunk) })
		}
	}
}

func (m *Manager) safely(run RunInfo, hook string, h Handler, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.log.WithRun(run.RunID, run.ParentRunID, run.Name, run.Kind).Error("callback handler panicked", map[string]interface{}{
				"hook":    hook,
				"handler": fmt.Sprintf("%T", h),
				"panic":   fmt.Sprint(r),
			})
		}
	}()
	fn()
}
