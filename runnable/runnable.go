package runnable

import (
	"context"

	"github.com/kbukum/runkit/callbacks"
)

// Kind labels the runs of a unit in callbacks and events.
type Kind string

const (
	KindChain     Kind = callbacks.KindChain
	KindLLM       Kind = "llm"
	KindChatModel Kind = "chat_model"
	KindTool      Kind = "tool"
	KindRetriever Kind = "retriever"
	KindPrompt    Kind = "prompt"
	KindParser    Kind = "parser"
	KindLambda    Kind = "lambda"
)

// Runnable is a composable unit of work.
//
// Invoke receives the configuration derived for this run. Implementations
// that call other units must pass cfg to InvokeConfig or StreamConfig so the
// nested runs are linked to this one.
type Runnable interface {
	Name() string
	Invoke(ctx context.Context, input any, cfg Config) (any, error)
}

// Streamer is implemented by units with native incremental output. The
// chunks of a stream folded with chunk.Concat must equal the Invoke result.
type Streamer interface {
	Stream(ctx context.Context, input any, cfg Config) (Iterator, error)
}

// Batcher is implemented by units with a native batch path. cfgs has one
// entry per input. A *BatchError reports per-item failures; any other error
// fails every item.
type Batcher interface {
	Batch(ctx context.Context, inputs []any, cfgs []Config) ([]any, error)
}

// Kinder is implemented by units that label their runs with a Kind other
// than KindChain.
type Kinder interface {
	Kind() Kind
}

// KindOf returns the kind of r, defaulting to KindChain.
func KindOf(r Runnable) Kind {
	if k, ok := r.(Kinder); ok && k.Kind() != "" {
		return k.Kind()
	}
	return KindChain
}

// delegate is implemented by wrappers that do not create a run of their own.
type delegate interface {
	resolve(cfg Config) (Runnable, Config)
}

// resolve unwraps delegating wrappers, merging their configuration.
func resolve(r Runnable, cfg Config) (Runnable, Config) {
	for {
		d, ok := r.(delegate)
		if !ok {
			return r, cfg
		}
		r, cfg = d.resolve(cfg)
	}
}
