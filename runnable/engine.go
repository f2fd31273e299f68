package runnable

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/runkit/callbacks"
	"github.com/kbukum/runkit/chunk"
	"github.com/kbukum/runkit/errors"
)

// ErrStreamClosed is reported to handlers when a consumer closes a stream
// before it is exhausted.
var ErrStreamClosed = stderrors.New("stream closed before completion")

// Invoke runs r on input with a configuration built from opts.
func Invoke(ctx context.Context, r Runnable, input any, opts ...Option) (any, error) {
	return InvokeConfig(ctx, r, input, NewConfig(opts...))
}

// InvokeConfig runs r on input as one instrumented run configured by cfg.
// Units call their children through InvokeConfig with the cfg they received.
func InvokeConfig(ctx context.Context, r Runnable, input any, cfg Config) (any, error) {
	r, cfg = resolve(r, cfg)
	rn, err := begin(ctx, r, input, cfg)
	if err != nil {
		return nil, err
	}
	out, err := r.Invoke(ctx, input, rn.child)
	if err != nil {
		return nil, rn.fail(err)
	}
	rn.end(out)
	return out, nil
}

// Stream runs r on input and returns its chunks.
func Stream(ctx context.Context, r Runnable, input any, opts ...Option) (Iterator, error) {
	return StreamConfig(ctx, r, input, NewConfig(opts...))
}

// StreamConfig streams r on input as one instrumented run configured by cfg.
// Units without native streaming yield their Invoke result as a single chunk.
// The run ends when the iterator is exhausted, fails or is closed.
func StreamConfig(ctx context.Context, r Runnable, input any, cfg Config) (Iterator, error) {
	r, cfg = resolve(r, cfg)
	rn, err := begin(ctx, r, input, cfg)
	if err != nil {
		return nil, err
	}

	var src Iterator
	if s, ok := r.(Streamer); ok {
		if src, err = s.Stream(ctx, input, rn.child); err != nil {
			return nil, rn.fail(err)
		}
	} else {
		src = once(func(ctx context.Context) (any, error) {
			return r.Invoke(ctx, input, rn.child)
		})
	}
	return &tracedIter{run: rn, src: src}, nil
}

// run is one instrumented execution of a unit.
type run struct {
	// ctx is the context the run started with; handlers receive it for
	// every notification of this run.
	ctx   context.Context
	info  callbacks.RunInfo
	cb    *callbacks.Manager
	child Config
	once  sync.Once
}

// begin checks cancellation and the recursion limit, then dispatches start.
// Nothing is dispatched when it fails.
func begin(ctx context.Context, r Runnable, input any, cfg Config) (*run, error) {
	name := r.Name()
	if cfg.RunName != "" {
		name = cfg.RunName
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Canceled(name, err)
	}
	if limit := cfg.recursionLimit(); cfg.depth >= limit {
		return nil, errors.RecursionLimitExceeded(name, limit)
	}

	runID := cfg.RunID
	if runID == "" {
		runID = newRunID()
	}
	handlers := make([]callbacks.Handler, 0, len(cfg.Callbacks)+len(cfg.LocalCallbacks))
	handlers = append(handlers, cfg.Callbacks...)
	handlers = append(handlers, cfg.LocalCallbacks...)

	rn := &run{
		ctx: ctx,
		info: callbacks.RunInfo{
			RunID:       runID,
			ParentRunID: cfg.parentRunID,
			Name:        name,
			Kind:        string(KindOf(r)),
			Tags:        cfg.Tags,
			Metadata:    cfg.Metadata,
			StartTime:   time.Now(),
		},
		cb:    callbacks.NewManager(nil, handlers...),
		child: cfg.child(runID),
	}
	rn.cb.StartRun(ctx, rn.info, input)
	return rn, nil
}

// newRunID returns a time-ordered UUIDv7, monotonic within the process.
func newRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func (rn *run) end(output any) {
	rn.once.Do(func() { rn.cb.EndRun(rn.ctx, rn.info, output) })
}

// fail reports err and returns it. Bare context errors are wrapped in a
// CANCELED AppError that still matches them with errors.Is.
func (rn *run) fail(err error) error {
	if _, ok := errors.AsAppError(err); !ok && errors.IsCanceled(err) {
		err = errors.Canceled(rn.info.Name, err)
	}
	rn.once.Do(func() { rn.cb.ErrorRun(rn.ctx, rn.info, err) })
	return err
}

func (rn *run) token(v any) {
	rn.cb.Token(rn.ctx, rn.info, v)
}

// tracedIter reports the chunks of a run and ends it exactly once. The
// chunks are folded to form the end payload; when two chunks cannot be
// concatenated the later one replaces the accumulated value.
type tracedIter struct {
	run    *run
	src    Iterator
	acc    any
	seen   bool
	done   bool
	closed bool
	err    error
}

func (t *tracedIter) Next(ctx context.Context) (any, bool, error) {
	if t.done {
		return nil, false, t.err
	}
	if err := ctx.Err(); err != nil {
		return nil, false, t.finish(err)
	}
	v, ok, err := t.src.Next(ctx)
	if err != nil {
		return nil, false, t.finish(err)
	}
	if !ok {
		return nil, false, t.finish(nil)
	}
	t.run.token(v)
	t.accumulate(v)
	return v, true, nil
}

func (t *tracedIter) accumulate(v any) {
	if !t.seen {
		t.acc, t.seen = v, true
		return
	}
	merged, err := chunk.Concat(t.acc, v)
	if err != nil {
		merged = v
	}
	t.acc = merged
}

// finish ends the run with err, or successfully when err is nil, and
// releases the source.
func (t *tracedIter) finish(err error) error {
	t.done = true
	if err != nil {
		t.err = t.run.fail(err)
	} else {
		t.run.end(t.acc)
	}
	t.closeSource()
	return t.err
}

func (t *tracedIter) closeSource() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return t.src.Close()
}

func (t *tracedIter) Close() error {
	if !t.done {
		t.done = true
		t.err = t.run.fail(errors.Canceled(t.run.info.Name, ErrStreamClosed))
	}
	return t.closeSource()
}
