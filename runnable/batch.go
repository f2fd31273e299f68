package runnable

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/kbukum/runkit/errors"
	"github.com/kbukum/runkit/resilience"
)

// BatchOptions configures BatchWith.
type BatchOptions struct {
	// Configs holds one config per input, or a single config shared by all
	// inputs. Empty uses a zero Config. MaxConcurrency is read from the
	// first config.
	Configs []Config
	// FailFast stops scheduling at the first failure and returns it alone.
	// Otherwise every input runs and failures are reported in a *BatchError.
	FailFast bool
}

// BatchError reports the per-item failures of a batch. Errs is aligned with
// the inputs; successful items have a nil entry.
type BatchError struct {
	Errs []error
}

func (e *BatchError) Error() string {
	first := e.first()
	return fmt.Sprintf("batch: %d of %d items failed, first: %v", e.Failed(), len(e.Errs), first)
}

// Unwrap returns the non-nil item errors, so errors.Is and errors.As match
// any of them.
func (e *BatchError) Unwrap() []error {
	out := make([]error, 0, len(e.Errs))
	for _, err := range e.Errs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}

// Failed returns the number of failed items.
func (e *BatchError) Failed() int {
	n := 0
	for _, err := range e.Errs {
		if err != nil {
			n++
		}
	}
	return n
}

func (e *BatchError) first() error {
	for _, err := range e.Errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Batch invokes r on every input with the configuration built from opts.
// Results are in input order; item failures are isolated and returned as a
// *BatchError alongside the successful results.
func Batch(ctx context.Context, r Runnable, inputs []any, opts ...Option) ([]any, error) {
	return BatchWith(ctx, r, inputs, BatchOptions{Configs: []Config{NewConfig(opts...)}})
}

// BatchWith invokes r on every input concurrently, bounded by the
// MaxConcurrency of the first config. Every item is its own run. Results are
// in input order regardless of completion order.
func BatchWith(ctx context.Context, r Runnable, inputs []any, opts BatchOptions) ([]any, error) {
	cfgs, err := batchConfigs(len(inputs), opts.Configs)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return []any{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Canceled(r.Name(), err)
	}

	inner, first := resolve(r, cfgs[0])
	if b, ok := inner.(Batcher); ok {
		return nativeBatch(ctx, b, r, inputs, cfgs, opts.FailFast)
	}

	results := make([]any, len(inputs))
	errs := make([]error, len(inputs))
	limiter := resilience.NewLimiter(r.Name()+".batch", first.MaxConcurrency)
	next, err := fanOut(ctx, len(inputs), limiter, opts.FailFast, func(i int) error {
		out, err := InvokeConfig(ctx, r, inputs[i], cfgs[i])
		results[i], errs[i] = out, err
		return err
	})
	if opts.FailFast {
		if err != nil {
			return nil, err
		}
		return results, nil
	}
	if next < len(inputs) {
		stopped := errors.Canceled(r.Name(), ctx.Err())
		for i := next; i < len(inputs); i++ {
			errs[i] = stopped
		}
	}
	if be := (&BatchError{Errs: errs}); be.Failed() > 0 {
		return results, be
	}
	return results, nil
}

func batchConfigs(n int, cfgs []Config) ([]Config, error) {
	switch len(cfgs) {
	case n:
		return cfgs, nil
	case 0, 1:
		var c Config
		if len(cfgs) == 1 {
			c = cfgs[0]
		}
		out := make([]Config, n)
		for i := range out {
			out[i] = c.Clone()
		}
		return out, nil
	default:
		return nil, errors.InvalidInput("configs",
			fmt.Sprintf("got %d configs for %d inputs", len(cfgs), n))
	}
}

// nativeBatch instruments one run per item around a Batcher.
func nativeBatch(ctx context.Context, b Batcher, r Runnable, inputs []any, cfgs []Config, failFast bool) ([]any, error) {
	runs := make([]*run, len(inputs))
	childCfgs := make([]Config, len(inputs))
	var inner Runnable
	for i, input := range inputs {
		var cfg Config
		inner, cfg = resolve(r, cfgs[i])
		rn, err := begin(ctx, inner, input, cfg)
		if err != nil {
			for _, started := range runs[:i] {
				started.fail(err)
			}
			return nil, err
		}
		runs[i], childCfgs[i] = rn, rn.child
	}

	outs, err := b.Batch(ctx, inputs, childCfgs)
	if err == nil && len(outs) != len(inputs) {
		err = errors.InvalidComposition(inner.Name(),
			fmt.Sprintf("batch returned %d results for %d inputs", len(outs), len(inputs)))
	}

	var be *BatchError
	switch {
	case err == nil:
		for i, rn := range runs {
			rn.end(outs[i])
		}
		return outs, nil
	case stderrors.As(err, &be) && len(be.Errs) == len(inputs):
		errs := make([]error, len(inputs))
		for i, rn := range runs {
			if be.Errs[i] != nil {
				errs[i] = rn.fail(be.Errs[i])
			} else if i < len(outs) {
				rn.end(outs[i])
			} else {
				rn.end(nil)
			}
		}
		be = &BatchError{Errs: errs}
		if failFast {
			return nil, be.first()
		}
		return outs, be
	default:
		for _, rn := range runs {
			err = rn.fail(err)
		}
		return nil, err
	}
}

// fanOut calls fn(i) for i in [0, n) on separate goroutines while the
// limiter admits them, in index order. With failFast nothing new starts
// after the first failure. It waits for every started call and returns the
// index where scheduling stopped and the first error observed. Started calls
// are never cancelled.
func fanOut(ctx context.Context, n int, limiter *resilience.Bulkhead, failFast bool, fn func(i int) error) (int, error) {
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		first error
	)
	record := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if first == nil {
			first = err
		}
	}
	failed := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return first != nil
	}

	next := 0
	for ; next < n; next++ {
		if err := limiter.Acquire(ctx); err != nil {
			record(errors.Canceled("batch", err))
			break
		}
		if failFast && failed() {
			limiter.Release()
			break
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer limiter.Release()
			if err := fn(i); err != nil {
				record(err)
			}
		}(next)
	}
	wg.Wait()
	return next, first
}
