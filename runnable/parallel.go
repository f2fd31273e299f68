package runnable

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kbukum/runkit/errors"
	"github.com/kbukum/runkit/resilience"
)

// Step names one branch of a Parallel.
type Step struct {
	Key      string
	Runnable Runnable
}

// Parallel runs every branch on the same input and collects the outputs
// into a map keyed by branch.
type Parallel struct {
	name  string
	steps []Step
}

// NewParallel returns a Parallel over steps. Duplicate keys are reported
// when the Parallel is first run.
func NewParallel(steps ...Step) *Parallel {
	return &Parallel{steps: steps}
}

// ParallelMap returns a Parallel over the entries of m, ordered by key.
func ParallelMap(m map[string]Runnable) *Parallel {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	steps := make([]Step, len(keys))
	for i, k := range keys {
		steps[i] = Step{Key: k, Runnable: m[k]}
	}
	return NewParallel(steps...)
}

// WithName returns a copy of p with a fixed name.
func (p *Parallel) WithName(name string) *Parallel {
	return &Parallel{name: name, steps: p.steps}
}

// Steps returns the branches in declaration order.
func (p *Parallel) Steps() []Step { return p.steps }

func (p *Parallel) Name() string {
	if p.name != "" {
		return p.name
	}
	return "parallel"
}

func (p *Parallel) validate() error {
	if len(p.steps) == 0 {
		return errors.InvalidComposition(p.Name(), "parallel has no branches")
	}
	seen := make(map[string]bool, len(p.steps))
	for _, s := range p.steps {
		if s.Runnable == nil {
			return errors.InvalidComposition(p.Name(), fmt.Sprintf("branch %q has no runnable", s.Key))
		}
		if seen[s.Key] {
			return errors.InvalidComposition(p.Name(), fmt.Sprintf("duplicate output key %q", s.Key))
		}
		seen[s.Key] = true
	}
	return nil
}

// Invoke runs the branches concurrently, bounded by cfg.MaxConcurrency. On
// the first failure no further branch is started, running branches finish
// and their results are discarded, and that failure is returned.
func (p *Parallel) Invoke(ctx context.Context, input any, cfg Config) (any, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	out := make(map[string]any, len(p.steps))
	limiter := resilience.NewLimiter(p.Name(), cfg.MaxConcurrency)
	_, err := fanOut(ctx, len(p.steps), limiter, true, func(i int) error {
		step := p.steps[i]
		v, err := InvokeConfig(ctx, step.Runnable, input, cfg)
		if err != nil {
			return err
		}
		mu.Lock()
		out[step.Key] = v
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Stream yields one-key maps {key: chunk} as soon as any branch produces a
// chunk. Each branch's chunks keep their order, and a branch that ends without
// a chunk yields {key: nil} so every key is present once folded. Branches
// start on the first Next and block until the consumer pulls, so nothing is
// buffered.
func (p *Parallel) Stream(_ context.Context, input any, cfg Config) (Iterator, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &lazyIter{open: func(ctx context.Context) (Iterator, error) {
		return p.launch(ctx, input, cfg), nil
	}}, nil
}

func (p *Parallel) launch(ctx context.Context, input any, cfg Config) Iterator {
	streamCtx, cancel := context.WithCancel(ctx)
	ch := make(chan result)
	limiter := resilience.NewLimiter(p.Name(), cfg.MaxConcurrency)

	var once sync.Once
	var failed bool
	var mu sync.Mutex
	send := func(r result) bool {
		select {
		case ch <- r:
			return true
		case <-streamCtx.Done():
			return false
		}
	}
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if failed {
			return
		}
		failed = true
		if send(result{err: err}) {
			once.Do(cancel)
		}
	}

	go func() {
		defer close(ch)
		_, _ = fanOut(streamCtx, len(p.steps), limiter, true, func(i int) error {
			step := p.steps[i]
			it, err := StreamConfig(streamCtx, step.Runnable, input, cfg)
			if err != nil {
				fail(err)
				return err
			}
			defer it.Close()
			sent := false
			for {
				v, ok, err := it.Next(streamCtx)
				if err != nil {
					if streamCtx.Err() == nil {
						fail(err)
					}
					return err
				}
				if !ok {
					if !sent && !send(result{val: map[string]any{step.Key: nil}}) {
						return streamCtx.Err()
					}
					return nil
				}
				if !send(result{val: map[string]any{step.Key: v}}) {
					return streamCtx.Err()
				}
				sent = true
			}
		})
	}()

	return &channelIter{
		ch: ch,
		closer: func() error {
			once.Do(cancel)
			for range ch {
			}
			return nil
		},
	}
}
