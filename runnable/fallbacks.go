package runnable

import (
	"context"
	stderrors "errors"
	"fmt"
	"maps"

	"github.com/kbukum/runkit/errors"
)

// Fallbacks tries a primary unit, then each alternative in order, until one
// succeeds. Cancellation is never handed to an alternative.
type Fallbacks struct {
	primary      Runnable
	alternatives []Runnable

	// HandleOn restricts fallback to errors matching one of these with
	// errors.Is. Empty handles every error.
	HandleOn []error
	// HandleIf further restricts fallback. Nil accepts all.
	HandleIf func(error) bool
	// ExceptionKey, when set, passes the previous error to alternatives
	// under this key. The input must then be a map[string]any.
	ExceptionKey string
}

// NewFallbacks wraps primary with alternatives.
func NewFallbacks(primary Runnable, alternatives ...Runnable) *Fallbacks {
	return &Fallbacks{primary: primary, alternatives: alternatives}
}

// WithFallbacks wraps r with alternatives.
func WithFallbacks(r Runnable, alternatives ...Runnable) *Fallbacks {
	return NewFallbacks(r, alternatives...)
}

func (f *Fallbacks) Name() string { return f.primary.Name() + ".fallbacks" }

func (f *Fallbacks) candidates() []Runnable {
	return append([]Runnable{f.primary}, f.alternatives...)
}

func (f *Fallbacks) handles(err error) bool {
	if errors.IsCanceled(err) {
		return false
	}
	if len(f.HandleOn) > 0 {
		matched := false
		for _, target := range f.HandleOn {
			if stderrors.Is(err, target) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return f.HandleIf == nil || f.HandleIf(err)
}

// inputFor returns the input for candidate i given the previous error.
func (f *Fallbacks) inputFor(input any, prev error) (any, error) {
	if f.ExceptionKey == "" || prev == nil {
		return input, nil
	}
	m, ok := input.(map[string]any)
	if !ok {
		return nil, errors.InvalidInput("input",
			fmt.Sprintf("fallbacks with an exception key need map input, got %T", input))
	}
	out := maps.Clone(m)
	out[f.ExceptionKey] = prev
	return out, nil
}

// Invoke returns the first success. When every candidate fails it returns
// the error of the last one tried.
func (f *Fallbacks) Invoke(ctx context.Context, input any, cfg Config) (any, error) {
	var lastErr error
	for i, r := range f.candidates() {
		in, err := f.inputFor(input, lastErr)
		if err != nil {
			return nil, err
		}
		out, err := InvokeConfig(ctx, r, in, fallbackConfig(cfg, i))
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !f.handles(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// Stream commits to the first candidate that yields a first chunk or ends
// cleanly. Failures after that are returned as is.
func (f *Fallbacks) Stream(_ context.Context, input any, cfg Config) (Iterator, error) {
	return &lazyIter{open: func(ctx context.Context) (Iterator, error) {
		var lastErr error
		for i, r := range f.candidates() {
			in, err := f.inputFor(input, lastErr)
			if err != nil {
				return nil, err
			}
			it, err := StreamConfig(ctx, r, in, fallbackConfig(cfg, i))
			if err == nil {
				if it, err = primed(ctx, it); err == nil {
					return it, nil
				}
			}
			lastErr = err
			if !f.handles(err) {
				return nil, err
			}
		}
		return nil, lastErr
	}}, nil
}

func fallbackConfig(cfg Config, i int) Config {
	if i == 0 {
		return cfg
	}
	return cfg.With(WithTags(fmt.Sprintf("fallback:%d", i)))
}
