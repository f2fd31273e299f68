package runnable

import (
	"context"
	stderrors "errors"

	"github.com/kbukum/runkit/errors"
	"github.com/kbukum/runkit/resilience"
)

// ResilienceConfig bundles optional guards for a unit. Nil fields are
// skipped.
type ResilienceConfig struct {
	// RateLimiter paces calls with a token bucket.
	RateLimiter *resilience.RateLimiterConfig
	// Bulkhead bounds concurrent calls.
	Bulkhead *resilience.BulkheadConfig
	// CircuitBreaker fails fast after repeated failures. Cancellations and
	// invalid input do not count as failures.
	CircuitBreaker *resilience.CircuitBreakerConfig
}

// IsEmpty returns true if no guard is configured.
func (c ResilienceConfig) IsEmpty() bool {
	return c.RateLimiter == nil && c.Bulkhead == nil && c.CircuitBreaker == nil
}

// Resilient guards a unit with a rate limiter, a bulkhead and a circuit
// breaker, in that order. Guard rejections are retryable AppErrors, so a
// Retry around a Resilient backs off and tries again.
type Resilient struct {
	inner Runnable
	rl    *resilience.RateLimiter
	bh    *resilience.Bulkhead
	cb    *resilience.CircuitBreaker
}

// WithResilience wraps r with the guards in cfg. An empty cfg returns r.
func WithResilience(r Runnable, cfg ResilienceConfig) Runnable {
	if cfg.IsEmpty() {
		return r
	}
	g := &Resilient{inner: r}
	if cfg.RateLimiter != nil {
		g.rl = resilience.NewRateLimiter(*cfg.RateLimiter)
	}
	if cfg.Bulkhead != nil {
		g.bh = resilience.NewBulkhead(*cfg.Bulkhead)
	}
	if cfg.CircuitBreaker != nil {
		cbCfg := *cfg.CircuitBreaker
		if cbCfg.IsFailure == nil {
			cbCfg.IsFailure = countsAsFailure
		}
		g.cb = resilience.NewCircuitBreaker(cbCfg)
	}
	return g
}

// countsAsFailure excludes errors that say nothing about the unit's health.
func countsAsFailure(err error) bool {
	if errors.IsCanceled(err) {
		return false
	}
	switch errors.CodeOf(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeMissingField:
		return false
	}
	return true
}

func (g *Resilient) Name() string { return g.inner.Name() }

func (g *Resilient) Kind() Kind { return KindOf(g.inner) }

// State returns the circuit breaker state, or StateClosed without one.
func (g *Resilient) State() resilience.State {
	if g.cb == nil {
		return resilience.StateClosed
	}
	return g.cb.State()
}

func (g *Resilient) Invoke(ctx context.Context, input any, cfg Config) (any, error) {
	var out any
	err := g.guard(ctx, func() error {
		var err error
		out, err = InvokeConfig(ctx, g.inner, input, cfg)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Stream guards opening the stream and its first chunk. Later chunks are
// not guarded.
func (g *Resilient) Stream(_ context.Context, input any, cfg Config) (Iterator, error) {
	return &lazyIter{open: func(ctx context.Context) (Iterator, error) {
		var it Iterator
		err := g.guard(ctx, func() error {
			src, err := StreamConfig(ctx, g.inner, input, cfg)
			if err != nil {
				return err
			}
			it, err = primed(ctx, src)
			return err
		})
		if err != nil {
			return nil, err
		}
		return it, nil
	}}, nil
}

func (g *Resilient) guard(ctx context.Context, fn func() error) error {
	if g.rl != nil {
		if err := g.rl.Wait(ctx); err != nil {
			return g.wrap(err)
		}
	}

	call := fn
	if g.cb != nil {
		call = func() error {
			var fnErr error
			cbErr := g.cb.Execute(func() error {
				fnErr = fn()
				return fnErr
			})
			if cbErr != nil && fnErr == nil {
				return g.wrap(cbErr)
			}
			return fnErr
		}
	}

	if g.bh != nil {
		var callErr error
		err := g.bh.Execute(ctx, func() error {
			callErr = call()
			return callErr
		})
		if err != nil && callErr == nil {
			return g.wrap(err)
		}
		return err
	}
	return call()
}

// wrap converts guard rejections to AppErrors.
func (g *Resilient) wrap(err error) error {
	if _, ok := errors.AsAppError(err); ok {
		return err
	}
	switch {
	case stderrors.Is(err, resilience.ErrCircuitOpen):
		return errors.ServiceUnavailable(g.Name()).WithCause(err)
	case stderrors.Is(err, resilience.ErrRateLimited):
		return errors.RateLimited().WithCause(err)
	case stderrors.Is(err, resilience.ErrBulkheadFull), stderrors.Is(err, resilience.ErrBulkheadTimeout):
		return errors.ServiceUnavailable(g.Name()).
			WithCause(err).
			WithDetail("reason", "concurrency limit reached")
	case errors.IsCanceled(err):
		return errors.Canceled(g.Name(), err)
	default:
		return err
	}
}
