package runnable

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/kbukum/runkit/errors"
	"github.com/kbukum/runkit/resilience"
	"github.com/kbukum/runkit/validation"
)

// RetryPolicy configures a Retry.
type RetryPolicy struct {
	// MaxAttempts includes the first attempt. Zero means 3.
	MaxAttempts int `mapstructure:"max_attempts" validate:"gte=0"`
	// InitialBackoff is the delay before the second attempt. Zero retries
	// immediately.
	InitialBackoff time.Duration `mapstructure:"initial_backoff" validate:"gte=0"`
	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration `mapstructure:"max_backoff" validate:"gte=0"`
	// BackoffFactor multiplies the delay after every attempt.
	BackoffFactor float64 `mapstructure:"backoff_factor" validate:"gte=0"`
	// Jitter randomizes each delay by up to this fraction.
	Jitter float64 `mapstructure:"jitter" validate:"gte=0,lte=1"`
	// RetryOn restricts retries to errors matching one of these with
	// errors.Is. Empty retries every retryable error.
	RetryOn []error `mapstructure:"-"`
	// RetryIf further restricts retries. Nil accepts all.
	RetryIf func(error) bool `mapstructure:"-"`
}

// DefaultRetryPolicy returns three attempts with a short exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2,
		Jitter:         0.1,
	}
}

// Validate checks the numeric fields.
func (p RetryPolicy) Validate() error {
	return validation.Validate(p)
}

// shouldRetry reports whether err is eligible for another attempt.
// Cancellation, invalid input and composition errors never are.
func (p RetryPolicy) shouldRetry(err error) bool {
	if !errors.IsRetryable(err) {
		return false
	}
	if len(p.RetryOn) > 0 {
		matched := false
		for _, target := range p.RetryOn {
			if stderrors.Is(err, target) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return p.RetryIf == nil || p.RetryIf(err)
}

func (p RetryPolicy) resilienceConfig() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    p.MaxAttempts,
		InitialBackoff: p.InitialBackoff,
		MaxBackoff:     p.MaxBackoff,
		BackoffFactor:  p.BackoffFactor,
		Jitter:         p.Jitter,
		RetryIf:        p.shouldRetry,
	}
}

// Retry re-invokes a unit on retryable failures. Every attempt is a fresh
// run of the wrapped unit tagged "retry:attempt:N".
type Retry struct {
	inner  Runnable
	policy RetryPolicy
}

// NewRetry wraps r with policy.
func NewRetry(r Runnable, policy RetryPolicy) *Retry {
	return &Retry{inner: r, policy: policy}
}

// WithRetry wraps r with policy.
func WithRetry(r Runnable, policy RetryPolicy) *Retry {
	return NewRetry(r, policy)
}

func (r *Retry) Name() string { return r.inner.Name() + ".retry" }

// Invoke returns the first successful result, or the error of the last
// attempt once attempts are exhausted or an error is not retryable.
func (r *Retry) Invoke(ctx context.Context, input any, cfg Config) (any, error) {
	if err := r.policy.Validate(); err != nil {
		return nil, errors.InvalidComposition(r.Name(), err.Error())
	}
	return resilience.Retry(ctx, r.policy.resilienceConfig(), func(attempt int) (any, error) {
		return InvokeConfig(ctx, r.inner, input, attemptConfig(cfg, attempt))
	})
}

// Stream retries opening the stream until the first chunk arrives. Once a
// chunk has been yielded the attempt is committed and later failures are
// returned as is.
func (r *Retry) Stream(_ context.Context, input any, cfg Config) (Iterator, error) {
	if err := r.policy.Validate(); err != nil {
		return nil, errors.InvalidComposition(r.Name(), err.Error())
	}
	return &lazyIter{open: func(ctx context.Context) (Iterator, error) {
		return resilience.Retry(ctx, r.policy.resilienceConfig(), func(attempt int) (Iterator, error) {
			it, err := StreamConfig(ctx, r.inner, input, attemptConfig(cfg, attempt))
			if err != nil {
				return nil, err
			}
			return primed(ctx, it)
		})
	}}, nil
}

func attemptConfig(cfg Config, attempt int) Config {
	return cfg.With(WithTags(fmt.Sprintf("retry:attempt:%d", attempt)))
}

// primed pulls the first chunk of it so that failures before any output can
// be retried or replaced, then replays that chunk.
func primed(ctx context.Context, it Iterator) (Iterator, error) {
	v, ok, err := it.Next(ctx)
	if err != nil {
		it.Close()
		return nil, err
	}
	if !ok {
		return it, nil
	}
	return &prefixIter{head: v, rest: it}, nil
}

type prefixIter struct {
	head any
	sent bool
	rest Iterator
}

func (it *prefixIter) Next(ctx context.Context) (any, bool, error) {
	if !it.sent {
		it.sent = true
		return it.head, true, nil
	}
	return it.rest.Next(ctx)
}

func (it *prefixIter) Close() error { return it.rest.Close() }
