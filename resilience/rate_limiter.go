package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a call would wait longer than allowed.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimiterConfig configures a RateLimiter.
type RateLimiterConfig struct {
	Name string
	// Rate is the number of calls per second. Zero means 10.
	Rate float64
	// Burst is the bucket size. Zero means Rate.
	Burst int
	// MaxWait bounds how long Wait blocks. A wait that would exceed it fails
	// with ErrRateLimited without taking a token. Zero waits as long as the
	// context allows.
	MaxWait time.Duration
	// OnLimit is called once for every call that cannot proceed at once.
	OnLimit func(name string)
}

// RateLimiter is a token bucket.
type RateLimiter struct {
	config RateLimiterConfig

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// NewRateLimiter creates a RateLimiter with a full bucket.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Rate <= 0 {
		config.Rate = 10
	}
	if config.Burst <= 0 {
		config.Burst = max(int(config.Rate), 1)
	}
	return &RateLimiter{config: config, tokens: float64(config.Burst), last: time.Now()}
}

// Allow takes a token if one is available.
func (rl *RateLimiter) Allow() bool {
	_, ok := rl.reserve(false)
	return ok
}

// Wait takes a token, blocking until one accrues or ctx is done. A
// cancelled wait gives its token back.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	wait, ok := rl.reserve(true)
	if !ok {
		return ErrRateLimited
	}
	if err := sleep(ctx, wait); err != nil {
		rl.mu.Lock()
		rl.tokens = min(rl.tokens+1, float64(rl.config.Burst))
		rl.mu.Unlock()
		return err
	}
	return nil
}

// reserve takes a token now, or with borrow takes one ahead of time and
// returns how long to wait for it.
func (rl *RateLimiter) reserve(borrow bool) (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.tokens = min(rl.tokens+now.Sub(rl.last).Seconds()*rl.config.Rate, float64(rl.config.Burst))
	rl.last = now

	if rl.tokens >= 1 {
		rl.tokens--
		return 0, true
	}
	if rl.config.OnLimit != nil {
		rl.config.OnLimit(rl.config.Name)
	}
	if !borrow {
		return 0, false
	}
	wait := time.Duration((1 - rl.tokens) / rl.config.Rate * float64(time.Second))
	if rl.config.MaxWait > 0 && wait > rl.config.MaxWait {
		return 0, false
	}
	rl.tokens--
	return wait, true
}
