package resilience

import (
	"context"
	"errors"
	"time"
)

// Bulkhead errors.
var (
	ErrBulkheadFull    = errors.New("bulkhead is full")
	ErrBulkheadTimeout = errors.New("bulkhead wait timeout")
)

// WaitForever makes a bulkhead queue callers until a slot frees up or their
// context is done.
const WaitForever time.Duration = -1

// BulkheadConfig configures a Bulkhead.
type BulkheadConfig struct {
	Name string
	// MaxConcurrent is the number of slots. Zero means 10.
	MaxConcurrent int
	// MaxWait bounds the wait for a slot. Zero fails at once when full.
	MaxWait time.Duration
	// OnReject is called when a caller does not get a slot.
	OnReject func(name string)
}

// Bulkhead bounds the number of concurrent calls.
type Bulkhead struct {
	config BulkheadConfig
	slots  chan struct{}
}

// NewBulkhead creates a Bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}
	return &Bulkhead{config: config, slots: make(chan struct{}, config.MaxConcurrent)}
}

// NewLimiter returns a bulkhead that queues callers, for use as a counting
// semaphore across the tasks of one batch or fan-out. A non-positive limit
// returns nil, which Acquire and Release treat as unbounded.
func NewLimiter(name string, limit int) *Bulkhead {
	if limit <= 0 {
		return nil
	}
	return NewBulkhead(BulkheadConfig{Name: name, MaxConcurrent: limit, MaxWait: WaitForever})
}

// Execute runs fn in a slot.
func (b *Bulkhead) Execute(ctx context.Context, fn func() error) error {
	if err := b.Acquire(ctx); err != nil {
		return err
	}
	defer b.Release()
	return fn()
}

// Acquire takes a slot. Each successful Acquire must be paired with a
// Release.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	if b == nil {
		return ctx.Err()
	}
	err := b.acquire(ctx)
	if err != nil && b.config.OnReject != nil {
		b.config.OnReject(b.config.Name)
	}
	return err
}

func (b *Bulkhead) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case b.slots <- struct{}{}:
		return nil
	default:
	}
	if b.config.MaxWait == 0 {
		return ErrBulkheadFull
	}

	var timeout <-chan time.Time
	if b.config.MaxWait > 0 {
		t := time.NewTimer(b.config.MaxWait)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case b.slots <- struct{}{}:
		return nil
	case <-timeout:
		return ErrBulkheadTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot.
func (b *Bulkhead) Release() {
	if b != nil {
		<-b.slots
	}
}

// InUse returns the number of taken slots.
func (b *Bulkhead) InUse() int {
	if b == nil {
		return 0
	}
	return len(b.slots)
}
