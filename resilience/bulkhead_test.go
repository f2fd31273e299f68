package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBulkhead_RejectsWhenFull(t *testing.T) {
	var rejected []string
	b := NewBulkhead(BulkheadConfig{
		Name:          "model",
		MaxConcurrent: 1,
		OnReject:      func(name string) { rejected = append(rejected, name) },
	})

	if err := b.Acquire(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := b.Execute(context.Background(), func() error { return nil })
	if !errors.Is(err, ErrBulkheadFull) {
		t.Errorf("expected ErrBulkheadFull, got %v", err)
	}
	if len(rejected) != 1 || rejected[0] != "model" {
		t.Errorf("expected one rejection, got %v", rejected)
	}

	b.Release()
	if err := b.Execute(context.Background(), func() error { return nil }); err != nil {
		t.Errorf("expected a free slot after release, got %v", err)
	}
	if b.InUse() != 0 {
		t.Errorf("expected no slots in use, got %d", b.InUse())
	}
}

func TestBulkhead_WaitTimeout(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, MaxWait: 10 * time.Millisecond})
	_ = b.Acquire(context.Background())
	defer b.Release()

	if err := b.Acquire(context.Background()); !errors.Is(err, ErrBulkheadTimeout) {
		t.Errorf("expected ErrBulkheadTimeout, got %v", err)
	}
}

func TestBulkhead_ExecuteReturnsFnError(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 2})
	boom := errors.New("boom")
	if err := b.Execute(context.Background(), func() error { return boom }); !errors.Is(err, boom) {
		t.Errorf("expected fn error, got %v", err)
	}
	if b.InUse() != 0 {
		t.Error("expected the slot to be released after an error")
	}
}

func TestLimiter_BoundsConcurrency(t *testing.T) {
	l := NewLimiter("batch", 3)

	var active, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer l.Release()
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			active.Add(-1)
		}()
	}
	wg.Wait()

	if peak.Load() > 3 {
		t.Errorf("expected at most 3 concurrent, got %d", peak.Load())
	}
}

func TestLimiter_CancelWhileWaiting(t *testing.T) {
	l := NewLimiter("batch", 1)
	_ = l.Acquire(context.Background())
	defer l.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected the context error, got %v", err)
	}
}

func TestLimiter_Unbounded(t *testing.T) {
	l := NewLimiter("batch", 0)
	if l != nil {
		t.Fatal("expected a nil limiter for no limit")
	}
	if err := l.Acquire(context.Background()); err != nil {
		t.Errorf("expected nil limiter to admit, got %v", err)
	}
	l.Release()
	if l.InUse() != 0 {
		t.Error("expected nil limiter to report no slots in use")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected nil limiter to honor cancellation, got %v", err)
	}
}
