package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errFlaky = errors.New("flaky")

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	var attempts []int
	var retried []time.Duration
	cfg := RetryConfig{
		MaxAttempts:    4,
		InitialBackoff: time.Millisecond,
		OnRetry:        func(_ int, _ error, d time.Duration) { retried = append(retried, d) },
	}

	out, err := Retry(context.Background(), cfg, func(attempt int) (string, error) {
		attempts = append(attempts, attempt)
		if attempt < 3 {
			return "", errFlaky
		}
		return "ok", nil
	})
	if err != nil || out != "ok" {
		t.Fatalf("expected ok, got %q, %v", out, err)
	}
	if len(attempts) != 3 || attempts[2] != 3 {
		t.Errorf("expected attempts 1..3, got %v", attempts)
	}
	if len(retried) != 2 || retried[1] != 2*time.Millisecond {
		t.Errorf("expected backoffs [1ms 2ms], got %v", retried)
	}
}

func TestRetry_ReturnsLastError(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), RetryConfig{MaxAttempts: 3}, func(attempt int) (int, error) {
		calls++
		return 0, errors.New("attempt " + string(rune('0'+attempt)))
	})
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if err == nil || err.Error() != "attempt 3" {
		t.Errorf("expected the last error, got %v", err)
	}
}

func TestRetry_RetryIf(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	_, err := Retry(context.Background(), RetryConfig{
		MaxAttempts: 5,
		RetryIf:     func(err error) bool { return !errors.Is(err, permanent) },
	}, func(int) (int, error) {
		calls++
		return 0, permanent
	})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Errorf("expected one call failing permanently, got %d calls, %v", calls, err)
	}
}

func TestRetry_DefaultSkipsContextErrors(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), RetryConfig{MaxAttempts: 5}, func(int) (int, error) {
		calls++
		return 0, context.DeadlineExceeded
	})
	if calls != 1 || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected no retry of a deadline, got %d calls, %v", calls, err)
	}
}

func TestRetry_CancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Hour,
		OnRetry:        func(int, error, time.Duration) { cancel() },
	}

	start := time.Now()
	_, err := Retry(ctx, cfg, func(int) (int, error) { return 0, errFlaky })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("expected the backoff to be abandoned")
	}
}

func TestRetry_CancelledBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := Retry(ctx, RetryConfig{}, func(int) (int, error) {
		called = true
		return 0, nil
	})
	if called || !errors.Is(err, context.Canceled) {
		t.Errorf("expected no call and context.Canceled, got called=%v err=%v", called, err)
	}
}

func TestRetryConfig_Backoff(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RetryConfig
		attempt int
		want    time.Duration
	}{
		{"no initial backoff", RetryConfig{}, 3, 0},
		{"first", RetryConfig{InitialBackoff: 100 * time.Millisecond}, 1, 100 * time.Millisecond},
		{"exponential", RetryConfig{InitialBackoff: 100 * time.Millisecond, BackoffFactor: 3}, 3, 900 * time.Millisecond},
		{"capped", RetryConfig{InitialBackoff: time.Second, MaxBackoff: 2 * time.Second}, 5, 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Backoff(tt.attempt); got != tt.want {
				t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestRetryConfig_BackoffJitter(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 100 * time.Millisecond, Jitter: 0.5}
	for i := 0; i < 50; i++ {
		d := cfg.Backoff(1)
		if d < 50*time.Millisecond || d > 150*time.Millisecond {
			t.Fatalf("jittered backoff %v out of range", d)
		}
	}
}
