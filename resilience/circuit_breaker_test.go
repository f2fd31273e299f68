package resilience

import (
	"errors"
	"testing"
	"time"
)

var errDown = errors.New("down")

func fail() error { return errDown }
func succeed() error { return nil }

func TestCircuitBreaker_Opens(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:        "model",
		MaxFailures: 3,
		Timeout:     time.Minute,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, name+":"+from.String()+"->"+to.String())
		},
	})

	for i := 0; i < 3; i++ {
		if err := cb.Execute(fail); !errors.Is(err, errDown) {
			t.Fatalf("call %d: expected errDown, got %v", i, err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Errorf("expected a rejected call, got %v (called=%v)", err, called)
	}
	if len(transitions) != 1 || transitions[0] != "model:closed->open" {
		t.Errorf("unexpected transitions %v", transitions)
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 2})

	_ = cb.Execute(fail)
	_ = cb.Execute(succeed)
	_ = cb.Execute(fail)
	if cb.State() != StateClosed {
		t.Errorf("expected non-consecutive failures to keep the circuit closed, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpen(t *testing.T) {
	tests := []struct {
		name  string
		probe func() error
		want  State
	}{
		{"probe succeeds", succeed, StateClosed},
		{"probe fails", fail, StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 1, Timeout: 10 * time.Millisecond})
			_ = cb.Execute(fail)
			time.Sleep(20 * time.Millisecond)

			if cb.State() != StateHalfOpen {
				t.Fatalf("expected half-open after the timeout, got %s", cb.State())
			}
			_ = cb.Execute(tt.probe)
			if cb.State() != tt.want {
				t.Errorf("expected %s, got %s", tt.want, cb.State())
			}
		})
	}
}

func TestCircuitBreaker_HalfOpenLimitsProbes(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 1, Timeout: 10 * time.Millisecond})
	_ = cb.Execute(fail)
	time.Sleep(20 * time.Millisecond)

	err := cb.Execute(func() error {
		if err := cb.Execute(succeed); !errors.Is(err, ErrCircuitOpen) {
			t.Errorf("expected a second probe to be rejected, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCircuitBreaker_IsFailure(t *testing.T) {
	ignored := errors.New("bad request")
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures: 1,
		Timeout:     10 * time.Millisecond,
		IsFailure:   func(err error) bool { return !errors.Is(err, ignored) },
	})

	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return ignored })
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected ignored errors to keep the circuit closed, got %s", cb.State())
	}

	_ = cb.Execute(fail)
	time.Sleep(20 * time.Millisecond)
	_ = cb.Execute(func() error { return ignored })
	if err := cb.Execute(succeed); err != nil {
		t.Errorf("expected the probe slot to be handed back, got %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("expected closed after a successful probe, got %s", cb.State())
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(9):      "unknown",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), s.String(), want)
		}
	}
}
