package runnable

import (
	"context"
	stderrors "errors"
	"reflect"
	"testing"
	"time"

	"github.com/kbukum/runkit/callbacks"
	"github.com/kbukum/runkit/errors"
)

func TestInvoke_UpperThenExclaim(t *testing.T) {
	out, err := Invoke(context.Background(), Pipe(upper, exclaim), "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "HI!" {
		t.Errorf("expected HI!, got %v", out)
	}
}

func TestInvoke_PreCancelledNeverReachesLeaf(t *testing.T) {
	leaf := newCounting("leaf", func(int, any) (any, error) { return "x", nil })
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		r    Runnable
	}{
		{"leaf", leaf},
		{"sequence", Pipe(leaf, leaf)},
		{"parallel", NewParallel(Step{"a", leaf})},
		{"retry", WithRetry(leaf, RetryPolicy{MaxAttempts: 3})},
		{"fallbacks", WithFallbacks(leaf, leaf)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Invoke(ctx, tc.r, "in", WithCallbacks(rec))
			if !errors.IsCanceled(err) {
				t.Fatalf("expected cancellation, got %v", err)
			}
			if errors.CodeOf(err) != errors.ErrCodeCanceled {
				t.Errorf("expected CANCELED code, got %q", errors.CodeOf(err))
			}
			if !stderrors.Is(err, context.Canceled) {
				t.Errorf("expected errors.Is(err, context.Canceled)")
			}
		})
	}
	if leaf.calls() != 0 {
		t.Errorf("expected leaf never called, got %d calls", leaf.calls())
	}
	if n := len(rec.all()); n != 0 {
		t.Errorf("expected no notifications, got %d", n)
	}
}

func TestInvoke_ErrorReportedThenReturnedUnchanged(t *testing.T) {
	sentinel := stderrors.New("boom")
	leaf := newCounting("leaf", func(int, any) (any, error) { return nil, sentinel })
	rec := &recorder{}

	_, err := Invoke(context.Background(), Pipe(upper, leaf), "hi", WithCallbacks(rec))
	if err != sentinel {
		t.Fatalf("expected the original error, got %v", err)
	}

	errs := rec.hooks("error")
	if len(errs) != 2 {
		t.Fatalf("expected leaf and sequence error notifications, got %d", len(errs))
	}
	if errs[0].run.Name != "leaf" || errs[1].run.Name != "sequence" {
		t.Errorf("expected leaf error before sequence error, got %s then %s", errs[0].run.Name, errs[1].run.Name)
	}
	if len(rec.hooks("end")) != 1 {
		t.Errorf("expected only upper to end, got %d end notifications", len(rec.hooks("end")))
	}
}

func TestInvoke_RunTreeLinksParents(t *testing.T) {
	rec := &recorder{}
	_, err := Invoke(context.Background(), Pipe(upper, exclaim), "hi", WithCallbacks(rec), WithTags("t1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	starts := rec.hooks("start")
	if len(starts) != 3 {
		t.Fatalf("expected 3 starts, got %d", len(starts))
	}
	root := starts[0].run
	if !root.IsRoot() || root.Kind != callbacks.KindChain {
		t.Errorf("expected root chain run, got %+v", root)
	}
	for _, s := range starts[1:] {
		if s.run.ParentRunID != root.RunID {
			t.Errorf("run %s parent = %q, want %q", s.run.Name, s.run.ParentRunID, root.RunID)
		}
		if s.run.Kind != string(KindLambda) {
			t.Errorf("expected lambda kind, got %q", s.run.Kind)
		}
		if !reflect.DeepEqual(s.run.Tags, []string{"t1"}) {
			t.Errorf("expected inherited tags, got %v", s.run.Tags)
		}
	}
}

func TestInvoke_RecursionLimit(t *testing.T) {
	var self *Lambda
	calls := 0
	self = NewLambda("self", func(context.Context, any, Config) (any, error) {
		calls++
		return self, nil
	})

	_, err := Invoke(context.Background(), self, "x", WithRecursionLimit(5))
	if errors.CodeOf(err) != errors.ErrCodeRecursionLimit {
		t.Fatalf("expected RECURSION_LIMIT, got %v", err)
	}
	if calls != 5 {
		t.Errorf("expected 5 nested calls before the limit, got %d", calls)
	}
	if errors.IsRetryable(err) {
		t.Error("expected recursion errors to be non-retryable")
	}
}

func TestInvoke_RunNameAndRunIDApplyToTopRunOnly(t *testing.T) {
	rec := &recorder{}
	id := newRunID()
	_, err := Invoke(context.Background(), Pipe(upper, exclaim), "hi",
		WithCallbacks(rec), WithRunName("shout"), WithRunID(id))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	starts := rec.hooks("start")
	if starts[0].run.Name != "shout" || starts[0].run.RunID != id {
		t.Errorf("expected top run shout/%s, got %s/%s", id, starts[0].run.Name, starts[0].run.RunID)
	}
	if starts[1].run.Name != "upper" || starts[1].run.RunID == id {
		t.Errorf("expected child to keep its own name and id, got %+v", starts[1].run)
	}
}

func TestInvoke_LocalCallbacksSeeOnlyTheTopRun(t *testing.T) {
	local, inherited := &recorder{}, &recorder{}
	_, err := Invoke(context.Background(), Pipe(upper, exclaim), "hi",
		WithLocalCallbacks(local), WithCallbacks(inherited))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(local.hooks("start")); n != 1 {
		t.Errorf("expected local handler to see 1 run, got %d", n)
	}
	if n := len(inherited.hooks("start")); n != 3 {
		t.Errorf("expected inherited handler to see 3 runs, got %d", n)
	}
}

func TestInvoke_PanickingHandlerDoesNotBreakRun(t *testing.T) {
	bad := callbacks.HandlerFuncs{
		Start: func(context.Context, callbacks.RunInfo, any) { panic("handler bug") },
	}
	out, err := Invoke(context.Background(), upper, "hi", WithCallbacks(bad))
	if err != nil || out != "HI" {
		t.Errorf("expected HI, nil; got %v, %v", out, err)
	}
}

func TestInvokeStreamEquivalence(t *testing.T) {
	gen := chunks("gen", "he", "llo")
	tests := []struct {
		name  string
		r     Runnable
		input any
	}{
		{"leaf", upper, "hi"},
		{"generator", gen, nil},
		{"sequence ending in generator", Pipe(upper, gen), "hi"},
		{"sequence of leaves", Pipe(upper, exclaim), "hi"},
		{"parallel", NewParallel(Step{"gen", gen}, Step{"up", upper}), "hi"},
		{"branch", NewBranch(upper, When(func(any) bool { return true }, gen)), "hi"},
		{"lambda dispatch", NewLambda("route", func(context.Context, any, Config) (any, error) { return gen, nil }), "hi"},
		{"assign", NewAssign(Step{"gen", gen}), map[string]any{"q": "x"}},
		{"assign over existing key", NewAssign(Step{"q", gen}), map[string]any{"q": "x"}},
		{"parallel with empty branch", NewParallel(Step{"none", chunks("none")}, Step{"up", upper}), "hi"},
		{"retry", WithRetry(gen, RetryPolicy{MaxAttempts: 2}), nil},
		{"structured chunks", chunks("calls",
			map[string]any{"tool_calls": []any{map[string]any{"index": 0, "args": "{\"a\""}}},
			map[string]any{"tool_calls": []any{map[string]any{"index": 0, "args": ":1}"}}},
		), nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			want, err := Invoke(ctx, tc.r, tc.input)
			if err != nil {
				t.Fatalf("invoke: %v", err)
			}
			it, err := Stream(ctx, tc.r, tc.input)
			if err != nil {
				t.Fatalf("stream: %v", err)
			}
			got, err := Fold(ctx, it)
			if err != nil {
				t.Fatalf("fold: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("folded stream %#v != invoke %#v", got, want)
			}
		})
	}
}

func TestStream_NonStreamingUnitYieldsOneChunk(t *testing.T) {
	it, err := Stream(context.Background(), Pipe(upper, exclaim), "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := Collect(context.Background(), it)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, []any{"HI!"}) {
		t.Errorf("expected single chunk HI!, got %v", got)
	}
}

func TestStream_IsLazy(t *testing.T) {
	tests := []struct {
		name  string
		build func(leaf Runnable) Runnable
	}{
		{"sequence", func(leaf Runnable) Runnable { return Pipe(leaf, leaf) }},
		{"parallel", func(leaf Runnable) Runnable { return NewParallel(Step{"a", leaf}, Step{"b", leaf}) }},
		{"assign", func(leaf Runnable) Runnable { return NewAssign(Step{"a", leaf}, Step{"b", leaf}) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			leaf := newCounting("leaf", func(int, any) (any, error) { return "x", nil })
			it, err := Stream(context.Background(), tc.build(leaf), map[string]any{"in": 1})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			time.Sleep(10 * time.Millisecond)
			if leaf.calls() != 0 {
				t.Fatalf("expected no work before the first pull, got %d calls", leaf.calls())
			}
			if _, err := Collect(context.Background(), it); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if leaf.calls() != 2 {
				t.Errorf("expected 2 calls after draining, got %d", leaf.calls())
			}
		})
	}
}

func TestStream_ReportsTokensAndAccumulatedOutput(t *testing.T) {
	rec := &recorder{}
	it, err := Stream(context.Background(), chunks("gen", "a", "b", "c"), nil, WithCallbacks(rec))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := Collect(context.Background(), it); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(rec.hooks("token")); n != 3 {
		t.Errorf("expected 3 tokens, got %d", n)
	}
	ends := rec.hooks("end")
	if len(ends) != 1 || ends[0].payload != "abc" {
		t.Errorf("expected end with accumulated abc, got %+v", ends)
	}
}

func TestStream_IncompatibleChunksEndWithLatest(t *testing.T) {
	rec := &recorder{}
	it, _ := Stream(context.Background(), chunks("mixed", "a", 1, 2), nil, WithCallbacks(rec))
	if _, err := Collect(context.Background(), it); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ends := rec.hooks("end")
	if len(ends) != 1 || ends[0].payload != 2 {
		t.Errorf("expected end payload 2, got %+v", ends)
	}
}

func TestStream_EarlyCloseEndsRunWithError(t *testing.T) {
	rec := &recorder{}
	ctx := context.Background()
	it, err := Stream(ctx, chunks("gen", "a", "b", "c"), nil, WithCallbacks(rec))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := it.Next(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = it.Close()
	_ = it.Close()

	errs := rec.hooks("error")
	if len(errs) != 1 {
		t.Fatalf("expected exactly one error notification, got %d", len(errs))
	}
	if err, _ := errs[0].payload.(error); !stderrors.Is(err, ErrStreamClosed) {
		t.Errorf("expected ErrStreamClosed, got %v", errs[0].payload)
	}
	if len(rec.hooks("end")) != 0 {
		t.Error("expected no end notification")
	}
}

func TestStream_CancelledMidStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	it, err := Stream(ctx, chunks("gen", "a", "b"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := it.Next(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cancel()
	_, ok, err := it.Next(ctx)
	if ok || !errors.IsCanceled(err) {
		t.Errorf("expected cancellation, got ok=%v err=%v", ok, err)
	}
}

func TestPipeLaw(t *testing.T) {
	ctx := context.Background()
	for _, in := range []string{"", "hi", "Go"} {
		a, _ := Invoke(ctx, upper, in)
		want, _ := Invoke(ctx, exclaim, a)
		got, err := Invoke(ctx, Pipe(upper, exclaim), in)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Errorf("Pipe(A, B)(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFunc_TypeMismatch(t *testing.T) {
	_, err := Invoke(context.Background(), upper, 42)
	if errors.CodeOf(err) != errors.ErrCodeInvalidInput {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
	if errors.IsRetryable(err) {
		t.Error("expected input errors to be non-retryable")
	}
}

func TestInvokeAs(t *testing.T) {
	s, err := InvokeAs[string](context.Background(), upper, "hi")
	if err != nil || s != "HI" {
		t.Errorf("expected HI, got %q, %v", s, err)
	}
	if _, err := InvokeAs[int](context.Background(), upper, "hi"); errors.CodeOf(err) != errors.ErrCodeInvalidInput {
		t.Errorf("expected INVALID_INPUT for wrong output type, got %v", err)
	}
}

func TestRunIDsAreTimeOrdered(t *testing.T) {
	rec := &recorder{}
	_, err := Invoke(context.Background(), Pipe(upper, exclaim, upper, exclaim), "hi", WithCallbacks(rec))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	starts := rec.hooks("start")
	for i := 1; i < len(starts); i++ {
		if starts[i].run.RunID <= starts[i-1].run.RunID {
			t.Errorf("run id %s not after %s", starts[i].run.RunID, starts[i-1].run.RunID)
		}
	}
}
