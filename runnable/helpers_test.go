package runnable

import (
	"context"
	"strings"
	"sync"

	"github.com/kbukum/runkit/callbacks"
)

var (
	upper = Func("upper", func(_ context.Context, s string) (string, error) {
		return strings.ToUpper(s), nil
	})
	exclaim = Func("exclaim", func(_ context.Context, s string) (string, error) {
		return s + "!", nil
	})
)

// chunks returns a generator yielding parts regardless of its input.
func chunks(name string, parts ...any) *Generator {
	return NewGenerator(name, func(context.Context, any, Config) (Iterator, error) {
		return FromSlice(parts...), nil
	})
}

// counting wraps fn and counts its calls.
type counting struct {
	name string
	mu   sync.Mutex
	n    int
	fn   func(call int, input any) (any, error)
}

func newCounting(name string, fn func(call int, input any) (any, error)) *counting {
	return &counting{name: name, fn: fn}
}

func (c *counting) Name() string { return c.name }

func (c *counting) Invoke(_ context.Context, input any, _ Config) (any, error) {
	c.mu.Lock()
	c.n++
	call := c.n
	c.mu.Unlock()
	return c.fn(call, input)
}

func (c *counting) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

type record struct {
	hook    string
	run     callbacks.RunInfo
	payload any
}

// recorder captures every notification in arrival order.
type recorder struct {
	mu      sync.Mutex
	records []record
}

func (r *recorder) add(hook string, run callbacks.RunInfo, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record{hook: hook, run: run, payload: payload})
}

func (r *recorder) OnStart(_ context.Context, run callbacks.RunInfo, input any) {
	r.add("start", run, input)
}

func (r *recorder) OnEnd(_ context.Context, run callbacks.RunInfo, output any) {
	r.add("end", run, output)
}

func (r *recorder) OnError(_ context.Context, run callbacks.RunInfo, err error) {
	r.add("error", run, err)
}

func (r *recorder) OnNewToken(_ context.Context, run callbacks.RunInfo, chunk any) {
	r.add("token", run, chunk)
}

func (r *recorder) all() []record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]record, len(r.records))
	copy(out, r.records)
	return out
}

func (r *recorder) hooks(hook string) []record {
	var out []record
	for _, rec := range r.all() {
		if rec.hook == hook {
			out = append(out, rec)
		}
	}
	return out
}
