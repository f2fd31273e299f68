package runnable

import (
	"context"
	"fmt"
	"maps"

	"github.com/kbukum/runkit/errors"
)

// Passthrough returns its input unchanged.
type Passthrough struct{}

// NewPassthrough returns a Passthrough.
func NewPassthrough() *Passthrough { return &Passthrough{} }

func (*Passthrough) Name() string { return "passthrough" }

func (*Passthrough) Invoke(_ context.Context, input any, _ Config) (any, error) {
	return input, nil
}

// Assign runs a Parallel over a map input and merges the branch outputs
// into a copy of the input. Branch keys overwrite input keys.
type Assign struct {
	mapper *Parallel
}

// NewAssign returns an Assign computing one key per step.
func NewAssign(steps ...Step) *Assign {
	return &Assign{mapper: NewParallel(steps...)}
}

func (*Assign) Name() string { return "assign" }

func (a *Assign) Invoke(ctx context.Context, input any, cfg Config) (any, error) {
	m, err := mapInput(a.Name(), input)
	if err != nil {
		return nil, err
	}
	extra, err := InvokeConfig(ctx, a.mapper, input, cfg)
	if err != nil {
		return nil, err
	}
	out := maps.Clone(m)
	if out == nil {
		out = make(map[string]any)
	}
	maps.Copy(out, extra.(map[string]any))
	return out, nil
}

// Stream yields the input map without the assigned keys first, then the
// one-key chunks of the assigned branches. Assigned keys are left out of the
// head so their chunks replace the input value instead of appending to it.
func (a *Assign) Stream(_ context.Context, input any, cfg Config) (Iterator, error) {
	m, err := mapInput(a.Name(), input)
	if err != nil {
		return nil, err
	}
	head := make(map[string]any, len(m))
	maps.Copy(head, m)
	for _, step := range a.mapper.Steps() {
		delete(head, step.Key)
	}
	return &lazyIter{open: func(ctx context.Context) (Iterator, error) {
		it, err := StreamConfig(ctx, a.mapper, input, cfg)
		if err != nil {
			return nil, err
		}
		return &prefixIter{head: head, rest: it}, nil
	}}, nil
}

// Pick selects keys from a map input. A single key yields its value; several
// keys yield a map with the present ones.
type Pick struct {
	keys []string
}

// NewPick returns a Pick over keys.
func NewPick(keys ...string) *Pick { return &Pick{keys: keys} }

func (*Pick) Name() string { return "pick" }

func (p *Pick) Invoke(_ context.Context, input any, _ Config) (any, error) {
	m, err := mapInput(p.Name(), input)
	if err != nil {
		return nil, err
	}
	if len(p.keys) == 1 {
		return m[p.keys[0]], nil
	}
	out := make(map[string]any, len(p.keys))
	for _, k := range p.keys {
		if v, ok := m[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func mapInput(name string, input any) (map[string]any, error) {
	if input == nil {
		return nil, nil
	}
	m, ok := input.(map[string]any)
	if !ok {
		return nil, errors.InvalidInput("input", fmt.Sprintf("%s expects map[string]any, got %T", name, input))
	}
	return m, nil
}
