package runnable

import (
	"context"
	"fmt"

	"github.com/kbukum/runkit/errors"
)

// Case pairs a condition with the unit it selects. The condition runs as
// its own unit and must return a bool.
type Case struct {
	Condition Runnable
	Runnable  Runnable
}

// When builds a Case from a predicate.
func When(pred func(input any) bool, r Runnable) Case {
	return Case{
		Condition: NewLambda("condition", func(_ context.Context, input any, _ Config) (any, error) {
			return pred(input), nil
		}),
		Runnable: r,
	}
}

// Branch dispatches to the unit of the first case whose condition holds,
// or to the default. Conditions are evaluated in order and evaluation stops
// at the first match.
type Branch struct {
	name  string
	cases []Case
	def   Runnable
}

// NewBranch returns a Branch falling back to def.
func NewBranch(def Runnable, cases ...Case) *Branch {
	return &Branch{def: def, cases: cases}
}

// WithName returns a copy of b with a fixed name.
func (b *Branch) WithName(name string) *Branch {
	return &Branch{name: name, cases: b.cases, def: b.def}
}

func (b *Branch) Name() string {
	if b.name != "" {
		return b.name
	}
	return "branch"
}

func (b *Branch) Invoke(ctx context.Context, input any, cfg Config) (any, error) {
	target, err := b.route(ctx, input, cfg)
	if err != nil {
		return nil, err
	}
	return InvokeConfig(ctx, target, input, cfg)
}

// Stream streams the selected unit. Conditions run when the first chunk is
// pulled.
func (b *Branch) Stream(_ context.Context, input any, cfg Config) (Iterator, error) {
	return &lazyIter{open: func(ctx context.Context) (Iterator, error) {
		target, err := b.route(ctx, input, cfg)
		if err != nil {
			return nil, err
		}
		return StreamConfig(ctx, target, input, cfg)
	}}, nil
}

func (b *Branch) route(ctx context.Context, input any, cfg Config) (Runnable, error) {
	if b.def == nil {
		return nil, errors.InvalidComposition(b.Name(), "branch has no default")
	}
	for i, c := range b.cases {
		if c.Condition == nil || c.Runnable == nil {
			return nil, errors.InvalidComposition(b.Name(), fmt.Sprintf("case %d is incomplete", i+1))
		}
		v, err := InvokeConfig(ctx, c.Condition, input, cfg.With(WithTags(fmt.Sprintf("condition:%d", i+1))))
		if err != nil {
			return nil, err
		}
		matched, ok := v.(bool)
		if !ok {
			return nil, errors.InvalidInput("condition", fmt.Sprintf("case %d returned %T, want bool", i+1, v))
		}
		if matched {
			return c.Runnable, nil
		}
	}
	return b.def, nil
}
