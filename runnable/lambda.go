package runnable

import (
	"context"
	"fmt"

	"github.com/kbukum/runkit/errors"
)

// LambdaFunc is the function wrapped by a Lambda.
type LambdaFunc func(ctx context.Context, input any, cfg Config) (any, error)

// Lambda wraps a function. When the function returns a Runnable, that unit
// is run on the same input as a child of the lambda's run, in both invoke
// and stream modes.
type Lambda struct {
	name string
	fn   LambdaFunc
}

// NewLambda wraps fn.
func NewLambda(name string, fn LambdaFunc) *Lambda {
	return &Lambda{name: name, fn: fn}
}

func (l *Lambda) Name() string { return l.name }

func (l *Lambda) Kind() Kind { return KindLambda }

func (l *Lambda) Invoke(ctx context.Context, input any, cfg Config) (any, error) {
	out, err := l.fn(ctx, input, cfg)
	if err != nil {
		return nil, err
	}
	if next, ok := out.(Runnable); ok {
		return InvokeConfig(ctx, next, input, cfg)
	}
	return out, nil
}

// Stream runs fn when the first chunk is pulled. A returned Runnable is
// streamed so its chunks flow through; a plain value is a single chunk.
func (l *Lambda) Stream(_ context.Context, input any, cfg Config) (Iterator, error) {
	return &lazyIter{open: func(ctx context.Context) (Iterator, error) {
		out, err := l.fn(ctx, input, cfg)
		if err != nil {
			return nil, err
		}
		if next, ok := out.(Runnable); ok {
			return StreamConfig(ctx, next, input, cfg)
		}
		return FromSlice(out), nil
	}}, nil
}

// GeneratorFunc produces the chunks of a Generator.
type GeneratorFunc func(ctx context.Context, input any, cfg Config) (Iterator, error)

// Generator is a leaf with native streaming. Invoke folds its chunks.
type Generator struct {
	name string
	kind Kind
	fn   GeneratorFunc
}

// NewGenerator wraps fn.
func NewGenerator(name string, fn GeneratorFunc) *Generator {
	return &Generator{name: name, kind: KindLambda, fn: fn}
}

// WithKind returns a copy of g that labels its runs with kind.
func (g *Generator) WithKind(kind Kind) *Generator {
	return &Generator{name: g.name, kind: kind, fn: g.fn}
}

func (g *Generator) Name() string { return g.name }

func (g *Generator) Kind() Kind { return g.kind }

func (g *Generator) Invoke(ctx context.Context, input any, cfg Config) (any, error) {
	it, err := g.fn(ctx, input, cfg)
	if err != nil {
		return nil, err
	}
	return Fold(ctx, it)
}

func (g *Generator) Stream(ctx context.Context, input any, cfg Config) (Iterator, error) {
	return g.fn(ctx, input, cfg)
}

// Func wraps a typed function. An input of the wrong type fails with an
// invalid-input error.
func Func[I, O any](name string, fn func(ctx context.Context, input I) (O, error)) *Lambda {
	return NewLambda(name, func(ctx context.Context, input any, _ Config) (any, error) {
		in, ok := input.(I)
		if !ok && input != nil {
			var want I
			return nil, errors.InvalidInput("input", fmt.Sprintf("%s expects %T, got %T", name, want, input))
		}
		return fn(ctx, in)
	})
}

// InvokeAs invokes r and asserts the output type.
func InvokeAs[O any](ctx context.Context, r Runnable, input any, opts ...Option) (O, error) {
	var zero O
	out, err := Invoke(ctx, r, input, opts...)
	if err != nil {
		return zero, err
	}
	typed, ok := out.(O)
	if !ok {
		return zero, errors.InvalidInput("output", fmt.Sprintf("%s returned %T, want %T", r.Name(), out, zero))
	}
	return typed, nil
}
