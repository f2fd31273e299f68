package runnable

import (
	"context"
	"fmt"

	"github.com/kbukum/runkit/errors"
)

// Sequence feeds the output of each step into the next.
type Sequence struct {
	name  string
	steps []Runnable
}

// NewSequence chains steps in order. Unnamed nested sequences are flattened.
func NewSequence(steps ...Runnable) *Sequence {
	s := &Sequence{}
	for _, step := range steps {
		if inner, ok := step.(*Sequence); ok && inner.name == "" {
			s.steps = append(s.steps, inner.steps...)
			continue
		}
		s.steps = append(s.steps, step)
	}
	return s
}

// Pipe chains first and rest into a Sequence.
func Pipe(first Runnable, rest ...Runnable) *Sequence {
	return NewSequence(append([]Runnable{first}, rest...)...)
}

// Pipe returns a new Sequence with next appended.
func (s *Sequence) Pipe(next ...Runnable) *Sequence {
	return NewSequence(append([]Runnable{s}, next...)...)
}

// WithName returns a copy of s with a fixed name. Named sequences keep their
// own run when nested in another sequence.
func (s *Sequence) WithName(name string) *Sequence {
	return &Sequence{name: name, steps: s.steps}
}

// Steps returns the flattened steps.
func (s *Sequence) Steps() []Runnable { return s.steps }

func (s *Sequence) Name() string {
	if s.name != "" {
		return s.name
	}
	return "sequence"
}

func (s *Sequence) validate() error {
	if len(s.steps) == 0 {
		return errors.InvalidComposition(s.Name(), "sequence has no steps")
	}
	for i, step := range s.steps {
		if step == nil {
			return errors.InvalidComposition(s.Name(), fmt.Sprintf("step %d has no runnable", i))
		}
	}
	return nil
}

func (s *Sequence) Invoke(ctx context.Context, input any, cfg Config) (any, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s.invokeSteps(ctx, s.steps, input, cfg)
}

func (s *Sequence) invokeSteps(ctx context.Context, steps []Runnable, input any, cfg Config) (any, error) {
	out := input
	for _, step := range steps {
		var err error
		if out, err = InvokeConfig(ctx, step, out, cfg); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Stream invokes every step but the last and streams the last one. No step
// runs before the first chunk is pulled.
func (s *Sequence) Stream(_ context.Context, input any, cfg Config) (Iterator, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	last := len(s.steps) - 1
	return &lazyIter{open: func(ctx context.Context) (Iterator, error) {
		in, err := s.invokeSteps(ctx, s.steps[:last], input, cfg)
		if err != nil {
			return nil, err
		}
		return StreamConfig(ctx, s.steps[last], in, cfg)
	}}, nil
}
