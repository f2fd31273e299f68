package runnable

import (
	"context"
	"fmt"
	"reflect"

	"github.com/kbukum/runkit/errors"
)

// Each maps a unit over the elements of a slice input, preserving order.
// The first failing element fails the whole run.
type Each struct {
	inner Runnable
}

// NewEach wraps r.
func NewEach(r Runnable) *Each {
	return &Each{inner: r}
}

func (e *Each) Name() string { return e.inner.Name() + ".each" }

func (e *Each) Invoke(ctx context.Context, input any, cfg Config) (any, error) {
	items, err := sliceInput(e.Name(), input)
	if err != nil {
		return nil, err
	}
	return BatchWith(ctx, e.inner, items, BatchOptions{Configs: []Config{cfg}, FailFast: true})
}

// sliceInput converts any slice to []any.
func sliceInput(name string, input any) ([]any, error) {
	if items, ok := input.([]any); ok {
		return items, nil
	}
	v := reflect.ValueOf(input)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, errors.InvalidInput("input", fmt.Sprintf("%s expects a slice, got %T", name, input))
	}
	items := make([]any, v.Len())
	for i := range items {
		items[i] = v.Index(i).Interface()
	}
	return items, nil
}
