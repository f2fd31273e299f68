package chunk

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrIncompatible is returned when two chunks cannot be combined.
var ErrIncompatible = errors.New("chunk: incompatible chunk types")

// IndexKey is the field that marks list elements for element-wise merging.
const IndexKey = "index"

// identityKeys hold values that label a chunk rather than carry content.
var identityKeys = map[string]bool{
	"id":     true,
	"type":   true,
	IndexKey: true,
}

// Concatenable is implemented by chunk types with their own combination rule.
// Concat must not mutate the receiver or the argument.
type Concatenable interface {
	Concat(next any) (any, error)
}

// Concat combines two chunks emitted in sequence by the same run.
// Neither argument is mutated.
func Concat(a, b any) (any, error) {
	if a == nil {
		return b, nil
	}
	if b == nil {
		return a, nil
	}

	if c, ok := a.(Concatenable); ok {
		return c.Concat(b)
	}

	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return av + bv, nil
		}
	case []byte:
		if bv, ok := b.([]byte); ok {
			out := make([]byte, 0, len(av)+len(bv))
			return append(append(out, av...), bv...), nil
		}
	case map[string]any:
		if bv, ok := b.(map[string]any); ok {
			return mergeMaps(av, bv)
		}
	case []any:
		if bv, ok := b.([]any); ok {
			return mergeLists(av, bv)
		}
	}

	return concatReflect(a, b)
}

// Fold reduces chunks left to right with Concat.
// An empty input folds to nil.
func Fold(chunks ...any) (any, error) {
	var acc any
	for i, c := range chunks {
		next, err := Concat(acc, c)
		if err != nil {
			return nil, fmt.Errorf("fold chunk %d: %w", i, err)
		}
		acc = next
	}
	return acc, nil
}

// concatReflect handles typed slices and scalar leaves of matching type.
func concatReflect(a, b any) (any, error) {
	at, bt := reflect.TypeOf(a), reflect.TypeOf(b)
	if at != bt {
		return nil, fmt.Errorf("%w: %T and %T", ErrIncompatible, a, b)
	}

	switch at.Kind() {
	case reflect.Slice:
		av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
		out := reflect.MakeSlice(at, 0, av.Len()+bv.Len())
		out = reflect.AppendSlice(out, av)
		out = reflect.AppendSlice(out, bv)
		return out.Interface(), nil
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return b, nil
	}

	return nil, fmt.Errorf("%w: no rule for %T", ErrIncompatible, a)
}
