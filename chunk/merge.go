package chunk

import (
	"fmt"
)

// mergeMaps deep merges b into a copy of a.
func mergeMaps(a, b map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}

	for k, bv := range b {
		av, exists := out[k]
		switch {
		case !exists || av == nil:
			out[k] = bv
		case bv == nil:
			// keep a's value
		case identityKeys[k]:
			if !isEmpty(bv) {
				out[k] = bv
			}
		default:
			merged, err := Concat(av, bv)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			out[k] = merged
		}
	}
	return out, nil
}

// mergeLists appends b to a, except that elements of b carrying an index
// already present in a are merged into that element.
func mergeLists(a, b []any) ([]any, error) {
	out := make([]any, len(a), len(a)+len(b))
	copy(out, a)

	for _, elem := range b {
		idx, ok := indexOf(elem)
		if !ok {
			out = append(out, elem)
			continue
		}

		pos := findIndex(out, idx)
		if pos < 0 {
			out = append(out, elem)
			continue
		}

		merged, err := mergeMaps(out[pos].(map[string]any), elem.(map[string]any))
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		out[pos] = merged
	}
	return out, nil
}

func findIndex(list []any, idx int) int {
	for i, elem := range list {
		if got, ok := indexOf(elem); ok && got == idx {
			return i
		}
	}
	return -1
}

// indexOf returns the integer index field of a map element.
func indexOf(elem any) (int, bool) {
	m, ok := elem.(map[string]any)
	if !ok {
		return 0, false
	}
	switch v := m[IndexKey].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		// JSON decoded numbers
		if v == float64(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}
