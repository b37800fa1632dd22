package specmodel

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// ErrCyclicBody is returned by Flatten when the input graph contains a
// cycle (a map or slice that contains itself, directly or transitively).
type ErrCyclicBody struct{}

func (ErrCyclicBody) Error() string { return "flatten: cyclic body" }

// Flatten converts a nested JSON-shaped body (maps, slices, scalars) into
// a flat map from dotted key to scalar leaf, per the grammar in
// spec.md §4.1: `segment ( ('.' segment) | ('[' digits ']') )*`.
func Flatten(body any) (map[string]any, error) {
	out := map[string]any{}
	if err := flattenInto("", body, out, map[uintptr]bool{}); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenInto(prefix string, v any, out map[string]any, stack map[uintptr]bool) error {
	switch vv := v.(type) {
	case map[string]any:
		if len(vv) == 0 {
			out[leafKey(prefix)] = vv
			return nil
		}
		ptr := reflect.ValueOf(vv).Pointer()
		if stack[ptr] {
			return ErrCyclicBody{}
		}
		stack[ptr] = true
		defer delete(stack, ptr)

		keys := make([]string, 0, len(vv))
		for k := range vv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if err := flattenInto(key, vv[k], out, stack); err != nil {
				return err
			}
		}
		return nil

	case []any:
		if len(vv) == 0 {
			out[leafKey(prefix)] = vv
			return nil
		}
		ptr := reflect.ValueOf(vv).Pointer()
		if stack[ptr] {
			return ErrCyclicBody{}
		}
		stack[ptr] = true
		defer delete(stack, ptr)

		for i, item := range vv {
			key := fmt.Sprintf("%s[%d]", prefix, i)
			if err := flattenInto(key, item, out, stack); err != nil {
				return err
			}
		}
		return nil

	default:
		out[leafKey(prefix)] = v
		return nil
	}
}

func leafKey(prefix string) string {
	return prefix
}

type pathToken struct {
	name    string
	isIndex bool
	index   int
}

func parseDottedKey(key string) ([]pathToken, error) {
	var toks []pathToken
	i, n := 0, len(key)

	start := i
	for i < n && key[i] != '.' && key[i] != '[' {
		i++
	}
	if i > start {
		toks = append(toks, pathToken{name: key[start:i]})
	}

	for i < n {
		switch key[i] {
		case '.':
			i++
			start = i
			for i < n && key[i] != '.' && key[i] != '[' {
				i++
			}
			if i == start {
				return nil, fmt.Errorf("flatten: empty segment in key %q", key)
			}
			toks = append(toks, pathToken{name: key[start:i]})
		case '[':
			i++
			start = i
			for i < n && key[i] != ']' {
				i++
			}
			if i >= n {
				return nil, fmt.Errorf("flatten: unterminated index in key %q", key)
			}
			idx, err := strconv.Atoi(key[start:i])
			if err != nil {
				return nil, fmt.Errorf("flatten: bad array index in key %q: %w", key, err)
			}
			toks = append(toks, pathToken{isIndex: true, index: idx})
			i++
		default:
			return nil, fmt.Errorf("flatten: unexpected character at %d in key %q", i, key)
		}
	}
	return toks, nil
}

// Unflatten is the exact inverse of Flatten on bodies with no mixed-type
// array positions (spec.md §8): it rebuilds the nested JSON-shaped value
// from a flat dotted-key map, inferring object vs. list shape at each
// intermediate node from the sibling keys that share its prefix.
func Unflatten(flat map[string]any) (any, error) {
	if len(flat) == 0 {
		return map[string]any{}, nil
	}

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var root any
	for _, k := range keys {
		toks, err := parseDottedKey(k)
		if err != nil {
			return nil, err
		}
		if len(toks) == 0 {
			return flat[k], nil
		}
		root, err = setPath(root, toks, flat[k])
		if err != nil {
			return nil, err
		}
	}
	return root, nil
}

func setPath(node any, toks []pathToken, value any) (any, error) {
	head := toks[0]

	if head.isIndex {
		arr, _ := node.([]any)
		for len(arr) <= head.index {
			arr = append(arr, nil)
		}
		if len(toks) == 1 {
			arr[head.index] = value
			return arr, nil
		}
		child, err := setPath(arr[head.index], toks[1:], value)
		if err != nil {
			return nil, err
		}
		arr[head.index] = child
		return arr, nil
	}

	obj, ok := node.(map[string]any)
	if !ok {
		if node != nil {
			return nil, fmt.Errorf("unflatten: conflicting shapes at segment %q", head.name)
		}
		obj = map[string]any{}
	}
	if len(toks) == 1 {
		obj[head.name] = value
		return obj, nil
	}
	child, err := setPath(obj[head.name], toks[1:], value)
	if err != nil {
		return nil, err
	}
	obj[head.name] = child
	return obj, nil
}

// DottedKeyHasPrefix reports whether key is k itself, or nested under it
// (k.* or k[*]), per the prefix rule used by override/__undefined
// handling in spec.md §4.2.
func DottedKeyHasPrefix(key, prefix string) bool {
	if key == prefix {
		return true
	}
	return strings.HasPrefix(key, prefix+".") || strings.HasPrefix(key, prefix+"[")
}
