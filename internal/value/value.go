package value

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"unicode/utf16"
)

// Snapshotter is implemented by wrapper types (reactive instances) that can
// produce a plain deep copy of themselves made only of leaf types.
type Snapshotter interface {
	Snapshot() any
}

// Kind classifies a value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindString
	KindInt
	KindFloat
	KindObject
	KindArray
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	}
	return "other"
}

// KindOf reports the kind of a normalized value.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case string:
		return KindString
	case int64:
		return KindInt
	case float64:
		return KindFloat
	case map[string]any:
		return KindObject
	case []any:
		return KindArray
	default:
		return KindOther
	}
}

// IsStructured reports whether v is a record or a sequence (plain or
// already converted by a Snapshotter).
func IsStructured(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

// Normalize converts a Go value into the leaf set. Integers of any width
// become int64, float32 becomes float64, typed maps keyed by string and typed
// slices are copied into map[string]any and []any. Values already in the leaf
// set are returned as-is (no copy). Unknown kinds (funcs, channels, structs)
// are returned unchanged.
func Normalize(v any) any {
	switch val := v.(type) {
	case nil, bool, string, int64, float64, map[string]any, []any:
		return v
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		if val > math.MaxInt64 {
			return float64(val)
		}
		return int64(val)
	case float32:
		return float64(val)
	case Snapshotter:
		return v
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return v
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String || rv.IsNil() {
			return v
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = Normalize(iter.Value().Interface())
		}
		return out
	}
	return v
}

// Clone returns a deep copy of v. Snapshotters are replaced by their snapshot,
// so the result never aliases live reactive state.
func Clone(v any) any {
	switch val := v.(type) {
	case Snapshotter:
		return val.Snapshot()
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = Clone(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = Clone(elem)
		}
		return out
	default:
		return Normalize(v)
	}
}

// Same reports identity equality the way an assignment check needs it:
// scalars compare by value, wrappers by pointer identity, and plain maps or
// slices are never considered the same (a fresh structure is always a change).
func Same(a, b any) bool {
	switch a.(type) {
	case map[string]any, []any:
		return false
	}
	switch b.(type) {
	case map[string]any, []any:
		return false
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta != nil && !ta.Comparable() {
		return false
	}
	return a == b
}

// Equal reports deep equality of two values after cloning wrappers down to
// plain data.
func Equal(a, b any) bool {
	return reflect.DeepEqual(Clone(a), Clone(b))
}

// Merge overlays patch onto base: every top-level key of patch replaces the
// key in base (no deep merge). When either side is not a record, patch wins.
// Neither argument is modified.
func Merge(base, patch any) any {
	b, okBase := Clone(base).(map[string]any)
	p, okPatch := Clone(patch).(map[string]any)
	if !okBase || !okPatch {
		if patch == nil {
			return Clone(base)
		}
		return Clone(patch)
	}
	for k, v := range p {
		b[k] = v
	}
	return b
}

// Omit returns a shallow copy of a record without the given keys. Non-record
// values are returned unchanged.
func Omit(v any, keys ...string) any {
	obj, ok := v.(map[string]any)
	if !ok {
		return v
	}
	out := make(map[string]any, len(obj))
	for k, elem := range obj {
		if slices.Contains(keys, k) {
			continue
		}
		out[k] = elem
	}
	return out
}

// SortedKeys returns record keys in canonical order (UTF-16 code units).
func SortedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, CompareKeys)
	return keys
}

// CompareKeys compares strings by UTF-16 code units. Go's native string
// comparison uses UTF-8 bytes, which orders supplementary characters
// differently.
func CompareKeys(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// Describe renders a value for log attributes.
func Describe(v any) string {
	data, err := Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
