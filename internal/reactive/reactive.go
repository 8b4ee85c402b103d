package reactive

import (
	"encoding/json"

	"github.com/roach88/reactor/internal/value"
)

// Value is a reactive record or sequence. It is implemented only by *Object
// and *Array.
type Value interface {
	value.Snapshotter
	json.Marshaler

	// Subscribe registers fn. When init is true fn is invoked once with the
	// current instance before being registered. Non-nil actions or props
	// restrict which notifications reach fn.
	Subscribe(fn Listener, init bool, actions []Action, props []string) Unsubscribe

	// SubscribeFor registers fn filtered by actions and (optionally) props,
	// without the immediate invocation.
	SubscribeFor(actions []Action, fn Listener, props []string) Unsubscribe

	// SubscribeActions registers fn filtered by actions only.
	SubscribeActions(actions []Action, fn Listener) Unsubscribe

	// SubscribeProps registers fn filtered by props only.
	SubscribeProps(props []string, fn Listener) Unsubscribe

	// Notify is the internal notifier. It resolves the path of a change
	// raised by origin (nil for the value's own mutations) and fans the
	// event out to listeners.
	Notify(v any, prop string, action Action, path string, origin Value)

	// Recursive reports whether nested structures are converted.
	Recursive() bool

	// Len returns the number of fields or items.
	Len() int

	locate(child Value) (string, bool)
	contains(child Value) bool
}

var (
	_ Value = (*Object)(nil)
	_ Value = (*Array)(nil)
)

// New converts v into a reactive value. Records become *Object, sequences
// become *Array, values that are already reactive are returned unchanged,
// and anything else (scalars, unsupported kinds) is returned as-is without
// reactivity.
func New(v any, recursive bool, protected ...string) any {
	switch val := value.Normalize(v).(type) {
	case Value:
		return val
	case map[string]any:
		return NewObject(val, recursive, protected...)
	case []any:
		return NewArray(val, recursive, protected...)
	default:
		return v
	}
}

// Is reports whether v is a reactive value.
func Is(v any) bool {
	_, ok := v.(Value)
	return ok
}

// Snapshot returns a plain deep copy of v, unwrapping reactive values.
func Snapshot(v any) any {
	return value.Clone(v)
}

// wrap converts a structured value for storage inside a recursive parent.
func wrap(v any, recursive bool) (Value, bool) {
	switch val := v.(type) {
	case Value:
		return val, true
	case map[string]any:
		return NewObject(val, recursive), true
	case []any:
		return NewArray(val, recursive), true
	}
	return nil, false
}

func isProtected(protected []string, key string) bool {
	for _, p := range protected {
		if p == key {
			return true
		}
	}
	return false
}
