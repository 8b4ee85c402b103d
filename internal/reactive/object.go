package reactive

import (
	"slices"

	"github.com/roach88/reactor/internal/value"
)

// Object is a reactive record-of-fields.
type Object struct {
	emitter
	fields map[string]any
	keys   []string // insertion order
}

// NewObject wraps fields. The map is copied; later changes to it are not
// observed. When recursive is true every nested record or sequence is
// converted and linked.
func NewObject(fields map[string]any, recursive bool, protected ...string) *Object {
	o := &Object{fields: make(map[string]any, len(fields))}
	o.init(o, recursive, protected)

	for _, k := range value.SortedKeys(fields) {
		o.fields[k] = o.adopt(value.Normalize(fields[k]))
		o.keys = append(o.keys, k)
	}
	return o
}

// Get returns the field value, or nil when absent.
func (o *Object) Get(key string) any {
	return o.fields[key]
}

// Lookup returns the field value and whether it exists.
func (o *Object) Lookup(key string) (any, bool) {
	v, ok := o.fields[key]
	return v, ok
}

// Has reports whether the field exists.
func (o *Object) Has(key string) bool {
	_, ok := o.fields[key]
	return ok
}

// Keys returns field names in insertion order.
func (o *Object) Keys() []string {
	return slices.Clone(o.keys)
}

// Len returns the number of fields.
func (o *Object) Len() int {
	return len(o.fields)
}

// Range calls fn for each field in insertion order until fn returns false.
func (o *Object) Range(fn func(key string, v any) bool) {
	for _, k := range slices.Clone(o.keys) {
		v, ok := o.fields[k]
		if !ok {
			continue
		}
		if !fn(k, v) {
			return
		}
	}
}

// Set assigns a field and notifies with ActionSet. Assigning the current
// value is a no-op. Protected keys are assigned silently.
func (o *Object) Set(key string, v any) {
	v = value.Normalize(v)
	if cur, ok := o.fields[key]; ok && value.Same(cur, v) {
		return
	}

	if isProtected(o.protected, key) {
		o.store(key, v)
		return
	}

	stored := o.adopt(v)
	o.store(key, stored)
	o.unlinkDetached()
	o.Notify(stored, key, ActionSet, "", nil)
}

// Assign sets each field of fields in canonical key order.
func (o *Object) Assign(fields map[string]any) {
	for _, k := range value.SortedKeys(fields) {
		o.Set(k, fields[k])
	}
}

// Delete removes a field and notifies with ActionDelete. Deleting an absent
// field is a no-op; protected fields are removed silently.
func (o *Object) Delete(key string) {
	if _, ok := o.fields[key]; !ok {
		return
	}

	o.remove(key)
	o.unlinkDetached()
	if isProtected(o.protected, key) {
		return
	}
	o.Notify(nil, key, ActionDelete, "", nil)
}

// Snapshot returns a plain deep copy of the fields.
func (o *Object) Snapshot() any {
	out := make(map[string]any, len(o.fields))
	for k, v := range o.fields {
		out[k] = value.Clone(v)
	}
	return out
}

// MarshalJSON encodes the fields as canonical JSON.
func (o *Object) MarshalJSON() ([]byte, error) {
	return value.Marshal(o.Snapshot())
}

func (o *Object) store(key string, v any) {
	if _, ok := o.fields[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.fields[key] = v
}

func (o *Object) remove(key string) {
	delete(o.fields, key)
	o.keys = slices.DeleteFunc(o.keys, func(k string) bool { return k == key })
}

func (o *Object) locate(child Value) (string, bool) {
	for _, k := range o.keys {
		if v, ok := o.fields[k].(Value); ok && v == child {
			return k, true
		}
	}
	return "", false
}

func (o *Object) contains(child Value) bool {
	_, ok := o.locate(child)
	return ok
}
