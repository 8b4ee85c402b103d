package reactive

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/roach88/reactor/internal/value"
)

// Array is a reactive ordered sequence.
//
// Index assignment notifies with ActionSet and the index as property. Every
// sequence operation (Push, Pop, Splice, ...) runs first, then re-scans the
// items to convert and link new nested structures, then notifies once with
// the operation name as action, the empty path, and the operation arguments
// as value.
type Array struct {
	emitter
	items []any
}

// NewArray wraps items. The slice is copied.
func NewArray(items []any, recursive bool, protected ...string) *Array {
	a := &Array{items: make([]any, len(items))}
	a.init(a, recursive, protected)

	for i, item := range items {
		a.items[i] = a.adopt(value.Normalize(item))
	}
	return a
}

// Get returns the item at i, or nil when out of range.
func (a *Array) Get(i int) any {
	if i < 0 || i >= len(a.items) {
		return nil
	}
	return a.items[i]
}

// Len returns the number of items.
func (a *Array) Len() int {
	return len(a.items)
}

// Items returns a shallow copy of the items.
func (a *Array) Items() []any {
	return slices.Clone(a.items)
}

// Set assigns the item at i, growing the sequence with nils when i is past
// the end. Negative indexes are ignored.
func (a *Array) Set(i int, v any) {
	if i < 0 {
		return
	}
	v = value.Normalize(v)
	if i < len(a.items) && value.Same(a.items[i], v) {
		return
	}

	prop := strconv.Itoa(i)
	if isProtected(a.protected, prop) {
		a.put(i, v)
		return
	}

	stored := a.adopt(v)
	a.put(i, stored)
	a.unlinkDetached()
	a.Notify(stored, prop, ActionSet, "", nil)
}

// Delete clears the item at i (leaving a nil hole) and notifies with
// ActionDelete. Clearing an out-of-range or already nil item is a no-op.
func (a *Array) Delete(i int) {
	if i < 0 || i >= len(a.items) || a.items[i] == nil {
		return
	}
	a.items[i] = nil
	a.unlinkDetached()

	prop := strconv.Itoa(i)
	if isProtected(a.protected, prop) {
		return
	}
	a.Notify(nil, prop, ActionDelete, "", nil)
}

// Push appends items and returns the new length.
func (a *Array) Push(items ...any) int {
	a.items = append(a.items, normalizeAll(items)...)
	a.mutated(ActionPush, items)
	return len(a.items)
}

// Pop removes and returns the last item.
func (a *Array) Pop() any {
	var out any
	if n := len(a.items); n > 0 {
		out = a.items[n-1]
		a.items[n-1] = nil
		a.items = a.items[:n-1]
	}
	a.mutated(ActionPop, nil)
	return out
}

// Shift removes and returns the first item.
func (a *Array) Shift() any {
	var out any
	if len(a.items) > 0 {
		out = a.items[0]
		a.items = slices.Delete(a.items, 0, 1)
	}
	a.mutated(ActionShift, nil)
	return out
}

// Unshift prepends items and returns the new length.
func (a *Array) Unshift(items ...any) int {
	a.items = slices.Insert(a.items, 0, normalizeAll(items)...)
	a.mutated(ActionUnshift, items)
	return len(a.items)
}

// Splice removes deleteCount items at start, inserts items in their place,
// and returns the removed items. A negative start counts from the end.
func (a *Array) Splice(start, deleteCount int, items ...any) []any {
	n := len(a.items)
	start = relIndex(start, n)
	deleteCount = max(0, min(deleteCount, n-start))

	removed := slices.Clone(a.items[start : start+deleteCount])
	a.items = slices.Replace(a.items, start, start+deleteCount, normalizeAll(items)...)

	args := append([]any{int64(start), int64(deleteCount)}, items...)
	a.mutated(ActionSplice, args)
	return removed
}

// Sort orders the items in place. A nil less uses the default ordering:
// nil, then booleans, numbers, strings, and finally structured values by
// their canonical JSON.
func (a *Array) Sort(less func(x, y any) bool) {
	if less == nil {
		less = defaultLess
	}
	slices.SortStableFunc(a.items, func(x, y any) int {
		switch {
		case less(x, y):
			return -1
		case less(y, x):
			return 1
		}
		return 0
	})
	a.mutated(ActionSort, nil)
}

// Reverse reverses the items in place.
func (a *Array) Reverse() {
	slices.Reverse(a.items)
	a.mutated(ActionReverse, nil)
}

// Fill assigns v to every index in [start, end). Bounds are optional:
// Fill(v), Fill(v, start), Fill(v, start, end). Negative bounds count from
// the end.
func (a *Array) Fill(v any, bounds ...int) {
	n := len(a.items)
	start, end := span(n, bounds)
	v = value.Normalize(v)
	for i := start; i < end; i++ {
		a.items[i] = v
	}

	args := []any{v}
	for _, b := range bounds {
		args = append(args, int64(b))
	}
	a.mutated(ActionFill, args)
}

// CopyWithin copies the items in [start, end) to target, overwriting
// without changing the length. Bounds are optional as for Fill.
func (a *Array) CopyWithin(target int, bounds ...int) {
	n := len(a.items)
	target = relIndex(target, n)
	start, end := span(n, bounds)
	count := min(end-start, n-target)
	if count > 0 {
		src := slices.Clone(a.items[start : start+count])
		copy(a.items[target:], src)
	}

	args := []any{int64(target)}
	for _, b := range bounds {
		args = append(args, int64(b))
	}
	a.mutated(ActionCopyWithin, args)
}

// ReplaceItems swaps the whole content for items with a single splice.
func (a *Array) ReplaceItems(items []any) {
	a.Splice(0, len(a.items), items...)
}

// Apply invokes the named sequence operation with args in the wire shape
// produced by notifications. It is used to replay remote changes.
func (a *Array) Apply(action Action, args []any) error {
	switch action {
	case ActionPush:
		a.Push(args...)
	case ActionPop:
		a.Pop()
	case ActionShift:
		a.Shift()
	case ActionUnshift:
		a.Unshift(args...)
	case ActionSplice:
		if len(args) < 1 {
			return fmt.Errorf("splice: missing start")
		}
		start, err := intArg(args, 0)
		if err != nil {
			return fmt.Errorf("splice: %w", err)
		}
		count := len(a.items)
		if len(args) > 1 {
			if count, err = intArg(args, 1); err != nil {
				return fmt.Errorf("splice: %w", err)
			}
		}
		var items []any
		if len(args) > 2 {
			items = args[2:]
		}
		a.Splice(start, count, items...)
	case ActionSort:
		a.Sort(nil)
	case ActionReverse:
		a.Reverse()
	case ActionFill:
		if len(args) < 1 {
			return fmt.Errorf("fill: missing value")
		}
		bounds, err := intArgs(args[1:])
		if err != nil {
			return fmt.Errorf("fill: %w", err)
		}
		a.Fill(args[0], bounds...)
	case ActionCopyWithin:
		if len(args) < 1 {
			return fmt.Errorf("copyWithin: missing target")
		}
		target, err := intArg(args, 0)
		if err != nil {
			return fmt.Errorf("copyWithin: %w", err)
		}
		bounds, err := intArgs(args[1:])
		if err != nil {
			return fmt.Errorf("copyWithin: %w", err)
		}
		a.CopyWithin(target, bounds...)
	default:
		return fmt.Errorf("unsupported sequence action %q", action)
	}
	return nil
}

// Snapshot returns a plain deep copy of the items.
func (a *Array) Snapshot() any {
	out := make([]any, len(a.items))
	for i, v := range a.items {
		out[i] = value.Clone(v)
	}
	return out
}

// MarshalJSON encodes the items as canonical JSON.
func (a *Array) MarshalJSON() ([]byte, error) {
	return value.Marshal(a.Snapshot())
}

// mutated re-scans items after a sequence operation and notifies.
func (a *Array) mutated(action Action, args []any) {
	for i, item := range a.items {
		a.items[i] = a.adopt(item)
	}
	a.unlinkDetached()

	if args == nil {
		args = []any{}
	}
	a.Notify(normalizeAll(args), "", action, "", nil)
}

func (a *Array) put(i int, v any) {
	for len(a.items) <= i {
		a.items = append(a.items, nil)
	}
	a.items[i] = v
}

func (a *Array) locate(child Value) (string, bool) {
	for i, item := range a.items {
		if v, ok := item.(Value); ok && v == child {
			return strconv.Itoa(i), true
		}
	}
	return "", false
}

func (a *Array) contains(child Value) bool {
	_, ok := a.locate(child)
	return ok
}

func normalizeAll(items []any) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = value.Normalize(item)
	}
	return out
}

// relIndex clamps a possibly negative index into [0, n].
func relIndex(i, n int) int {
	if i < 0 {
		return max(n+i, 0)
	}
	return min(i, n)
}

// span resolves optional [start, end) bounds against a length.
func span(n int, bounds []int) (int, int) {
	start, end := 0, n
	if len(bounds) > 0 {
		start = relIndex(bounds[0], n)
	}
	if len(bounds) > 1 {
		end = relIndex(bounds[1], n)
	}
	if end < start {
		end = start
	}
	return start, end
}

func intArg(args []any, i int) (int, error) {
	switch n := value.Normalize(args[i]).(type) {
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("argument %d is not an integer: %v", i, n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("argument %d is not a number: %T", i, args[i])
	}
}

func intArgs(args []any) ([]int, error) {
	out := make([]int, len(args))
	for i := range args {
		n, err := intArg(args, i)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func kindRank(v any) int {
	switch value.KindOf(value.Normalize(v)) {
	case value.KindNull:
		return 0
	case value.KindBool:
		return 1
	case value.KindInt, value.KindFloat:
		return 2
	case value.KindString:
		return 3
	default:
		return 4
	}
}

func defaultLess(x, y any) bool {
	rx, ry := kindRank(x), kindRank(y)
	if rx != ry {
		return rx < ry
	}
	switch rx {
	case 1:
		return !x.(bool) && y.(bool)
	case 2:
		return toFloat(x) < toFloat(y)
	case 3:
		return x.(string) < y.(string)
	case 4:
		return value.Describe(x) < value.Describe(y)
	}
	return false
}

func toFloat(v any) float64 {
	switch n := value.Normalize(v).(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}
