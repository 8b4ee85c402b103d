package reactive

import (
	"fmt"

	"github.com/roach88/reactor/internal/value"
)

// Lookup resolves a dotted path from root through reactive and plain nodes.
func Lookup(root Value, path string) (any, bool) {
	var cur any = root
	for _, seg := range value.SplitPath(path) {
		next, ok := child(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// SetPath assigns v at path, creating missing intermediate containers.
// Missing intermediates are built bottom-up and attached with a single
// assignment at the first missing segment, so one notification fires at
// SetPoint(root, path). Numeric segments create sequences, other segments
// create records. A sequence index may address an existing item or the slot
// just past the end; anything further is rejected.
func SetPath(root Value, path string, v any) error {
	segs := value.SplitPath(path)
	if len(segs) == 0 {
		return fmt.Errorf("set: empty path")
	}
	v = value.Normalize(v)

	node, i := setPoint(root, segs)
	seg := segs[i]
	if i < len(segs)-1 {
		// Plain nested data inside a non-recursive value: rewrite the plain
		// subtree and assign it back at this segment.
		if next, ok := child(node, seg); ok && isContainer(next) {
			updated, err := setPlain(value.Clone(next), segs[i+1:], v)
			if err != nil {
				return fmt.Errorf("set %q: %w", path, err)
			}
			v = updated
		} else {
			built, err := build(segs[i+1:], v)
			if err != nil {
				return fmt.Errorf("set %q: %w", path, err)
			}
			v = built
		}
	}
	if err := assign(node, seg, v); err != nil {
		return fmt.Errorf("set %q: %w", path, err)
	}
	return nil
}

// SetPoint returns the path at which SetPath(root, path, v) assigns, which
// is where its change notification fires. It is path itself unless
// intermediates are missing or plain.
func SetPoint(root Value, path string) string {
	segs := value.SplitPath(path)
	if len(segs) == 0 {
		return ""
	}
	_, i := setPoint(root, segs)
	return value.JoinPath(segs[:i+1]...)
}

// setPoint walks the reactive containers along segs and returns the deepest
// one reached together with the index of the segment assigned on it.
func setPoint(root Value, segs []string) (any, int) {
	var cur any = root
	for i, seg := range segs[:len(segs)-1] {
		next, ok := child(cur, seg)
		if !ok {
			return cur, i
		}
		rv, ok := next.(Value)
		if !ok {
			return cur, i
		}
		cur = rv
	}
	return cur, len(segs) - 1
}

// DeletePath removes the leaf at path, resolving its parent container first.
func DeletePath(root Value, path string) error {
	segs := value.SplitPath(path)
	if len(segs) == 0 {
		return fmt.Errorf("delete: empty path")
	}

	parentPath := value.JoinPath(segs[:len(segs)-1]...)
	leaf := segs[len(segs)-1]

	var parent any = root
	if parentPath != "" {
		// Walk down through reactive nodes; stop at the first plain container.
		var cur any = root
		for i, seg := range segs[:len(segs)-1] {
			next, ok := child(cur, seg)
			if !ok {
				return fmt.Errorf("delete %q: parent not found", path)
			}
			if _, isValue := next.(Value); !isValue {
				if !isContainer(next) {
					return fmt.Errorf("delete %q: parent is not a container", path)
				}
				updated, err := deletePlain(value.Clone(next), segs[i+1:])
				if err != nil {
					return fmt.Errorf("delete %q: %w", path, err)
				}
				return assign(cur, seg, updated)
			}
			cur = next
		}
		parent = cur
	}

	switch p := parent.(type) {
	case *Object:
		p.Delete(leaf)
	case *Array:
		i, ok := value.Index(leaf)
		if !ok {
			return fmt.Errorf("delete %q: invalid index %q", path, leaf)
		}
		p.Delete(i)
	default:
		return fmt.Errorf("delete %q: parent is not a container", path)
	}
	return nil
}

func child(node any, seg string) (any, bool) {
	switch n := node.(type) {
	case *Object:
		return n.Lookup(seg)
	case *Array:
		i, ok := value.Index(seg)
		if !ok || i >= n.Len() {
			return nil, false
		}
		return n.Get(i), true
	case map[string]any:
		v, ok := n[seg]
		return v, ok
	case []any:
		i, ok := value.Index(seg)
		if !ok || i >= len(n) {
			return nil, false
		}
		return n[i], true
	}
	return nil, false
}

func isContainer(v any) bool {
	return Is(v) || value.IsStructured(v)
}

func assign(node any, seg string, v any) error {
	switch n := node.(type) {
	case *Object:
		n.Set(seg, v)
	case *Array:
		i, ok := value.Index(seg)
		if !ok {
			return fmt.Errorf("invalid index %q", seg)
		}
		if i > n.Len() {
			return fmt.Errorf("index %d out of range [0:%d]", i, n.Len())
		}
		n.Set(i, v)
	default:
		return fmt.Errorf("cannot assign %q on %T", seg, node)
	}
	return nil
}

// build creates the nested plain structure that holds v at segs. A new
// sequence can only be started at index 0.
func build(segs []string, v any) (any, error) {
	if len(segs) == 0 {
		return v, nil
	}
	inner, err := build(segs[1:], v)
	if err != nil {
		return nil, err
	}
	if i, ok := value.Index(segs[0]); ok {
		if i != 0 {
			return nil, fmt.Errorf("index %d out of range [0:0]", i)
		}
		return []any{inner}, nil
	}
	return map[string]any{segs[0]: inner}, nil
}

func setPlain(node any, segs []string, v any) (any, error) {
	if len(segs) == 0 {
		return v, nil
	}
	seg := segs[0]
	switch n := node.(type) {
	case map[string]any:
		next, ok := n[seg]
		if !ok || !value.IsStructured(next) {
			next = nil
		}
		if next == nil && len(segs) > 1 {
			built, err := build(segs[1:], v)
			if err != nil {
				return nil, err
			}
			n[seg] = built
			return n, nil
		}
		updated, err := setPlain(next, segs[1:], v)
		if err != nil {
			return nil, err
		}
		n[seg] = updated
		return n, nil
	case []any:
		i, ok := value.Index(seg)
		if !ok {
			return nil, fmt.Errorf("invalid index %q", seg)
		}
		if i > len(n) {
			return nil, fmt.Errorf("index %d out of range [0:%d]", i, len(n))
		}
		if i == len(n) {
			n = append(n, nil)
		}
		if len(segs) > 1 && !value.IsStructured(n[i]) {
			built, err := build(segs[1:], v)
			if err != nil {
				return nil, err
			}
			n[i] = built
			return n, nil
		}
		updated, err := setPlain(n[i], segs[1:], v)
		if err != nil {
			return nil, err
		}
		n[i] = updated
		return n, nil
	}
	return nil, fmt.Errorf("segment %q addresses a leaf", seg)
}

func deletePlain(node any, segs []string) (any, error) {
	seg := segs[0]
	switch n := node.(type) {
	case map[string]any:
		if len(segs) == 1 {
			delete(n, seg)
			return n, nil
		}
		next, ok := n[seg]
		if !ok {
			return nil, fmt.Errorf("segment %q not found", seg)
		}
		updated, err := deletePlain(next, segs[1:])
		if err != nil {
			return nil, err
		}
		n[seg] = updated
		return n, nil
	case []any:
		i, ok := value.Index(seg)
		if !ok || i >= len(n) {
			return nil, fmt.Errorf("index %q out of range", seg)
		}
		if len(segs) == 1 {
			n[i] = nil
			return n, nil
		}
		updated, err := deletePlain(n[i], segs[1:])
		if err != nil {
			return nil, err
		}
		n[i] = updated
		return n, nil
	}
	return nil, fmt.Errorf("segment %q addresses a leaf", seg)
}
