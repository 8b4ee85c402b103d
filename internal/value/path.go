package value

import (
	"strconv"
	"strings"
)

// SplitPath splits a dotted path into segments. The empty path addresses the
// root and yields no segments.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// JoinPath joins segments into a dotted path, skipping empty segments.
func JoinPath(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ".")
}

// Head returns the first segment of a path.
func Head(path string) string {
	head, _, _ := strings.Cut(path, ".")
	return head
}

// Index parses a sequence index segment. Negative and non-numeric segments
// are rejected.
func Index(segment string) (int, bool) {
	i, err := strconv.Atoi(segment)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

// Lookup resolves a dotted path inside plain data. It reports false when any
// segment is missing or addresses into a leaf.
func Lookup(v any, path string) (any, bool) {
	cur := v
	for _, seg := range SplitPath(path) {
		if s, ok := cur.(Snapshotter); ok {
			cur = s.Snapshot()
		}
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, ok := Index(seg)
			if !ok || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}
