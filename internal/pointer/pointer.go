package pointer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/uispec/internal/ir"
)

// PathError reports a path that cannot be written.
type PathError struct {
	Path    string
	Segment string
	Message string
}

func (e *PathError) Error() string {
	if e.Segment != "" {
		return fmt.Sprintf("path %q: segment %q: %s", e.Path, e.Segment, e.Message)
	}
	return fmt.Sprintf("path %q: %s", e.Path, e.Message)
}

// Parse splits a path into unescaped segments. The root path yields no
// segments.
func Parse(path string) []string {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if strings.Contains(p, "~") {
			p = strings.ReplaceAll(p, "~1", "/")
			parts[i] = strings.ReplaceAll(p, "~0", "~")
		}
	}
	return parts
}

// Format joins segments into a path, escaping as needed.
func Format(segments ...string) string {
	if len(segments) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, s := range segments {
		b.WriteByte('/')
		s = strings.ReplaceAll(s, "~", "~0")
		b.WriteString(strings.ReplaceAll(s, "/", "~1"))
	}
	return b.String()
}

// Join appends segments to a base path.
func Join(base string, segments ...string) string {
	return Format(append(Parse(base), segments...)...)
}

// Get resolves path against doc. The boolean is false when any segment is
// missing, out of range, or descends into a scalar; Get never fails.
func Get(doc ir.Value, path string) (ir.Value, bool) {
	cur := doc
	for _, seg := range Parse(path) {
		switch node := cur.(type) {
		case ir.Object:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case ir.Array:
			i, ok := index(seg, len(node))
			if !ok {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// Lookup is Get without the presence flag: a missing path yields nil
// (undefined).
func Lookup(doc ir.Value, path string) ir.Value {
	v, _ := Get(doc, path)
	return v
}

// Set returns a copy of doc with value written at path. Missing
// intermediate containers are created: an array when the next segment is
// numeric or "-", otherwise an object. Writing to the root replaces doc.
func Set(doc ir.Value, path string, value ir.Value) (ir.Value, error) {
	segs := Parse(path)
	if len(segs) == 0 {
		return value, nil
	}
	return set(doc, path, segs, value)
}

func set(node ir.Value, path string, segs []string, value ir.Value) (ir.Value, error) {
	seg := segs[0]
	rest := segs[1:]

	switch n := node.(type) {
	case nil, ir.Null:
		if isArrayIndex(seg) {
			return set(ir.Array{}, path, segs, value)
		}
		return set(ir.Object{}, path, segs, value)

	case ir.Object:
		out := n.Clone()
		if len(rest) == 0 {
			out[seg] = value
			return out, nil
		}
		child, err := set(n[seg], path, rest, value)
		if err != nil {
			return nil, err
		}
		out[seg] = child
		return out, nil

	case ir.Array:
		i := len(n)
		if seg != "-" {
			var ok bool
			i, ok = index(seg, len(n)+1)
			if !ok {
				return nil, &PathError{Path: path, Segment: seg, Message: "array index out of range or not numeric"}
			}
		}
		out := make(ir.Array, len(n), len(n)+1)
		copy(out, n)
		if i == len(n) {
			out = append(out, nil)
		}
		var child ir.Value = value
		if len(rest) > 0 {
			var err error
			child, err = set(out[i], path, rest, value)
			if err != nil {
				return nil, err
			}
		}
		out[i] = child
		return out, nil

	default:
		return nil, &PathError{Path: path, Segment: seg, Message: fmt.Sprintf("cannot descend into %s", ir.Kind(node))}
	}
}

// Remove returns a copy of doc without the value at path. Removing a
// missing location is a no-op. Array elements are spliced out.
func Remove(doc ir.Value, path string) (ir.Value, bool) {
	segs := Parse(path)
	if len(segs) == 0 {
		return nil, doc != nil
	}
	return remove(doc, segs)
}

func remove(node ir.Value, segs []string) (ir.Value, bool) {
	seg := segs[0]
	rest := segs[1:]

	switch n := node.(type) {
	case ir.Object:
		child, ok := n[seg]
		if !ok {
			return node, false
		}
		out := n.Clone()
		if len(rest) == 0 {
			delete(out, seg)
			return out, true
		}
		next, removed := remove(child, rest)
		if !removed {
			return node, false
		}
		out[seg] = next
		return out, true

	case ir.Array:
		i, ok := index(seg, len(n))
		if !ok {
			return node, false
		}
		if len(rest) == 0 {
			out := make(ir.Array, 0, len(n)-1)
			out = append(out, n[:i]...)
			return append(out, n[i+1:]...), true
		}
		next, removed := remove(n[i], rest)
		if !removed {
			return node, false
		}
		out := make(ir.Array, len(n))
		copy(out, n)
		out[i] = next
		return out, true
	}
	return node, false
}

// index parses seg as an array index below limit. Leading zeros are
// rejected as RFC 6901 requires.
func index(seg string, limit int) (int, bool) {
	if !isArrayIndex(seg) || seg == "-" {
		return 0, false
	}
	i, err := strconv.Atoi(seg)
	if err != nil || i < 0 || i >= limit {
		return 0, false
	}
	return i, true
}

func isArrayIndex(seg string) bool {
	if seg == "-" {
		return true
	}
	if seg == "" || (len(seg) > 1 && seg[0] == '0') {
		return false
	}
	for _, r := range seg {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
