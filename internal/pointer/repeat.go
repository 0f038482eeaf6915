package pointer

import (
	"strconv"
	"strings"

	"github.com/roach88/uispec/internal/ir"
)

// Repeat tokens recognised inside a repeated element's subtree.
const (
	TokenItem  = "$item"
	TokenIndex = "$index"
)

// RepeatScope is the per-iteration context of a repeated element: the data
// path of the current item and its position. Scopes are values passed down
// a render pass; they are never stored.
type RepeatScope struct {
	BasePath string
	Index    int
}

// ScopeFor returns the scope of item i of the array at path.
func ScopeFor(path string, i int) *RepeatScope {
	return &RepeatScope{BasePath: Join(path, itoa(i)), Index: i}
}

// RewriteString rewrites one string: "$index" becomes the index,
// "$item" becomes the base path and "$item/rest" becomes base path + "/rest".
// Any other string is returned unchanged.
func RewriteString(s string, scope *RepeatScope) ir.Value {
	v, _ := rewriteString(s, scope)
	return v
}

func rewriteString(s string, scope *RepeatScope) (ir.Value, bool) {
	switch {
	case s == TokenIndex:
		return ir.Number(float64(scope.Index)), true
	case s == TokenItem:
		return ir.String(scope.BasePath), true
	case strings.HasPrefix(s, TokenItem+"/"):
		return ir.String(scope.BasePath + s[len(TokenItem):]), true
	}
	return ir.String(s), false
}

// Rewrite substitutes repeat tokens throughout v. With a nil scope, or when
// no token occurs in a subtree, the original value is returned so callers
// can skip unaffected branches by identity.
func Rewrite(v ir.Value, scope *RepeatScope) ir.Value {
	if scope == nil {
		return v
	}
	out, _ := rewrite(v, scope)
	return out
}

func rewrite(v ir.Value, scope *RepeatScope) (ir.Value, bool) {
	switch val := v.(type) {
	case ir.String:
		out, changed := rewriteString(string(val), scope)
		if !changed {
			return v, false
		}
		return out, true

	case ir.Array:
		var out ir.Array
		for i, elem := range val {
			next, changed := rewrite(elem, scope)
			if !changed {
				continue
			}
			if out == nil {
				out = make(ir.Array, len(val))
				copy(out, val)
			}
			out[i] = next
		}
		if out == nil {
			return v, false
		}
		return out, true

	case ir.Object:
		var out ir.Object
		for k, elem := range val {
			next, changed := rewrite(elem, scope)
			if !changed {
				continue
			}
			if out == nil {
				out = val.Clone()
			}
			out[k] = next
		}
		if out == nil {
			return v, false
		}
		return out, true
	}
	return v, false
}

// RewritePath rewrites a path-valued string. Unlike RewriteString it always
// yields a string, which makes it suitable for keys such as onSuccess.set
// targets and repeat.path.
func RewritePath(path string, scope *RepeatScope) string {
	if scope == nil {
		return path
	}
	switch v := RewriteString(path, scope).(type) {
	case ir.String:
		return string(v)
	case ir.Number:
		return itoa(int(v))
	}
	return path
}

// HasTokens reports whether v contains any repeat token.
func HasTokens(v ir.Value) bool {
	_, changed := rewrite(v, &RepeatScope{})
	return changed
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
