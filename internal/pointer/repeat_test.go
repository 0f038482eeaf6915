package pointer

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/uispec/internal/ir"
)

func TestRewriteTokens(t *testing.T) {
	scope := &RepeatScope{BasePath: "/posts/3", Index: 3}

	assert.Equal(t, ir.String("/posts/3/name"), Rewrite(ir.String("$item/name"), scope))
	assert.Equal(t, ir.Number(3), Rewrite(ir.String("$index"), scope))
	assert.Equal(t, ir.String("/posts/3"), Rewrite(ir.String("$item"), scope))
	assert.Equal(t, ir.String("$items"), Rewrite(ir.String("$items"), scope))
	assert.Equal(t, ir.String("see $item"), Rewrite(ir.String("see $item"), scope))
}

func TestRewriteNested(t *testing.T) {
	scope := ScopeFor("/posts", 1)
	in := ir.Object{
		"label": ir.Object{"path": ir.String("$item/title")},
		"pos":   ir.String("$index"),
		"list":  ir.Array{ir.String("x"), ir.String("$item")},
	}

	out := Rewrite(in, scope)

	assert.Equal(t, ir.Object{
		"label": ir.Object{"path": ir.String("/posts/1/title")},
		"pos":   ir.Number(1),
		"list":  ir.Array{ir.String("x"), ir.String("/posts/1")},
	}, out)
	assert.Equal(t, ir.String("$item/title"), in["label"].(ir.Object)["path"], "input must not change")
}

func TestRewriteShortCircuits(t *testing.T) {
	scope := &RepeatScope{BasePath: "/p/0"}
	unchanged := ir.Object{"a": ir.Array{ir.String("x")}, "b": ir.Number(1)}
	mixed := ir.Object{"clean": unchanged, "dirty": ir.String("$index")}

	out := Rewrite(mixed, scope).(ir.Object)

	// The clean branch is returned as the same map, not a copy.
	assert.Equal(t, mapPtr(unchanged), mapPtr(out["clean"].(ir.Object)))
	assert.Equal(t, mapPtr(unchanged), mapPtr(Rewrite(unchanged, scope).(ir.Object)))
	assert.Equal(t, mapPtr(mixed), mapPtr(Rewrite(mixed, nil).(ir.Object)))
}

func mapPtr(o ir.Object) uintptr {
	return reflect.ValueOf(o).Pointer()
}

func TestRewritePath(t *testing.T) {
	scope := &RepeatScope{BasePath: "/todos/2", Index: 2}
	assert.Equal(t, "/todos/2/done", RewritePath("$item/done", scope))
	assert.Equal(t, "2", RewritePath("$index", scope))
	assert.Equal(t, "/static", RewritePath("/static", scope))
	assert.Equal(t, "$item/done", RewritePath("$item/done", nil))
}

func TestHasTokens(t *testing.T) {
	assert.True(t, HasTokens(ir.Array{ir.Object{"p": ir.String("$item/x")}}))
	assert.False(t, HasTokens(ir.Object{"p": ir.String("/x")}))
}
