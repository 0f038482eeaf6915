package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/uispec/internal/ir"
)

func traverseSpec() ir.Spec {
	form := el("form", "Form", "email", "list", "save")
	email := el("email", "TextField")
	email.Props["valuePath"] = ir.String("/form/email")
	email.Props["label"] = ir.String("Email")
	email.Visible = ir.Obj(ir.O("path", ir.String("/ui/showEmail")))

	list := el("list", "List", "row")
	list.Repeat = &ir.RepeatSpec{Path: "/todos", Key: "id"}
	row := el("row", "Text")
	row.Props["text"] = ir.Obj(ir.O("path", ir.String("$item/title")))

	save := el("save", "Button")
	save.Props["action"] = ir.Obj(
		ir.O("name", ir.String("save_changes")),
		ir.O("params", ir.Obj(ir.O("email", ir.Obj(ir.O("path", ir.String("/form/email")))))),
		ir.O("onSuccess", ir.Obj(ir.O("set", ir.Obj(ir.O("/ui/savedMessage", ir.String("Changes saved!")))))),
	)
	save.Props["secondaryAction"] = ir.String("refresh")

	orphan := el("orphan", "Chart")
	orphan.Props["action"] = ir.String("never")

	return specOf("form", form, email, list, row, save, orphan)
}

func TestWalk(t *testing.T) {
	var order []string
	depths := map[string]int{}
	Walk(traverseSpec(), func(e *ir.Element, parent *ir.Element, depth int) bool {
		order = append(order, e.Key)
		depths[e.Key] = depth
		if e.Key == "form" {
			assert.Nil(t, parent)
		}
		return true
	})

	assert.Equal(t, []string{"form", "email", "list", "row", "save"}, order, "unreachable elements are skipped")
	assert.Equal(t, 2, depths["row"])
}

func TestWalk_SkipChildren(t *testing.T) {
	var order []string
	Walk(traverseSpec(), func(e *ir.Element, _ *ir.Element, _ int) bool {
		order = append(order, e.Key)
		return e.Key != "list"
	})
	assert.Equal(t, []string{"form", "email", "list", "save"}, order)
}

func TestWalk_Cycle(t *testing.T) {
	spec := specOf("a", el("a", "List", "b"), el("b", "List", "a"))
	count := 0
	Walk(spec, func(*ir.Element, *ir.Element, int) bool {
		count++
		return true
	})
	assert.Equal(t, 2, count)
}

func TestCollectComponents(t *testing.T) {
	assert.Equal(t, []string{"Button", "Form", "List", "Text", "TextField"}, CollectComponents(traverseSpec()))
}

func TestCollectActions(t *testing.T) {
	assert.Equal(t, []string{"refresh", "save_changes"}, CollectActions(traverseSpec()))
}

func TestCollectStatePaths(t *testing.T) {
	assert.Equal(t, []string{
		"$item/title",
		"/form/email",
		"/todos",
		"/ui/savedMessage",
		"/ui/showEmail",
	}, CollectStatePaths(traverseSpec()))
}
