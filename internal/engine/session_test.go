package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/uispec/internal/ir"
	"github.com/roach88/uispec/internal/visibility"
)

func TestSession_StreamRenderDispatch(t *testing.T) {
	ctx := context.Background()
	sess := NewSession(WithSessionID("sess-1"), WithData(ir.Object{"doc": ir.Obj(ir.O("id", ir.String("d1")))}))

	frames := []string{
		`{"op":"set","path":"/root","value":"page"}`,
		`{"op":"add","path":"/elements/page","value":{"type":"Stack","props":{},"children":["save","status"]}}`,
		`{"op":"add","path":"/elements/save","value":{"type":"Button","props":{"label":"Save","action":{"name":"save_changes","params":{"documentId":{"path":"/doc/id"}},"onSuccess":{"set":{"/ui/savedMessage":"Changes saved!"}}}}}}`,
		`{"op":"add","path":"/elements/status","value":{"type":"Text","props":{"text":{"path":"/ui/savedMessage"}},"visible":{"path":"/ui/savedMessage"}}}`,
	}
	require.NoError(t, sess.Consume(ctx, &sliceSource{frames: frames}))

	res := sess.Render()
	assert.Empty(t, res.Diagnostics)
	assert.Nil(t, res.Find("status"), "hidden until saved")

	var got ir.Object
	sess.Register("save_changes", func(_ context.Context, params ir.Object) (ir.Value, error) {
		got = params
		return nil, nil
	})
	var changed []string
	sess.OnChange(func(path string, _ ir.Value) { changed = append(changed, path) })

	inv, err := sess.DispatchProp(ctx, res.Find("save"), "action")
	require.NoError(t, err)
	assert.Equal(t, InvocationSucceeded, inv.State)
	assert.Equal(t, ir.String("d1"), got["documentId"])
	assert.Equal(t, []string{"/ui/savedMessage"}, changed)
	assert.Equal(t, ir.String("Changes saved!"), sess.Get("/ui/savedMessage"))

	assert.NotNil(t, sess.Render().Find("status"))

	_, err = sess.DispatchProp(ctx, res.Find("save"), "submitAction")
	assert.Error(t, err)
}

func TestSession_AdoptsSpecState(t *testing.T) {
	sess := NewSession(WithData(ir.Object{"count": ir.Number(7)}))
	spec := ir.NewSpec()
	spec.Root = "t"
	spec.Elements["t"] = &ir.Element{Key: "t", Type: "Text", Props: ir.Object{}}
	spec.State = ir.Object{"count": ir.Number(0), "limit": ir.Number(10)}

	dangling, err := sess.LoadSpec(spec)
	require.NoError(t, err)
	assert.Empty(t, dangling)
	assert.Equal(t, StateSettled, sess.Stream().State())

	assert.Equal(t, ir.Number(7), sess.Get("/count"), "host data wins over spec state")
	assert.Equal(t, ir.Number(10), sess.Get("/limit"))
}

func TestSession_ResumeSettledLeavesTree(t *testing.T) {
	sess := NewSession()
	require.NoError(t, sess.Consume(context.Background(), &sliceSource{frames: cardFrames}))
	before := sess.Tree().Snapshot()

	_, err := sess.Resume([]ir.PatchRecord{
		{SessionID: "s", Seq: 1, Patch: ir.Patch{Op: ir.OpSet, Path: "/root", Value: ir.String("other")}},
	})
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeStreamAborted))

	after := sess.Tree().Snapshot()
	assert.Equal(t, "card", after.Spec.Root, "journal not applied to a settled tree")
	assert.Equal(t, before.Seq, after.Seq)
}

func TestSession_RenderUsesAuthAndSettled(t *testing.T) {
	sess := NewSession()
	spec := ir.NewSpec()
	spec.Root = "page"
	spec.Elements["page"] = &ir.Element{Key: "page", Type: "Stack", Props: ir.Object{}, Children: []string{"me", "gone"}}
	spec.Elements["me"] = &ir.Element{Key: "me", Type: "Text", Props: ir.Object{}, Visible: ir.Obj(ir.O("auth", ir.String("signedIn")))}

	dangling, err := sess.LoadSpec(spec)
	require.NoError(t, err)
	require.Len(t, dangling, 1)

	res := sess.Render()
	assert.Nil(t, res.Find("me"))
	assert.NotNil(t, res.Diagnostic(CodeDanglingReference))

	sess.SetAuth(&visibility.AuthState{SignedIn: true, User: ir.Obj(ir.O("name", ir.String("Ada")))})
	assert.NotNil(t, sess.Render().Find("me"))
}

func TestSession_ValidateField(t *testing.T) {
	sess := NewSession(WithCheck("ada", func(v ir.Value, _ ir.Object) bool { return ir.Equal(v, ir.String("Ada")) }))
	require.NoError(t, sess.Set("/form/name", ir.String("Bob")))

	n := &Node{
		Key:   "name",
		Props: ir.Object{"valuePath": ir.String("/form/name")},
		Validation: &ir.ValidationSchema{Checks: []ir.ValidationCheck{
			{Fn: "required", Message: "Required"},
			{Fn: "ada", Message: "Must be Ada"},
		}},
	}
	res := sess.ValidateField(n)
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"Must be Ada"}, res.Errors)

	require.NoError(t, sess.Set("/form/name", ir.String("Ada")))
	assert.True(t, sess.ValidateField(n).Valid)
}

func TestSession_ConfirmFlow(t *testing.T) {
	ctx := context.Background()
	sess := NewSession()
	ran := false
	sess.Register("delete_account", func(context.Context, ir.Object) (ir.Value, error) {
		ran = true
		return nil, nil
	})

	inv, err := sess.Dispatch(ctx, confirmAction("delete_account"), nil)
	require.NoError(t, err)
	assert.Equal(t, InvocationConfirmPending, inv.State)

	_, err = sess.Cancel(ctx)
	require.NoError(t, err)
	assert.False(t, ran)

	_, err = sess.Dispatch(ctx, confirmAction("delete_account"), nil)
	require.NoError(t, err)
	_, err = sess.Confirm(ctx)
	require.NoError(t, err)
	assert.True(t, ran)
}
