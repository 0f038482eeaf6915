package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/uispec/internal/engine"
	"github.com/roach88/uispec/internal/ir"
)

var _ engine.Journal = (*Store)(nil)

func patchRecord(session string, seq int64, p ir.Patch) ir.PatchRecord {
	return ir.PatchRecord{SessionID: session, Seq: seq, ID: ir.MustPatchID(session, seq, p), Patch: p}
}

func TestAppendPatch_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	patches := []ir.Patch{
		{Op: ir.OpSet, Path: "/root", Value: ir.String("card")},
		{Op: ir.OpAdd, Path: "/elements/card", Value: ir.Obj(
			ir.O("type", ir.String("Card")),
			ir.O("props", ir.Obj(ir.O("title", ir.String("<Revenue & Costs>")), ir.O("count", ir.Number(3)))),
			ir.O("children", ir.Arr(ir.String("a"))),
		)},
		{Op: ir.OpSet, Path: "/state/flag", Value: ir.Null{}},
		{Op: ir.OpRemove, Path: "/elements/a"},
	}
	for i, p := range patches {
		require.NoError(t, s.AppendPatch(ctx, patchRecord("sess-1", int64(i+1), p)))
	}

	got, err := s.ReadPatches(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, got, len(patches))
	for i, rec := range got {
		assert.Equal(t, patchRecord("sess-1", int64(i+1), patches[i]), rec, "seq %d", i+1)
	}
	assert.Nil(t, got[3].Patch.Value, "remove keeps an undefined value")
	assert.Equal(t, ir.Null{}, got[2].Patch.Value, "explicit null survives")
}

func TestAppendPatch_IdempotentOnSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first := patchRecord("sess-1", 1, ir.Patch{Op: ir.OpSet, Path: "/root", Value: ir.String("a")})
	second := patchRecord("sess-1", 1, ir.Patch{Op: ir.OpSet, Path: "/root", Value: ir.String("b")})
	require.NoError(t, s.AppendPatch(ctx, first))
	require.NoError(t, s.AppendPatch(ctx, second), "duplicate seq is not an error")

	got, err := s.ReadPatches(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, first, got[0], "first write wins")
}

func TestAppendAction_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	ok := ir.ActionRecord{
		ID: "inv-1", SessionID: "sess-1", Seq: 1, Name: "save_changes",
		Params: ir.Object{"documentId": ir.String("doc-7")},
		Status: "success", Result: ir.Obj(ir.O("saved", ir.Bool(true))),
	}
	failed := ir.ActionRecord{
		ID: "inv-2", SessionID: "sess-1", Seq: 2, Name: "export_data",
		Params: ir.Object{}, Status: "error", Error: "disk full",
	}
	require.NoError(t, s.AppendAction(ctx, ok))
	require.NoError(t, s.AppendAction(ctx, failed))
	require.NoError(t, s.AppendAction(ctx, ok), "duplicate id is ignored")

	got, err := s.ReadActions(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, []ir.ActionRecord{ok, failed}, got)
}

func TestSetSpecHash(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.SetSpecHash(ctx, "ghost", "h")
	assert.Error(t, err)

	require.NoError(t, s.AppendPatch(ctx, patchRecord("sess-1", 1, ir.Patch{Op: ir.OpSet, Path: "/root", Value: ir.String("a")})))
	require.NoError(t, s.SetSpecHash(ctx, "sess-1", "abc123"))

	info, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "abc123", info.SpecHash)
}

func TestStreamJournalsIntoStore(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	stream := engine.NewStream(engine.NewTree(0), engine.WithSessionID("sess-1"), engine.WithJournal(s))
	for _, line := range []string{
		`{"op":"set","path":"/root","value":"card"}`,
		`{"op":"add","path":"/elements/card","value":{"type":"Card","props":{"title":"Hi"}}}`,
	} {
		require.NoError(t, stream.ApplyLine(ctx, []byte(line)))
	}
	stream.Settle()

	records, err := s.ReadPatches(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, records, 2)

	replayed, err := engine.ReplayHash(records)
	require.NoError(t, err)
	assert.Equal(t, ir.MustSpecHash(stream.Tree().Snapshot().Spec), replayed)
}
