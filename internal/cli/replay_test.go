package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/uispec/internal/engine"
	"github.com/roach88/uispec/internal/ir"
	"github.com/roach88/uispec/internal/store"
	"github.com/roach88/uispec/internal/testutil"
)

var listFrames = []string{
	`{"op":"set","path":"/root","value":"list"}`,
	`{"op":"add","path":"/elements/list","value":{"type":"Stack","props":{},"children":["a","b"]}}`,
	`{"op":"add","path":"/elements/a","value":{"type":"Text","props":{"text":"A"}}}`,
	`{"op":"add","path":"/elements/b","value":{"type":"Text","props":{"text":"B"}}}`,
	`{"op":"replace","path":"/elements/b/props/text","value":"B2"}`,
}

// journalSession streams frames into a session journaled to st and
// records its settled hash, the way render does.
func journalSession(t *testing.T, st *store.Store, id string, frames ...string) {
	t.Helper()
	ctx := context.Background()
	sess := engine.NewSession(
		engine.WithSessionID(id),
		engine.WithJournal(st),
		engine.WithLogger(testutil.DiscardLogger()),
	)
	for _, f := range frames {
		require.NoError(t, sess.ApplyLine(ctx, []byte(f)))
	}
	sess.Settle()
	require.NoError(t, st.SetSpecHash(ctx, id, ir.MustSpecHash(sess.Tree().Snapshot().Spec)))
}

func openTestDB(t *testing.T) (string, *store.Store) {
	t.Helper()
	db := filepath.Join(t.TempDir(), "uispec.db")
	st, err := store.Open(db)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return db, st
}

func executeReplay(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestReplayMissingDatabaseFlag(t *testing.T) {
	_, err := executeReplay(t, &RootOptions{Format: "text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestReplayEmptyDatabase(t *testing.T) {
	db, _ := openTestDB(t)

	out, err := executeReplay(t, &RootOptions{Format: "text"}, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions found")
}

func TestReplayEmptyDatabaseJSON(t *testing.T) {
	db, _ := openTestDB(t)

	out, err := executeReplay(t, &RootOptions{Format: "json"}, "--db", db)
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Data.TotalSessions)
	assert.True(t, resp.Data.AllDeterministic)
}

func TestReplayDeterministicSessions(t *testing.T) {
	db, st := openTestDB(t)
	journalSession(t, st, "s1", listFrames...)
	journalSession(t, st, "s2", listFrames[:2]...)

	out, err := executeReplay(t, &RootOptions{Format: "text"}, "--db", db)
	require.NoError(t, err)

	assert.Contains(t, out, "Replay Summary: 2 session(s)")
	assert.Contains(t, out, "OK Session: s1\n  Patches: 5 (last seq 5)")
	assert.Contains(t, out, "OK Session: s2\n  Patches: 2 (last seq 2)")
	assert.Contains(t, out, "OK All sessions verified deterministic")
}

func TestReplaySingleSessionJSON(t *testing.T) {
	db, st := openTestDB(t)
	journalSession(t, st, "s1", listFrames...)
	journalSession(t, st, "s2", listFrames...)

	out, err := executeReplay(t, &RootOptions{Format: "json"}, "--db", db, "--session", "s2")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Sessions, 1)
	s := resp.Data.Sessions[0]
	assert.Equal(t, "s2", s.Session)
	assert.True(t, s.Deterministic)
	assert.True(t, s.MatchesRecord)
	assert.Equal(t, s.RecordedHash, s.SpecHash)
}

func TestReplayUnknownSession(t *testing.T) {
	db, _ := openTestDB(t)

	out, err := executeReplay(t, &RootOptions{Format: "text"}, "--db", db, "--session", "ghost")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]: session ghost not found")
}

func TestReplayDetectsRecordedHashMismatch(t *testing.T) {
	db, st := openTestDB(t)
	journalSession(t, st, "s1", listFrames...)
	require.NoError(t, st.SetSpecHash(context.Background(), "s1", "not-the-hash"))

	out, err := executeReplay(t, &RootOptions{Format: "text", Verbose: true}, "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "E204")
	assert.Contains(t, out, "FAIL Session: s1")
	assert.Contains(t, out, "  Recorded: not-the-hash")
	assert.Contains(t, out, "differs from the recorded hash")
	assert.Contains(t, out, "FAIL Determinism verification failed")
}

func TestReplayReportsUnreplayableJournal(t *testing.T) {
	db, st := openTestDB(t)
	require.NoError(t, st.AppendPatch(context.Background(), ir.PatchRecord{
		SessionID: "bad",
		Seq:       1,
		ID:        "p1",
		Patch:     ir.Patch{Op: "replace", Path: "/elements/missing/props/text", Value: ir.String("x")},
	}))

	out, err := executeReplay(t, &RootOptions{Format: "json"}, "--db", db)
	require.Error(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
		Error  *CLIError    `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeDeterminism, resp.Error.Code)
	require.Len(t, resp.Data.Sessions, 1)
	assert.Contains(t, resp.Data.Sessions[0].Error, "replay seq 1")
	assert.False(t, resp.Data.AllDeterministic)
}

func TestReplayAfterRender(t *testing.T) {
	db := filepath.Join(t.TempDir(), "uispec.db")
	_, _, err := executeRender(t, &RootOptions{Format: "text"},
		"--stream", cardStream, "--db", db, "--session", "rendered")
	require.NoError(t, err)

	out, err := executeReplay(t, &RootOptions{Format: "text"}, "--db", db, "--session", "rendered")
	require.NoError(t, err)
	assert.Contains(t, out, "OK Session: rendered\n  Patches: 5 (last seq 5)")
}
