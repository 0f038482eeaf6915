package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/uispec/internal/store"
)

const (
	cardStream   = "testdata/card.jsonl"
	brokenStream = "testdata/broken.jsonl"
	cardData     = "testdata/data.yaml"
)

func executeRender(t *testing.T, opts *RootOptions, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewRenderCommand(opts)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	cmd.SetContext(context.Background())
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

type renderResponse struct {
	Status string       `json:"status"`
	Data   RenderReport `json:"data"`
	Error  *CLIError    `json:"error"`
}

func decodeRender(t *testing.T, out string) renderResponse {
	t.Helper()
	var resp renderResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func TestRenderSignedIn(t *testing.T) {
	out, _, err := executeRender(t, &RootOptions{Format: "text"},
		"--catalog", testCatalogDir, "--stream", cardStream, "--data", cardData,
		"--signed-in", "--session", "s1")
	require.NoError(t, err)

	assert.Contains(t, out, "session s1: settled at seq 5\n")
	assert.Contains(t, out, "Stack page\n")
	assert.Contains(t, out, "  Card card {\"title\":\"Quarterly report\"}\n")
	assert.Contains(t, out, "    Button save ")
	assert.Contains(t, out, "  Text greeting {\"text\":\"Welcome back\"}\n")
	assert.NotContains(t, out, "! ")
}

func TestRenderHidesAuthGatedElements(t *testing.T) {
	out, _, err := executeRender(t, &RootOptions{Format: "text"},
		"--catalog", testCatalogDir, "--stream", cardStream, "--data", cardData)
	require.NoError(t, err)
	assert.NotContains(t, out, "greeting")
	assert.Contains(t, out, "  Card card ")
}

func TestRenderMissingDataFallsBack(t *testing.T) {
	out, _, err := executeRender(t, &RootOptions{Format: "text"},
		"--catalog", testCatalogDir, "--stream", cardStream)
	require.NoError(t, err)
	assert.Contains(t, out, "  Card card (fallback)")
	assert.Contains(t, out, "! SCHEMA_VALIDATION")
}

func TestRenderReportsDiagnostics(t *testing.T) {
	out, _, err := executeRender(t, &RootOptions{Format: "json"},
		"--catalog", testCatalogDir, "--stream", brokenStream)
	require.NoError(t, err, "diagnostics do not fail the command")

	resp := decodeRender(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "settled", resp.Data.State)
	assert.Equal(t, int64(3), resp.Data.Seq, "the malformed frame consumes no seq")
	assert.NotEmpty(t, resp.Data.SpecHash)

	codes := map[string]int{}
	for _, d := range resp.Data.Diagnostics {
		codes[d.Code]++
	}
	assert.Equal(t, 1, codes["MALFORMED_PATCH"])
	assert.Equal(t, 1, codes["DANGLING_REFERENCE"], "reported once though both stream and render see it")
	assert.Equal(t, 1, codes["SCHEMA_VALIDATION"])

	require.NotNil(t, resp.Data.Tree)
	assert.Equal(t, "page", resp.Data.Tree.Key)
	require.Len(t, resp.Data.Tree.Children, 1)
	assert.True(t, resp.Data.Tree.Children[0].Fallback)
}

func TestRenderAbortPolicy(t *testing.T) {
	out, _, err := executeRender(t, &RootOptions{Format: "text"},
		"--stream", brokenStream, "--malformed", "abort")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "E201")
	assert.Contains(t, out, ": aborted at seq 2\n")
	assert.Contains(t, out, "FAIL E201")
}

func TestRenderAbortPolicyJSON(t *testing.T) {
	out, _, err := executeRender(t, &RootOptions{Format: "json"},
		"--stream", brokenStream, "--malformed", "abort")
	require.Error(t, err)

	resp := decodeRender(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeStream, resp.Error.Code)
	assert.Equal(t, "aborted", resp.Data.State)
}

func TestRenderJournalsAndResumes(t *testing.T) {
	db := filepath.Join(t.TempDir(), "uispec.db")
	args := []string{"--stream", cardStream, "--db", db, "--session", "s1"}

	out, _, err := executeRender(t, &RootOptions{Format: "json"}, args...)
	require.NoError(t, err)
	first := decodeRender(t, out)
	assert.Zero(t, first.Data.Resumed)

	out, _, err = executeRender(t, &RootOptions{Format: "json"}, args...)
	require.NoError(t, err)
	second := decodeRender(t, out)
	assert.Equal(t, int64(5), second.Data.Resumed)
	assert.Equal(t, int64(5), second.Data.Seq)
	assert.Equal(t, first.Data.SpecHash, second.Data.SpecHash)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	info, err := st.GetSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 5, info.Patches, "re-delivered patches are not journaled twice")
	assert.Equal(t, first.Data.SpecHash, info.SpecHash)
}

func TestRenderFollowSettlesWhenIdle(t *testing.T) {
	out, _, err := executeRender(t, &RootOptions{Format: "text"},
		"--stream", cardStream, "--follow", "--idle", "100ms")
	require.NoError(t, err)
	assert.Contains(t, out, ": settled at seq 5\n")
}

func TestRenderVerboseLogsToStderr(t *testing.T) {
	out, errOut, err := executeRender(t, &RootOptions{Format: "json", Verbose: true},
		"--catalog", testCatalogDir, "--stream", cardStream)
	require.NoError(t, err)
	decodeRender(t, out)
	assert.Contains(t, errOut, "Loaded catalog with 4 component(s), 2 action(s)")
	assert.Contains(t, errOut, "stream settled")
}

func TestRenderCommandErrors(t *testing.T) {
	badData := filepath.Join(t.TempDir(), "data.yaml")
	require.NoError(t, os.WriteFile(badData, []byte("- not\n- a map\n"), 0o644))

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"no source", []string{}, "E001"},
		{"two sources", []string{"--stream", cardStream, "--nats-url", "nats://localhost:4222", "--subject", "ui"}, "E001"},
		{"nats without subject", []string{"--nats-url", "nats://localhost:4222"}, "E001"},
		{"missing stream", []string{"--stream", "testdata/nope.jsonl"}, "E005"},
		{"missing catalog", []string{"--stream", cardStream, "--catalog", "testdata/nope"}, "E005"},
		{"bad policy", []string{"--stream", cardStream, "--malformed", "ignore"}, "E001"},
		{"bad data", []string{"--stream", cardStream, "--data", badData}, "E202"},
		{"missing data", []string{"--stream", cardStream, "--data", "testdata/nope.yaml"}, "E202"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := executeRender(t, &RootOptions{Format: "text"}, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.code)
			assert.Contains(t, out, "Error ["+tt.code+"]")
		})
	}
}

func TestLoadData(t *testing.T) {
	data, err := loadData(cardData)
	require.NoError(t, err)
	assert.Contains(t, data, "doc")

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	data, err = loadData(empty)
	require.NoError(t, err)
	assert.Empty(t, data)

	jsonFile := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(jsonFile, []byte(`{"count": 3}`), 0o644))
	data, err = loadData(jsonFile)
	require.NoError(t, err)
	assert.Contains(t, data, "count")
}
