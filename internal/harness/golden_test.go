package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_SaveFlow(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/save_flow.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestSnapshot_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/todo_list.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, string(Snapshot(scenario.Name, first)), string(Snapshot(scenario.Name, second)))
	assert.Equal(t, first.SpecHash, second.SpecHash)
}

func TestSnapshot_StepErrors(t *testing.T) {
	r := NewResult()
	r.Outline = "(empty)\n"
	r.Steps = []StepTrace{{Step: 0, Kind: "confirm", Error: "no confirmation is pending"}}

	want := `scenario: s
state: empty
tree:
  (empty)
steps:
  [0] confirm error="no confirmation is pending"
data: null
`
	assert.Equal(t, want, string(Snapshot("s", r)))
}

func TestWriteAndCompareGolden(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "golden")
	scenario, err := LoadScenario("testdata/scenarios/save_flow.yaml")
	require.NoError(t, err)
	result, err := Run(scenario)
	require.NoError(t, err)

	assert.Error(t, CompareGolden(dir, scenario.Name, result), "no golden yet")

	require.NoError(t, WriteGolden(dir, scenario.Name, result))
	require.NoError(t, CompareGolden(dir, scenario.Name, result))

	result.Outline = "Text changed\n"
	err = CompareGolden(dir, scenario.Name, result)
	assert.ErrorIs(t, err, ErrGoldenMismatch)
}
