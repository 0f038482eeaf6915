package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/uispec/internal/ir"
)

// GoldenDir is where golden snapshots live, relative to the test's package.
const GoldenDir = "testdata/golden"

// ErrGoldenMismatch is returned by CompareGolden when a snapshot differs.
var ErrGoldenMismatch = errors.New("golden mismatch")

// Snapshot is the text form of a result that golden files compare: the
// final stream state, the rendered outline, the step trace and the data
// model.
func Snapshot(name string, r *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", name)
	fmt.Fprintf(&b, "state: %s\n", r.State)
	b.WriteString("tree:\n")
	for _, line := range strings.Split(strings.TrimRight(r.Outline, "\n"), "\n") {
		fmt.Fprintf(&b, "  %s\n", line)
	}
	if len(r.Steps) > 0 {
		b.WriteString("steps:\n")
		for _, s := range r.Steps {
			fmt.Fprintf(&b, "  [%d] %s", s.Step, s.Kind)
			if s.Action != "" {
				fmt.Fprintf(&b, " %s", s.Action)
			}
			if s.State != "" {
				fmt.Fprintf(&b, " %s", s.State)
			}
			if s.Error != "" {
				fmt.Fprintf(&b, " error=%q", s.Error)
			}
			b.WriteByte('\n')
		}
	}
	data, err := ir.MarshalCanonical(r.Data)
	if err != nil {
		data = []byte(fmt.Sprintf("<%v>", err))
	}
	fmt.Fprintf(&b, "data: %s\n", data)
	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result's snapshot against a golden
// file without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Snapshot(name, result))
}

// CompareGolden checks a result against dir/<name>.golden outside of go
// test. A missing golden file is an error.
func CompareGolden(dir, name string, result *Result) error {
	want, err := os.ReadFile(goldenPath(dir, name))
	if err != nil {
		return fmt.Errorf("read golden: %w", err)
	}
	if got := Snapshot(name, result); !bytes.Equal(want, got) {
		return fmt.Errorf("%w: %s\n--- want\n%s--- got\n%s", ErrGoldenMismatch, name, want, got)
	}
	return nil
}

// WriteGolden writes a result's snapshot to dir/<name>.golden.
func WriteGolden(dir, name string, result *Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create golden dir: %w", err)
	}
	return os.WriteFile(goldenPath(dir, name), Snapshot(name, result), 0o644)
}

func goldenPath(dir, name string) string {
	return filepath.Join(dir, name+".golden")
}
