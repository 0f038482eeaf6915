package harness

import (
	"context"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// Outcome is the result of one scenario file in a suite.
type Outcome struct {
	Path   string
	Name   string
	Result *Result // nil when the scenario could not be loaded or set up
	Err    error
}

// Passed reports whether the scenario ran and every check held.
func (o Outcome) Passed() bool {
	return o.Err == nil && o.Result != nil && o.Result.Pass
}

// SuiteOptions configures RunSuite.
type SuiteOptions struct {
	// GoldenDir, when set, compares each scenario's snapshot against
	// GoldenDir/<name>.golden.
	GoldenDir string

	// Update writes golden files instead of comparing them.
	Update bool

	// Filter, when set, runs only scenarios whose name matches this glob.
	Filter string
}

// RunSuite discovers and runs every scenario under dir. A broken scenario
// is reported in its Outcome and does not stop the others.
func RunSuite(ctx context.Context, dir string, opts SuiteOptions) ([]Outcome, error) {
	if opts.Filter != "" && !doublestar.ValidatePattern(opts.Filter) {
		return nil, fmt.Errorf("invalid filter pattern %q", opts.Filter)
	}
	paths, err := Discover(dir)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(paths))
	outcomes := make([]Outcome, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		o := Outcome{Path: path}
		scenario, err := LoadScenario(path)
		if err != nil {
			o.Err = err
			outcomes = append(outcomes, o)
			continue
		}
		if opts.Filter != "" {
			if ok, _ := doublestar.Match(opts.Filter, scenario.Name); !ok {
				continue
			}
		}
		o.Name = scenario.Name
		if prev, dup := names[scenario.Name]; dup {
			o.Err = fmt.Errorf("scenario name %q already used by %s", scenario.Name, prev)
			outcomes = append(outcomes, o)
			continue
		}
		names[scenario.Name] = path

		o.Result, o.Err = RunContext(ctx, scenario)
		if o.Err == nil && opts.GoldenDir != "" {
			if opts.Update {
				o.Err = WriteGolden(opts.GoldenDir, scenario.Name, o.Result)
			} else {
				o.Err = CompareGolden(opts.GoldenDir, scenario.Name, o.Result)
			}
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}
