package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Scenario is one stream-render-dispatch test case.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario checks.
	Description string `yaml:"description"`

	// Catalog is inline CUE source for the component and action catalog.
	Catalog string `yaml:"catalog,omitempty"`

	// CatalogDir loads the catalog from a directory of .cue files instead.
	// Relative paths resolve against the scenario file.
	CatalogDir string `yaml:"catalog_dir,omitempty"`

	// Components lists the types the host can render. Empty means every
	// type.
	Components []string `yaml:"components,omitempty"`

	// Fallback gives the host a fallback renderer for unknown types.
	Fallback bool `yaml:"fallback,omitempty"`

	// Data is the host's initial data model.
	Data map[string]any `yaml:"data,omitempty"`

	// Auth is the authentication state. Absent means signed out.
	Auth *AuthSpec `yaml:"auth,omitempty"`

	// Handlers stub the host's action handlers by name.
	Handlers map[string]HandlerSpec `yaml:"handlers,omitempty"`

	MalformedPolicy string `yaml:"malformed_policy,omitempty"`
	ConfirmPolicy   string `yaml:"confirm_policy,omitempty"`
	MaxElements     int    `yaml:"max_elements,omitempty"`
	MaxPatches      int    `yaml:"max_patches,omitempty"`

	// Stream is applied in order before any step.
	Stream []StreamOp `yaml:"stream"`

	// Settle ends the stream after it is applied. Defaults to true.
	Settle *bool `yaml:"settle,omitempty"`

	// Steps run after the stream.
	Steps []Step `yaml:"steps,omitempty"`

	// Assertions check the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// AuthSpec is the scenario's authentication state.
type AuthSpec struct {
	SignedIn bool           `yaml:"signed_in"`
	User     map[string]any `yaml:"user,omitempty"`
}

// HandlerSpec is a stub handler: it returns Result, fails with Error, or
// panics with Panic.
type HandlerSpec struct {
	Result any    `yaml:"result,omitempty"`
	Error  string `yaml:"error,omitempty"`
	Panic  string `yaml:"panic,omitempty"`
}

// StreamOp is one stream frame. Raw, when set, is sent verbatim so that
// scenarios can exercise malformed input.
type StreamOp struct {
	Op    string     `yaml:"op,omitempty"`
	Path  string     `yaml:"path,omitempty"`
	Value *yaml.Node `yaml:"value,omitempty"`
	Raw   string     `yaml:"raw,omitempty"`
}

// Step is one user interaction. Exactly one of Dispatch, Confirm, Cancel
// and Set is given.
type Step struct {
	// Dispatch names the rendered element whose action prop to invoke.
	// Repeated elements are named by render key, e.g. "row#a".
	Dispatch string `yaml:"dispatch,omitempty"`

	// Prop is the action prop to invoke. Defaults to "action".
	Prop string `yaml:"prop,omitempty"`

	Confirm bool     `yaml:"confirm,omitempty"`
	Cancel  bool     `yaml:"cancel,omitempty"`
	Set     *SetStep `yaml:"set,omitempty"`

	// Expect is the invocation state the step must leave: success, error,
	// cancelled or confirm-pending.
	Expect string `yaml:"expect,omitempty"`

	// ExpectCode is the error code the step must fail with.
	ExpectCode string `yaml:"expect_code,omitempty"`
}

// SetStep writes one value into the data model, as a bound input would.
type SetStep struct {
	Path  string     `yaml:"path"`
	Value *yaml.Node `yaml:"value"`
}

// Assertion checks one property of the final state.
type Assertion struct {
	Type string `yaml:"type"`

	// Path and Value are used by data_equals. An absent value is null.
	Path  string     `yaml:"path,omitempty"`
	Value *yaml.Node `yaml:"value,omitempty"`

	// Element is used by visible, hidden and diagnostic.
	Element string `yaml:"element,omitempty"`

	// Elements is used by dangling.
	Elements []string `yaml:"elements,omitempty"`

	// Code is used by diagnostic.
	Code string `yaml:"code,omitempty"`

	// Action and Count are used by handler_calls.
	Action string `yaml:"action,omitempty"`
	Count  int    `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertDataEquals   = "data_equals"
	AssertVisible      = "visible"
	AssertHidden       = "hidden"
	AssertSettled      = "settled"
	AssertDangling     = "dangling"
	AssertDiagnostic   = "diagnostic"
	AssertHandlerCalls = "handler_calls"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so that typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML %s: %w", path, err)
	}

	if scenario.CatalogDir != "" && !filepath.IsAbs(scenario.CatalogDir) {
		scenario.CatalogDir = filepath.Join(filepath.Dir(path), scenario.CatalogDir)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

// Discover returns the scenario files under dir, sorted.
func Discover(dir string) ([]string, error) {
	var paths []string
	for _, pattern := range []string{"**/*.yaml", "**/*.yml"} {
		matches, err := doublestar.Glob(os.DirFS(dir), pattern)
		if err != nil {
			return nil, fmt.Errorf("discover scenarios in %s: %w", dir, err)
		}
		for _, m := range matches {
			paths = append(paths, filepath.Join(dir, filepath.FromSlash(m)))
		}
	}
	if len(paths) == 0 {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("discover scenarios: %w", err)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Catalog != "" && s.CatalogDir != "" {
		return fmt.Errorf("catalog and catalog_dir are mutually exclusive")
	}
	if s.CatalogDir != "" {
		if _, err := os.Stat(s.CatalogDir); err != nil {
			return fmt.Errorf("catalog_dir not found: %s", s.CatalogDir)
		}
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, op := range s.Stream {
		if op.Raw != "" {
			if op.Op != "" || op.Path != "" || op.Value != nil {
				return fmt.Errorf("stream[%d]: raw excludes op, path and value", i)
			}
			continue
		}
		if op.Op == "" {
			return fmt.Errorf("stream[%d]: op is required", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s *Step) error {
	kinds := 0
	if s.Dispatch != "" {
		kinds++
	}
	if s.Confirm {
		kinds++
	}
	if s.Cancel {
		kinds++
	}
	if s.Set != nil {
		kinds++
		if s.Set.Path == "" {
			return fmt.Errorf("steps[%d]: set.path is required", index)
		}
	}
	if kinds != 1 {
		return fmt.Errorf("steps[%d]: exactly one of dispatch, confirm, cancel or set is required", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertDataEquals:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for data_equals", index)
		}
	case AssertVisible, AssertHidden:
		if a.Element == "" {
			return fmt.Errorf("assertions[%d]: element is required for %s", index, a.Type)
		}
	case AssertSettled:
	case AssertDangling:
		if len(a.Elements) == 0 {
			return fmt.Errorf("assertions[%d]: elements list is required for dangling", index)
		}
	case AssertDiagnostic:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for diagnostic", index)
		}
	case AssertHandlerCalls:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for handler_calls", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for handler_calls", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// nodeValue decodes a YAML node into a plain Go value. A nil node is
// JSON null.
func nodeValue(n *yaml.Node) (any, error) {
	if n == nil {
		return nil, nil
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
