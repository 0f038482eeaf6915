package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/uispec/internal/engine"
	"github.com/roach88/uispec/internal/ir"
	"github.com/roach88/uispec/internal/pointer"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // assertion type
	Expected string
	Actual   string
	Outline  string // final render, for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.Outline != "" {
		fmt.Fprintf(&buf, "\nRendered tree:\n")
		for _, line := range strings.Split(strings.TrimRight(e.Outline, "\n"), "\n") {
			fmt.Fprintf(&buf, "  %s\n", line)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages, in assertion order.
func EvaluateAssertions(r *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(r, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluate(r *Result, a Assertion) error {
	switch a.Type {
	case AssertDataEquals:
		return assertDataEquals(r, a)
	case AssertVisible:
		return assertVisible(r, a, true)
	case AssertHidden:
		return assertVisible(r, a, false)
	case AssertSettled:
		return assertSettled(r)
	case AssertDangling:
		return assertDangling(r, a)
	case AssertDiagnostic:
		return assertDiagnostic(r, a)
	case AssertHandlerCalls:
		return assertHandlerCalls(r, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// assertDataEquals compares the data model at a path with structural
// equality. A missing path equals null.
func assertDataEquals(r *Result, a Assertion) error {
	raw, err := nodeValue(a.Value)
	if err != nil {
		return fmt.Errorf("data_equals value: %w", err)
	}
	want, err := ir.FromAny(raw)
	if err != nil {
		return fmt.Errorf("data_equals value: %w", err)
	}

	got := pointer.Lookup(r.Data, a.Path)
	if got == nil {
		got = ir.Null{}
	}
	if ir.Equal(got, want) {
		return nil
	}
	return &AssertionError{
		Type:     AssertDataEquals,
		Expected: fmt.Sprintf("%s = %s", a.Path, canonical(want)),
		Actual:   canonical(got),
	}
}

func assertVisible(r *Result, a Assertion, want bool) error {
	found := findNode(r.Render.Root, a.Element) != nil
	if found == want {
		return nil
	}
	e := &AssertionError{Type: a.Type, Outline: r.Outline}
	if want {
		e.Expected, e.Actual = fmt.Sprintf("element %s rendered", a.Element), "not in the rendered tree"
	} else {
		e.Expected, e.Actual = fmt.Sprintf("element %s hidden", a.Element), "rendered"
	}
	return e
}

func assertSettled(r *Result) error {
	if r.State == engine.StateSettled {
		return nil
	}
	return &AssertionError{Type: AssertSettled, Expected: "stream settled", Actual: "stream " + r.State.String()}
}

// assertDangling checks the dangling keys as a set.
func assertDangling(r *Result, a Assertion) error {
	want := slices.Clone(a.Elements)
	got := slices.Clone(r.Dangling)
	slices.Sort(want)
	slices.Sort(got)
	if slices.Equal(want, got) {
		return nil
	}
	return &AssertionError{
		Type:     AssertDangling,
		Expected: fmt.Sprintf("dangling %v", want),
		Actual:   fmt.Sprintf("dangling %v", got),
	}
}

func assertDiagnostic(r *Result, a Assertion) error {
	var codes []string
	for _, d := range r.Diagnostics {
		if string(d.Code) == a.Code && (a.Element == "" || d.Key == a.Element) {
			return nil
		}
		codes = append(codes, d.Error())
	}
	expected := a.Code
	if a.Element != "" {
		expected += " on " + a.Element
	}
	actual := "no diagnostics"
	if len(codes) > 0 {
		actual = strings.Join(codes, "; ")
	}
	return &AssertionError{Type: AssertDiagnostic, Expected: expected, Actual: actual}
}

func assertHandlerCalls(r *Result, a Assertion) error {
	if got := r.Calls[a.Action]; got != a.Count {
		return &AssertionError{
			Type:     AssertHandlerCalls,
			Expected: fmt.Sprintf("%d calls of %s", a.Count, a.Action),
			Actual:   fmt.Sprintf("%d calls", got),
		}
	}
	return nil
}

func canonical(v ir.Value) string {
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(b)
}
