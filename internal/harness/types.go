package harness

import (
	"github.com/roach88/uispec/internal/engine"
	"github.com/roach88/uispec/internal/ir"
)

// StepTrace records what one step did.
type StepTrace struct {
	Step   int    `json:"step"`
	Kind   string `json:"kind"` // dispatch, confirm, cancel or set
	Action string `json:"action,omitempty"`
	State  string `json:"state,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when the run raised no errors and every assertion held.
	Pass bool `json:"pass"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Steps traces each step in order.
	Steps []StepTrace `json:"steps"`

	// State is the final stream state.
	State engine.StreamState `json:"-"`

	// Render is the final render pass and Outline its text form.
	Render  engine.RenderResult `json:"-"`
	Outline string              `json:"outline"`

	// Data is the final data model.
	Data ir.Value `json:"-"`

	// Diagnostics are the stream's diagnostics, failed steps' errors and
	// the final render's diagnostics, in that order.
	Diagnostics []*engine.Error `json:"-"`

	// Dangling are the keys reported when the stream settled.
	Dangling []string `json:"dangling,omitempty"`

	// Calls counts handler invocations by action name.
	Calls map[string]int `json:"calls"`

	// SpecHash is the hash of the final tree, as rebuilt from the journal.
	SpecHash string `json:"spec_hash,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
		Steps:  []StepTrace{},
		Calls:  make(map[string]int),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
