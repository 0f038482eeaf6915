package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/uispec/internal/ir"
)

// MalformedPolicy decides what a stream does with a fragment it cannot use.
type MalformedPolicy int

const (
	// MalformedSkip logs the fragment and keeps consuming.
	MalformedSkip MalformedPolicy = iota
	// MalformedAbort aborts the stream at the first malformed fragment.
	MalformedAbort
)

func (p MalformedPolicy) String() string {
	if p == MalformedAbort {
		return "abort"
	}
	return "skip"
}

// ParseMalformedPolicy parses "skip" or "abort". The empty string is skip.
func ParseMalformedPolicy(s string) (MalformedPolicy, error) {
	switch s {
	case "", "skip":
		return MalformedSkip, nil
	case "abort":
		return MalformedAbort, nil
	}
	return MalformedSkip, fmt.Errorf("unknown malformed policy %q (want skip or abort)", s)
}

// ConfirmPolicy decides what a dispatcher does when a confirmation-gated
// action arrives while another confirmation is pending.
type ConfirmPolicy int

const (
	// ConfirmReplace cancels the pending confirmation and surfaces the new one.
	ConfirmReplace ConfirmPolicy = iota
	// ConfirmQueue surfaces confirmations one at a time in arrival order.
	ConfirmQueue
	// ConfirmReject refuses the new invocation with CodeConfirmationPending.
	ConfirmReject
)

func (p ConfirmPolicy) String() string {
	switch p {
	case ConfirmQueue:
		return "queue"
	case ConfirmReject:
		return "reject"
	}
	return "replace"
}

// ParseConfirmPolicy parses "replace", "queue" or "reject". The empty
// string is replace.
func ParseConfirmPolicy(s string) (ConfirmPolicy, error) {
	switch s {
	case "", "replace":
		return ConfirmReplace, nil
	case "queue":
		return ConfirmQueue, nil
	case "reject":
		return ConfirmReject, nil
	}
	return ConfirmReplace, fmt.Errorf("unknown confirm policy %q (want replace, queue or reject)", s)
}

// Journal persists applied patches and resolved actions so a session can be
// resumed or replayed. *store.Store implements it.
type Journal interface {
	AppendPatch(ctx context.Context, rec ir.PatchRecord) error
	AppendAction(ctx context.Context, rec ir.ActionRecord) error
}

// Observer receives engine events for metrics. *metrics.Collectors
// implements it.
type Observer interface {
	PatchApplied(op string)
	PatchMalformed()
	Diagnostic(code Code)
	ActionResolved(name, outcome string)
	StreamState(state StreamState)
}

type nopObserver struct{}

func (nopObserver) PatchApplied(string)           {}
func (nopObserver) PatchMalformed()               {}
func (nopObserver) Diagnostic(Code)               {}
func (nopObserver) ActionResolved(string, string) {}
func (nopObserver) StreamState(StreamState)       {}

// PropsValidator checks element props. *catalog.Catalog implements it.
type PropsValidator interface {
	ValidateProps(typ string, props ir.Object) error
}

// ParamsValidator checks action params. *catalog.Catalog implements it.
type ParamsValidator interface {
	ValidateParams(name string, params ir.Object) error
}

// TypeSet reports which element types a host can render. *Registry
// implements it.
type TypeSet interface {
	Has(typ string) bool
	HasFallback() bool
}

// config is shared by Session and the components it owns.
type config struct {
	logger      *slog.Logger
	sessionID   string
	maxElements int
	maxPatches  int
	malformed   MalformedPolicy
	confirm     ConfirmPolicy
	observer    Observer
	clock       *Clock
	ids         IDGenerator
	journal     Journal
	props       PropsValidator
	params      ParamsValidator
	types       TypeSet
	checks      map[string]CheckFunc
	data        ir.Object
}

// Option configures a Session, Stream, Dispatcher or Renderer. Options that
// do not concern a component are ignored by it.
type Option func(*config)

func newConfig(opts []Option) *config {
	c := &config{
		maxElements: DefaultMaxElements,
		maxPatches:  DefaultMaxPatches,
		observer:    nopObserver{},
		ids:         UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.clock == nil {
		c.clock = NewClock()
	}
	if c.sessionID == "" {
		c.sessionID = c.ids.Generate()
	}
	return c
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithSessionID sets the session ID used in journal records. Defaults to a
// generated ID.
func WithSessionID(id string) Option {
	return func(c *config) { c.sessionID = id }
}

// WithMaxElements caps the elements of one tree. Defaults to
// DefaultMaxElements; 0 disables the cap.
func WithMaxElements(n int) Option {
	return func(c *config) { c.maxElements = n }
}

// WithMaxPatches caps the patches of one stream. Defaults to
// DefaultMaxPatches; 0 disables the cap.
func WithMaxPatches(n int) Option {
	return func(c *config) { c.maxPatches = n }
}

// WithMalformedPolicy sets what a stream does with malformed fragments.
// Defaults to MalformedSkip.
func WithMalformedPolicy(p MalformedPolicy) Option {
	return func(c *config) { c.malformed = p }
}

// WithConfirmPolicy sets what a dispatcher does with a second confirmation.
// Defaults to ConfirmReplace.
func WithConfirmPolicy(p ConfirmPolicy) Option {
	return func(c *config) { c.confirm = p }
}

// WithMetrics routes engine events to o.
func WithMetrics(o Observer) Option {
	return func(c *config) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithClock sets the seq clock, e.g. NewClockAt(lastSeq) when resuming.
func WithClock(clock *Clock) Option {
	return func(c *config) { c.clock = clock }
}

// WithIDGenerator sets the generator for session and invocation IDs.
func WithIDGenerator(g IDGenerator) Option {
	return func(c *config) { c.ids = g }
}

// WithJournal persists patches and actions to j.
func WithJournal(j Journal) Option {
	return func(c *config) { c.journal = j }
}

// WithCatalog validates props and params against v, typically a
// *catalog.Catalog.
func WithCatalog(v interface {
	PropsValidator
	ParamsValidator
}) Option {
	return func(c *config) {
		c.props = v
		c.params = v
	}
}

// WithComponents limits rendering to the types in ts. Elements of other
// types render through the fallback, or not at all when ts has none.
func WithComponents(ts TypeSet) Option {
	return func(c *config) { c.types = ts }
}

// WithFallback is WithComponents for a registry that has a fallback. It
// exists so hosts can pass the registry they render with.
func WithFallback[T any](r *Registry[T]) Option {
	return WithComponents(r)
}

// WithCheck registers a custom field validation function.
func WithCheck(name string, fn CheckFunc) Option {
	return func(c *config) {
		if c.checks == nil {
			c.checks = make(map[string]CheckFunc)
		}
		c.checks[name] = fn
	}
}

// WithData sets the host's initial data model. Keys the host does not
// provide are filled from the spec's state.
func WithData(data ir.Object) Option {
	return func(c *config) { c.data = data }
}
