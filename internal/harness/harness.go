package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/uispec/internal/catalog"
	"github.com/roach88/uispec/internal/engine"
	"github.com/roach88/uispec/internal/ir"
	"github.com/roach88/uispec/internal/store"
	"github.com/roach88/uispec/internal/testutil"
	"github.com/roach88/uispec/internal/visibility"
)

// SessionID is the session every scenario runs as.
const SessionID = "scenario"

// Harness runs one scenario against a real session backed by an in-memory
// journal.
type Harness struct {
	scenario *Scenario
	store    *store.Store
	session  *engine.Session
	logger   *slog.Logger
	result   *Result

	mu    sync.Mutex
	calls map[string]int
}

// Run executes a scenario and returns the result. Failed assertions are
// reported in the result; the error is non-nil only when the scenario
// could not be set up.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a context for handlers and the journal.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := testutil.DiscardLogger()
	opts, err := sessionOptions(scenario)
	if err != nil {
		return nil, err
	}
	opts = append(opts,
		engine.WithSessionID(SessionID),
		engine.WithIDGenerator(testutil.NewSequenceGenerator("inv")),
		engine.WithJournal(st),
		engine.WithLogger(logger),
	)

	h := &Harness{
		scenario: scenario,
		store:    st,
		session:  engine.NewSession(opts...),
		logger:   logger,
		result:   NewResult(),
		calls:    make(map[string]int),
	}
	if err := h.configure(); err != nil {
		return nil, err
	}

	h.applyStream(ctx)
	h.executeSteps(ctx)
	h.finish(ctx)

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

// sessionOptions turns the scenario's host configuration into options.
func sessionOptions(s *Scenario) ([]engine.Option, error) {
	var opts []engine.Option

	var cat *catalog.Catalog
	var err error
	switch {
	case s.Catalog != "":
		cat, err = catalog.CompileString(s.Catalog)
	case s.CatalogDir != "":
		cat, err = catalog.Load(s.CatalogDir)
	}
	if err != nil {
		return nil, fmt.Errorf("scenario %s: catalog: %w", s.Name, err)
	}
	if cat != nil {
		opts = append(opts, engine.WithCatalog(cat))
	}

	if len(s.Components) > 0 || s.Fallback {
		reg := engine.NewRegistry[struct{}]()
		for _, typ := range s.Components {
			reg.Register(typ, struct{}{})
		}
		if s.Fallback {
			reg.SetFallback(struct{}{})
		}
		opts = append(opts, engine.WithFallback(reg))
	}

	if s.Data != nil {
		data, err := toObject(s.Data)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: data: %w", s.Name, err)
		}
		opts = append(opts, engine.WithData(data))
	}

	malformed, err := engine.ParseMalformedPolicy(s.MalformedPolicy)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	confirm, err := engine.ParseConfirmPolicy(s.ConfirmPolicy)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	opts = append(opts,
		engine.WithMalformedPolicy(malformed),
		engine.WithConfirmPolicy(confirm),
	)
	if s.MaxElements > 0 {
		opts = append(opts, engine.WithMaxElements(s.MaxElements))
	}
	if s.MaxPatches > 0 {
		opts = append(opts, engine.WithMaxPatches(s.MaxPatches))
	}
	return opts, nil
}

// configure sets auth and registers the stub handlers.
func (h *Harness) configure() error {
	if a := h.scenario.Auth; a != nil {
		auth := &visibility.AuthState{SignedIn: a.SignedIn}
		if a.User != nil {
			user, err := ir.FromAny(a.User)
			if err != nil {
				return fmt.Errorf("scenario %s: auth.user: %w", h.scenario.Name, err)
			}
			auth.User = user
		}
		h.session.SetAuth(auth)
	}

	for name, spec := range h.scenario.Handlers {
		var result ir.Value
		if spec.Result != nil {
			v, err := ir.FromAny(spec.Result)
			if err != nil {
				return fmt.Errorf("scenario %s: handlers.%s.result: %w", h.scenario.Name, name, err)
			}
			result = v
		}
		h.session.Register(name, h.stubHandler(name, spec, result))
	}
	return nil
}

func (h *Harness) stubHandler(name string, spec HandlerSpec, result ir.Value) engine.Handler {
	return func(context.Context, ir.Object) (ir.Value, error) {
		h.mu.Lock()
		h.calls[name]++
		h.mu.Unlock()

		switch {
		case spec.Panic != "":
			panic(spec.Panic)
		case spec.Error != "":
			return nil, errors.New(spec.Error)
		}
		return result, nil
	}
}

// applyStream feeds the scenario's frames to the stream and settles it.
func (h *Harness) applyStream(ctx context.Context) {
	stream := h.session.Stream()
	for i, op := range h.scenario.Stream {
		if stream.State().Terminal() {
			h.logger.Info("stream stopped, remaining frames dropped", "scenario", h.scenario.Name, "at", i)
			break
		}
		frame, err := op.frame()
		if err != nil {
			h.result.AddError(fmt.Sprintf("stream[%d]: %v", i, err))
			continue
		}
		if err := h.session.ApplyLine(ctx, frame); err != nil {
			h.logger.Info("stream frame stopped the stream", "scenario", h.scenario.Name, "at", i, "error", err)
		}
	}

	if h.scenario.Settle == nil || *h.scenario.Settle {
		for _, d := range h.session.Settle() {
			h.result.Dangling = append(h.result.Dangling, d.Key)
		}
	}
}

// frame encodes op as a stream line.
func (op StreamOp) frame() ([]byte, error) {
	if op.Raw != "" {
		return []byte(op.Raw), nil
	}
	m := map[string]any{"op": op.Op, "path": op.Path}
	if op.Value != nil || op.Op != ir.OpRemove {
		v, err := nodeValue(op.Value)
		if err != nil {
			return nil, fmt.Errorf("value: %w", err)
		}
		m["value"] = v
	}
	return ir.MarshalCanonical(m)
}

// executeSteps runs each step and checks its expectations.
func (h *Harness) executeSteps(ctx context.Context) {
	for i, step := range h.scenario.Steps {
		trace := StepTrace{Step: i}
		inv, err := h.executeStep(ctx, step, &trace)
		if inv != nil {
			trace.Action = inv.Action.Name
			trace.State = inv.State.String()
			if inv.Err != nil {
				trace.Error = inv.Err.Error()
			}
		}
		if err != nil {
			trace.Error = err.Error()
			var ee *engine.Error
			if errors.As(err, &ee) {
				h.result.Diagnostics = append(h.result.Diagnostics, ee)
			}
		}
		h.result.Steps = append(h.result.Steps, trace)

		switch {
		case step.ExpectCode != "":
			if got := engine.CodeOf(err); string(got) != step.ExpectCode {
				h.result.AddError(fmt.Sprintf("steps[%d]: expected error %s, got %v", i, step.ExpectCode, err))
			}
		case err != nil:
			h.result.AddError(fmt.Sprintf("steps[%d]: %v", i, err))
		}
		if step.Expect != "" {
			got := "none"
			if inv != nil {
				got = inv.State.String()
			}
			if got != step.Expect {
				h.result.AddError(fmt.Sprintf("steps[%d]: expected invocation %s, got %s", i, step.Expect, got))
			}
		}
	}
}

func (h *Harness) executeStep(ctx context.Context, step Step, trace *StepTrace) (*engine.Invocation, error) {
	switch {
	case step.Dispatch != "":
		trace.Kind = "dispatch"
		n := findNode(h.session.Render().Root, step.Dispatch)
		if n == nil {
			return nil, fmt.Errorf("element %q is not rendered", step.Dispatch)
		}
		prop := step.Prop
		if prop == "" {
			prop = "action"
		}
		return h.session.DispatchProp(ctx, n, prop)
	case step.Confirm:
		trace.Kind = "confirm"
		return h.session.Confirm(ctx)
	case step.Cancel:
		trace.Kind = "cancel"
		return h.session.Cancel(ctx)
	default:
		trace.Kind = "set"
		raw, err := nodeValue(step.Set.Value)
		if err != nil {
			return nil, err
		}
		v, err := ir.FromAny(raw)
		if err != nil {
			return nil, err
		}
		return nil, h.session.Set(step.Set.Path, v)
	}
}

// finish renders the final state and checks that the journal replays to
// the same tree.
func (h *Harness) finish(ctx context.Context) {
	r := h.result
	stream := h.session.Stream()
	r.State = stream.State()
	r.Render = h.session.Render()
	r.Outline = r.Render.Outline()
	r.Data = h.session.Model().Data()

	diags := stream.Diagnostics()
	r.Diagnostics = append(diags, append(r.Diagnostics, r.Render.Diagnostics...)...)

	h.mu.Lock()
	for name, n := range h.calls {
		r.Calls[name] = n
	}
	h.mu.Unlock()

	records, err := h.store.ReadPatches(ctx, SessionID)
	if err != nil {
		r.AddError(fmt.Sprintf("journal: %v", err))
		return
	}
	hash, ok, err := engine.VerifyReplay(records)
	if err != nil {
		r.AddError(fmt.Sprintf("journal replay: %v", err))
		return
	}
	if !ok {
		r.AddError("journal replay is not idempotent")
	}
	if live := ir.MustSpecHash(h.session.Tree().Snapshot().Spec); hash != live {
		r.AddError(fmt.Sprintf("journal replay hash %s differs from live tree %s", hash, live))
	}
	r.SpecHash = hash
}

// findNode returns the node with renderKey, or else the first node with
// that element key.
func findNode(root *engine.Node, key string) *engine.Node {
	var byKey *engine.Node
	var walk func(n *engine.Node) *engine.Node
	walk = func(n *engine.Node) *engine.Node {
		if n.RenderKey == key {
			return n
		}
		if byKey == nil && n.Key == key {
			byKey = n
		}
		for _, c := range n.Children {
			if f := walk(c); f != nil {
				return f
			}
		}
		return nil
	}
	if root == nil {
		return nil
	}
	if n := walk(root); n != nil {
		return n
	}
	return byKey
}

// toObject converts a YAML mapping to an ir.Object.
func toObject(m map[string]any) (ir.Object, error) {
	v, err := ir.FromAny(m)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(ir.Object)
	if !ok {
		return nil, fmt.Errorf("expected an object, got %s", ir.Kind(v))
	}
	return obj, nil
}
