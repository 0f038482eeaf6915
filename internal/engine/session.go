package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/uispec/internal/ir"
	"github.com/roach88/uispec/internal/pointer"
	"github.com/roach88/uispec/internal/visibility"
)

// Session binds one tree, one stream, one data model and one dispatcher
// for a single host session.
type Session struct {
	id         string
	log        *slog.Logger
	tree       *Tree
	stream     *Stream
	model      *Model
	dispatcher *Dispatcher
	renderer   *Renderer
	fields     *FieldValidator

	mu   sync.RWMutex
	auth *visibility.AuthState
}

// NewSession creates a session. Every Option applies.
func NewSession(opts ...Option) *Session {
	cfg := newConfig(opts)
	tree := NewTree(cfg.maxElements)
	model := NewModel(cfg.data)
	s := &Session{
		id:         cfg.sessionID,
		log:        cfg.logger,
		tree:       tree,
		stream:     newStream(tree, cfg),
		model:      model,
		dispatcher: newDispatcher(model, cfg),
		renderer:   newRenderer(cfg),
		fields:     NewFieldValidator(cfg.checks),
	}
	s.log.Info("session created", "session", s.id, "max_elements", cfg.maxElements, "max_patches", cfg.maxPatches)
	return s
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// Tree returns the session's tree.
func (s *Session) Tree() *Tree { return s.tree }

// Stream returns the session's patch stream.
func (s *Session) Stream() *Stream { return s.stream }

// Dispatcher returns the session's action dispatcher.
func (s *Session) Dispatcher() *Dispatcher { return s.dispatcher }

// Model returns the session's data model.
func (s *Session) Model() *Model { return s.model }

// SetAuth sets the auth state used by later render passes. nil means the
// host has no auth state.
func (s *Session) SetAuth(auth *visibility.AuthState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = auth
}

// Get reads the data model at path.
func (s *Session) Get(path string) ir.Value { return s.model.Get(path) }

// Set writes value at path in the data model.
func (s *Session) Set(path string, value ir.Value) error { return s.model.Set(path, value) }

// Update writes several paths as one step.
func (s *Session) Update(values map[string]ir.Value) error { return s.model.Update(values) }

// OnChange registers an observer of data model writes.
func (s *Session) OnChange(fn ChangeFunc) (cancel func()) { return s.model.OnChange(fn) }

// Register binds an action name to a handler.
func (s *Session) Register(name string, h Handler) { s.dispatcher.Register(name, h) }

// LoadSpec replaces the tree with a complete spec and settles the stream.
func (s *Session) LoadSpec(spec ir.Spec) ([]*Error, error) {
	if err := s.tree.Load(spec); err != nil {
		return nil, err
	}
	return s.Settle(), nil
}

// ApplyLine feeds one stream frame to the session's stream.
func (s *Session) ApplyLine(ctx context.Context, line []byte) error {
	return s.stream.ApplyLine(ctx, line)
}

// Consume drives the session's stream from src until it settles or fails.
// Once settled, the spec's state seeds any data keys the host left unset.
func (s *Session) Consume(ctx context.Context, src FrameSource) error {
	if err := s.stream.Consume(ctx, src); err != nil {
		return err
	}
	s.adoptState()
	return nil
}

// Settle ends the stream and returns its dangling references.
func (s *Session) Settle() []*Error {
	dangling := s.stream.Settle()
	s.adoptState()
	return dangling
}

// Resume rebuilds the tree from journaled patches and reopens the stream so
// a restarted source skips what the journal already holds.
func (s *Session) Resume(records []ir.PatchRecord) (int64, error) {
	if s.stream.State() == StateSettled {
		return 0, errResumeSettled()
	}
	last, err := ReplayInto(s.tree, records)
	if err != nil {
		return last, err
	}
	s.log.Info("session resumed from journal", "session", s.id, "patches", len(records), "last_seq", last)
	return last, s.stream.Resume(last)
}

// adoptState fills data keys the host did not provide from the spec's state.
func (s *Session) adoptState() {
	if state := s.tree.Snapshot().Spec.State; len(state) > 0 {
		s.model.Adopt(state)
	}
}

// Render runs one render pass over the current tree and data model.
func (s *Session) Render() RenderResult {
	s.mu.RLock()
	auth := s.auth
	s.mu.RUnlock()
	return s.renderer.Render(RenderInput{
		Spec:    s.tree.Snapshot().Spec,
		Data:    s.model.Data(),
		Auth:    auth,
		Settled: s.stream.State() == StateSettled,
	})
}

// Dispatch invokes an action within scope. See Dispatcher.Dispatch.
func (s *Session) Dispatch(ctx context.Context, action ir.Action, scope *pointer.RepeatScope) (*Invocation, error) {
	return s.dispatcher.Dispatch(ctx, action, scope)
}

// DispatchProp invokes the action a rendered node declares under prop.
func (s *Session) DispatchProp(ctx context.Context, n *Node, prop string) (*Invocation, error) {
	a, ok := n.Actions[prop]
	if !ok {
		return nil, fmt.Errorf("element %q declares no action under %q", n.Key, prop)
	}
	// Node actions were token-rewritten with the node's props.
	return s.dispatcher.Dispatch(ctx, a, nil)
}

// Confirm executes the pending confirmation.
func (s *Session) Confirm(ctx context.Context) (*Invocation, error) { return s.dispatcher.Confirm(ctx) }

// Cancel drops the pending confirmation.
func (s *Session) Cancel(ctx context.Context) (*Invocation, error) { return s.dispatcher.Cancel(ctx) }

// ValidateField runs a node's validation checks against the value bound to
// it: the data at its "valuePath" or "path" prop.
func (s *Session) ValidateField(n *Node) FieldResult {
	var value ir.Value
	for _, prop := range []string{"valuePath", "path"} {
		if p, ok := n.Props[prop].(ir.String); ok {
			value = s.model.Get(string(p))
			break
		}
	}
	return s.fields.Validate(n.Validation, value, s.model.Data(), nil)
}
