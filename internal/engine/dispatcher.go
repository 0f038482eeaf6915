package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/uispec/internal/catalog"
	"github.com/roach88/uispec/internal/ir"
	"github.com/roach88/uispec/internal/pointer"
)

// ErrorMessageToken in an onError value is replaced by the handler's error
// message.
const ErrorMessageToken = "$error.message"

// ErrNoPendingConfirmation is returned by Confirm and Cancel when no
// confirmation is waiting for a decision.
var ErrNoPendingConfirmation = errors.New("no pending confirmation")

// Handler executes one action. It is supplied by the host.
type Handler func(ctx context.Context, params ir.Object) (ir.Value, error)

// InvocationState is the lifecycle of one dispatched action:
// confirm-pending (optional) -> executing -> success | error, or
// confirm-pending -> cancelled.
type InvocationState int

const (
	InvocationConfirmPending InvocationState = iota
	InvocationExecuting
	InvocationSucceeded
	InvocationFailed
	InvocationCancelled
)

func (s InvocationState) String() string {
	switch s {
	case InvocationExecuting:
		return "executing"
	case InvocationSucceeded:
		return "success"
	case InvocationFailed:
		return "error"
	case InvocationCancelled:
		return "cancelled"
	}
	return "confirm-pending"
}

// Resolved reports whether the invocation has finished.
func (s InvocationState) Resolved() bool {
	return s >= InvocationSucceeded
}

// Invocation is one dispatch of an action. Params are token-rewritten,
// {path}-resolved and validated.
type Invocation struct {
	ID       string
	Action   ir.Action // onSuccess/onError already rewritten for the scope
	Params   ir.Object
	State    InvocationState
	Result   ir.Value
	Err      error // handler error when State is InvocationFailed
	WriteErr error // failure writing onSuccess/onError values
}

// DispatcherState summarizes a dispatcher for the host.
type DispatcherState int

const (
	DispatcherIdle DispatcherState = iota
	DispatcherConfirmPending
	DispatcherExecuting
)

func (s DispatcherState) String() string {
	switch s {
	case DispatcherConfirmPending:
		return "confirm-pending"
	case DispatcherExecuting:
		return "executing"
	}
	return "idle"
}

// Dispatcher executes actions declared in the tree against host handlers.
//
// At most one confirmation is surfaced at a time, and a confirmed action
// finishes before the next confirmation is surfaced. Actions without a
// confirmation run independently of each other. Handlers run without any
// dispatcher lock held.
type Dispatcher struct {
	model     *Model
	log       *slog.Logger
	sessionID string
	params    ParamsValidator
	policy    ConfirmPolicy
	ids       IDGenerator
	clock     *Clock
	journal   Journal
	observer  Observer

	hmu      sync.RWMutex
	handlers map[string]Handler

	mu         sync.Mutex
	pending    []*Invocation // head is the surfaced confirmation
	confirming bool          // a confirmed invocation is executing
	running    int
}

// NewDispatcher creates a dispatcher writing to model. It uses WithLogger,
// WithSessionID, WithCatalog, WithConfirmPolicy, WithIDGenerator,
// WithJournal and WithMetrics.
func NewDispatcher(model *Model, opts ...Option) *Dispatcher {
	return newDispatcher(model, newConfig(opts))
}

func newDispatcher(model *Model, cfg *config) *Dispatcher {
	return &Dispatcher{
		model:     model,
		log:       cfg.logger,
		sessionID: cfg.sessionID,
		params:    cfg.params,
		policy:    cfg.confirm,
		ids:       cfg.ids,
		clock:     NewClock(),
		journal:   cfg.journal,
		observer:  cfg.observer,
		handlers:  make(map[string]Handler),
	}
}

// Register binds name to h, replacing any earlier handler.
func (d *Dispatcher) Register(name string, h Handler) {
	d.hmu.Lock()
	defer d.hmu.Unlock()
	d.handlers[name] = h
}

func (d *Dispatcher) handler(name string) (Handler, bool) {
	d.hmu.RLock()
	defer d.hmu.RUnlock()
	h, ok := d.handlers[name]
	return h, ok
}

// State returns the dispatcher's current state.
func (d *Dispatcher) State() DispatcherState {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case len(d.pending) > 0 && !d.confirming:
		return DispatcherConfirmPending
	case d.running > 0:
		return DispatcherExecuting
	}
	return DispatcherIdle
}

// Pending returns the confirmation awaiting a decision, or nil.
func (d *Dispatcher) Pending() *Invocation {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) == 0 || d.confirming {
		return nil
	}
	return d.pending[0]
}

// Dispatch invokes action within scope (nil outside repeated subtrees).
//
// An action without confirm runs to completion before Dispatch returns; an
// action with confirm returns in InvocationConfirmPending. A handler error
// is not a dispatch error: it resolves the invocation with
// InvocationFailed. Dispatch fails, leaving the data model untouched, when
// params do not validate (CodeSchemaValidation), when no handler is
// registered (CodeUnregisteredAction) or when ConfirmReject refuses a
// second confirmation (CodeConfirmationPending).
func (d *Dispatcher) Dispatch(ctx context.Context, action ir.Action, scope *pointer.RepeatScope) (*Invocation, error) {
	inv, err := d.prepare(action, scope)
	if err != nil {
		d.observer.Diagnostic(CodeOf(err))
		return nil, err
	}

	if action.Confirm == nil {
		d.execute(ctx, inv)
		return inv, nil
	}

	inv.State = InvocationConfirmPending
	d.mu.Lock()
	var replaced *Invocation
	if len(d.pending) > 0 || d.confirming {
		switch d.policy {
		case ConfirmReject:
			d.mu.Unlock()
			err := &Error{Code: CodeConfirmationPending, Message: "another confirmation is pending", Action: action.Name}
			d.observer.Diagnostic(err.Code)
			return nil, err
		case ConfirmReplace:
			if len(d.pending) > 0 && !d.confirming {
				replaced = d.pending[0]
				d.pending = d.pending[1:]
			}
		}
	}
	d.pending = append(d.pending, inv)
	d.mu.Unlock()

	if replaced != nil {
		d.log.Info("pending confirmation replaced", "session", d.sessionID, "action", replaced.Action.Name, "by", action.Name)
		d.cancel(ctx, replaced)
	}
	d.log.Info("action awaiting confirmation", "session", d.sessionID, "action", action.Name, "invocation", inv.ID)
	return inv, nil
}

// Confirm executes the pending confirmation and returns it resolved.
func (d *Dispatcher) Confirm(ctx context.Context) (*Invocation, error) {
	d.mu.Lock()
	if len(d.pending) == 0 || d.confirming {
		d.mu.Unlock()
		return nil, ErrNoPendingConfirmation
	}
	inv := d.pending[0]
	d.pending = d.pending[1:]
	d.confirming = true
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.confirming = false
		d.mu.Unlock()
	}()
	d.execute(ctx, inv)
	return inv, nil
}

// Cancel drops the pending confirmation without side effects.
func (d *Dispatcher) Cancel(ctx context.Context) (*Invocation, error) {
	d.mu.Lock()
	if len(d.pending) == 0 || d.confirming {
		d.mu.Unlock()
		return nil, ErrNoPendingConfirmation
	}
	inv := d.pending[0]
	d.pending = d.pending[1:]
	d.mu.Unlock()

	d.cancel(ctx, inv)
	return inv, nil
}

func (d *Dispatcher) cancel(ctx context.Context, inv *Invocation) {
	inv.State = InvocationCancelled
	d.log.Info("action cancelled", "session", d.sessionID, "action", inv.Action.Name, "invocation", inv.ID)
	d.record(ctx, inv)
}

// prepare rewrites, resolves and validates an action without side effects.
func (d *Dispatcher) prepare(action ir.Action, scope *pointer.RepeatScope) (*Invocation, error) {
	params := resolveRefs(rewriteObject(action.Params, scope), d.model.Data())

	if d.params != nil {
		if err := d.params.ValidateParams(action.Name, params); err != nil {
			msg := "params do not match the catalog"
			if errors.Is(err, catalog.ErrUnknownAction) {
				msg = "action is not in the catalog"
			}
			d.log.Warn("action refused", "session", d.sessionID, "action", action.Name, "error", err)
			return nil, &Error{Code: CodeSchemaValidation, Message: msg, Action: action.Name, Err: err}
		}
	}
	if _, ok := d.handler(action.Name); !ok {
		d.log.Warn("no handler for action", "session", d.sessionID, "action", action.Name)
		return nil, NewUnregisteredActionError(action.Name)
	}

	resolved := ir.Action{
		Name:      action.Name,
		Params:    params,
		Confirm:   action.Confirm,
		OnSuccess: rewriteSet(action.OnSuccess, scope),
		OnError:   rewriteSet(action.OnError, scope),
	}
	return &Invocation{ID: d.ids.Generate(), Action: resolved, Params: params}, nil
}

func (d *Dispatcher) execute(ctx context.Context, inv *Invocation) {
	h, ok := d.handler(inv.Action.Name)
	if !ok {
		// Unregistered between prepare and execute.
		inv.State = InvocationFailed
		inv.Err = NewUnregisteredActionError(inv.Action.Name)
		d.record(ctx, inv)
		return
	}

	d.mu.Lock()
	d.running++
	d.mu.Unlock()
	inv.State = InvocationExecuting

	result, err := callHandler(ctx, h, inv.Params)

	d.mu.Lock()
	d.running--
	d.mu.Unlock()

	var writes *ir.SetSpec
	if err != nil {
		inv.State = InvocationFailed
		inv.Err = err
		writes = substituteError(inv.Action.OnError, err)
		d.log.Info("action failed", "session", d.sessionID, "action", inv.Action.Name, "invocation", inv.ID, "error", err)
	} else {
		inv.State = InvocationSucceeded
		inv.Result = result
		writes = inv.Action.OnSuccess
		d.log.Info("action succeeded", "session", d.sessionID, "action", inv.Action.Name, "invocation", inv.ID)
	}

	if writes != nil && len(writes.Set) > 0 {
		if werr := d.model.Update(writes.Set); werr != nil {
			inv.WriteErr = werr
			d.log.Error("failed to apply action writes", "session", d.sessionID, "action", inv.Action.Name, "error", werr)
		}
	}
	d.record(ctx, inv)
}

// callHandler runs h, turning a panic into an error so one broken handler
// cannot take down the session.
func callHandler(ctx context.Context, h Handler, params ir.Object) (result ir.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h(ctx, params)
}

func (d *Dispatcher) record(ctx context.Context, inv *Invocation) {
	d.observer.ActionResolved(inv.Action.Name, inv.State.String())
	if d.journal == nil {
		return
	}
	rec := ir.ActionRecord{
		ID:        inv.ID,
		SessionID: d.sessionID,
		Seq:       d.clock.Next(),
		Name:      inv.Action.Name,
		Params:    inv.Params,
		Status:    inv.State.String(),
		Result:    inv.Result,
	}
	if inv.Err != nil {
		rec.Error = inv.Err.Error()
	}
	if err := d.journal.AppendAction(ctx, rec); err != nil {
		d.log.Error("failed to journal action", "session", d.sessionID, "action", inv.Action.Name, "error", err)
	}
}

// rewriteSet substitutes repeat tokens in both the paths and the values of
// a set.
func rewriteSet(s *ir.SetSpec, scope *pointer.RepeatScope) *ir.SetSpec {
	if s == nil || scope == nil {
		return s
	}
	out := &ir.SetSpec{Set: make(ir.Object, len(s.Set))}
	for path, v := range s.Set {
		out.Set[pointer.RewritePath(path, scope)] = pointer.Rewrite(v, scope)
	}
	return out
}

// substituteError replaces ErrorMessageToken strings in s with err's
// message.
func substituteError(s *ir.SetSpec, err error) *ir.SetSpec {
	if s == nil {
		return nil
	}
	out := &ir.SetSpec{Set: make(ir.Object, len(s.Set))}
	for path, v := range s.Set {
		out.Set[path] = replaceToken(v, ErrorMessageToken, ir.String(err.Error()))
	}
	return out
}

func replaceToken(v ir.Value, token string, with ir.Value) ir.Value {
	switch val := v.(type) {
	case ir.String:
		if string(val) == token {
			return with
		}
	case ir.Array:
		out := make(ir.Array, len(val))
		for i, e := range val {
			out[i] = replaceToken(e, token, with)
		}
		return out
	case ir.Object:
		out := make(ir.Object, len(val))
		for k, e := range val {
			out[k] = replaceToken(e, token, with)
		}
		return out
	}
	return v
}
