package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/roach88/uispec/internal/catalog"
	"github.com/roach88/uispec/internal/ir"
	"github.com/roach88/uispec/internal/pointer"
	"github.com/roach88/uispec/internal/visibility"
)

// Node is one visible element of a render pass, with repeat tokens already
// substituted. Nodes are what a host's component renderers consume.
type Node struct {
	Key        string
	Type       string
	RenderKey  string // unique among siblings; repeated children carry the item key
	Props      ir.Object
	Actions    map[string]ir.Action // prop name -> action
	Validation *ir.ValidationSchema
	Scope      *pointer.RepeatScope // nil outside repeated subtrees
	Fallback   bool                 // render with the fallback renderer
	Children   []*Node
}

// RenderResult is the output of one render pass.
type RenderResult struct {
	Root        *Node    // nil when there is nothing to render
	Diagnostics []*Error // in traversal order
}

// Diagnostic returns the first diagnostic with code, or nil.
func (r RenderResult) Diagnostic(code Code) *Error {
	for _, d := range r.Diagnostics {
		if d.Code == code {
			return d
		}
	}
	return nil
}

// Find returns the first node with key in depth-first order, or nil.
func (r RenderResult) Find(key string) *Node {
	var find func(n *Node) *Node
	find = func(n *Node) *Node {
		if n == nil {
			return nil
		}
		if n.Key == key {
			return n
		}
		for _, c := range n.Children {
			if f := find(c); f != nil {
				return f
			}
		}
		return nil
	}
	return find(r.Root)
}

// RenderInput is what one render pass reads. The engine never writes to it.
type RenderInput struct {
	Spec    ir.Spec
	Data    ir.Value
	Auth    *visibility.AuthState
	Settled bool // report unresolved keys as DanglingReference
}

// Renderer turns a tree and a data model into the node tree of visible
// elements. A failure in one element is reported as a diagnostic and
// contained to that element; it never aborts its siblings.
type Renderer struct {
	log      *slog.Logger
	props    PropsValidator
	types    TypeSet
	observer Observer
}

// NewRenderer creates a renderer. It uses WithLogger, WithCatalog,
// WithComponents and WithMetrics.
func NewRenderer(opts ...Option) *Renderer {
	cfg := newConfig(opts)
	return newRenderer(cfg)
}

func newRenderer(cfg *config) *Renderer {
	return &Renderer{log: cfg.logger, props: cfg.props, types: cfg.types, observer: cfg.observer}
}

// renderPass holds the state of one pass.
type renderPass struct {
	r     *Renderer
	in    RenderInput
	guard *CycleGuard
	diags []*Error
}

// Render runs one pass. Reads are pure: the same input renders the same
// result.
func (r *Renderer) Render(in RenderInput) RenderResult {
	p := &renderPass{r: r, in: in, guard: NewCycleGuard()}
	var root *Node
	if in.Spec.Root != "" {
		root = p.child(in.Spec.Root, "", in.Spec.Root, nil)
	}
	return RenderResult{Root: root, Diagnostics: p.diags}
}

func (p *renderPass) report(e *Error) {
	p.diags = append(p.diags, e)
	p.r.observer.Diagnostic(e.Code)
}

// child resolves key as a child of parent and renders it.
func (p *renderPass) child(key, parent, renderKey string, scope *pointer.RepeatScope) *Node {
	el, ok := p.in.Spec.Elements[key]
	if !ok {
		// Not yet arrived while building; a dangling reference once settled.
		if p.in.Settled {
			p.report(NewDanglingError(key, parent))
		}
		return nil
	}
	if !p.guard.Enter(key) {
		p.report(NewCycleError(key, p.guard.Path()))
		p.r.log.Warn("render cycle", "element", key, "path", p.guard.Path())
		return nil
	}
	defer p.guard.Leave(key)
	return p.element(el, renderKey, scope)
}

func (p *renderPass) element(el *ir.Element, renderKey string, scope *pointer.RepeatScope) *Node {
	if !p.visible(el, scope) {
		return nil
	}

	n := &Node{
		Key:       el.Key,
		Type:      el.Type,
		RenderKey: renderKey,
		Props:     rewriteObject(el.Props, scope),
		Scope:     scope,
	}
	if !p.resolveType(n) {
		return nil
	}
	p.validateProps(n)
	n.Actions = actionsOf(n.Props, scope)
	n.Validation = rewriteValidation(el.Validation, scope)

	if el.Repeat != nil {
		n.Children = p.repeat(el, scope)
		return n
	}
	for _, c := range el.Children {
		if child := p.child(c, el.Key, c, scope); child != nil {
			n.Children = append(n.Children, child)
		}
	}
	return n
}

// visible evaluates el's condition under scope. A condition that does not
// parse hides the element.
func (p *renderPass) visible(el *ir.Element, scope *pointer.RepeatScope) bool {
	if el.Visible == nil {
		return true
	}
	cond, err := visibility.Parse(pointer.Rewrite(el.Visible, scope))
	if err != nil {
		p.report(&Error{Code: CodeInvalidVisibility, Message: "condition does not parse", Key: el.Key, Err: err})
		p.r.log.Warn("invalid visibility condition", "element", el.Key, "error", err)
		return false
	}
	ok, err := visibility.Explain(cond, visibility.Context{Data: p.in.Data, Auth: p.in.Auth})
	for _, e := range unjoin(err) {
		var mm *visibility.MismatchError
		if errors.As(e, &mm) {
			p.report(&Error{
				Code:    CodeComparisonMismatch,
				Message: mm.Error(),
				Key:     el.Key,
				Details: map[string]string{"op": string(mm.Op), "left": mm.Left, "right": mm.Right},
				Err:     mm,
			})
		}
	}
	return ok
}

// resolveType decides whether n renders normally, through the fallback, or
// not at all.
func (p *renderPass) resolveType(n *Node) bool {
	if p.r.types == nil || p.r.types.Has(n.Type) {
		return true
	}
	p.report(NewUnknownComponentError(n.Key, n.Type))
	p.r.log.Warn("unknown component type", "element", n.Key, "type", n.Type)
	if !p.r.types.HasFallback() {
		return false
	}
	n.Fallback = true
	return true
}

func (p *renderPass) validateProps(n *Node) {
	if p.r.props == nil || n.Fallback {
		return
	}
	err := p.r.props.ValidateProps(n.Type, n.Props)
	if err == nil {
		return
	}
	n.Fallback = true
	if errors.Is(err, catalog.ErrUnknownComponent) {
		p.report(&Error{Code: CodeUnknownComponent, Message: fmt.Sprintf("type %q is not in the catalog", n.Type), Key: n.Key, Err: err})
		p.r.log.Warn("unknown component type", "element", n.Key, "type", n.Type)
		return
	}
	p.report(&Error{Code: CodeSchemaValidation, Message: "props do not match the catalog", Key: n.Key, Err: err})
	p.r.log.Warn("props failed validation", "element", n.Key, "type", n.Type, "error", err)
}

// repeat renders el's children once per item of the array at el.Repeat.Path.
func (p *renderPass) repeat(el *ir.Element, scope *pointer.RepeatScope) []*Node {
	path := pointer.RewritePath(el.Repeat.Path, scope)
	items, _ := pointer.Lookup(p.in.Data, path).(ir.Array)

	var out []*Node
	for i, item := range items {
		itemScope := pointer.ScopeFor(path, i)
		itemKey := repeatKey(item, el.Repeat.Key, i)
		for _, c := range el.Children {
			if child := p.child(c, el.Key, c+"#"+itemKey, itemScope); child != nil {
				out = append(out, child)
			}
		}
	}
	return out
}

// repeatKey returns the stable key of one repeated item: the item's key
// field when it is a string or number, else its index.
func repeatKey(item ir.Value, field string, i int) string {
	if field != "" {
		if obj, ok := item.(ir.Object); ok {
			switch v := obj[field].(type) {
			case ir.String:
				return string(v)
			case ir.Number:
				return strconv.FormatFloat(float64(v), 'f', -1, 64)
			}
		}
	}
	return strconv.Itoa(i)
}

func rewriteObject(obj ir.Object, scope *pointer.RepeatScope) ir.Object {
	if obj == nil {
		return ir.Object{}
	}
	out, _ := pointer.Rewrite(obj, scope).(ir.Object)
	return out
}

func rewriteValidation(v *ir.ValidationSchema, scope *pointer.RepeatScope) *ir.ValidationSchema {
	if v == nil || scope == nil {
		return v
	}
	out := &ir.ValidationSchema{ValidateOn: v.ValidateOn, Checks: make([]ir.ValidationCheck, len(v.Checks))}
	for i, c := range v.Checks {
		out.Checks[i] = c
		if c.Args != nil {
			out.Checks[i].Args = rewriteObject(c.Args, scope)
		}
	}
	return out
}

// actionsOf collects the actions declared in already-rewritten props. Set
// targets are keys, which prop rewriting leaves alone, so they are
// rewritten here.
func actionsOf(props ir.Object, scope *pointer.RepeatScope) map[string]ir.Action {
	el := ir.Element{Props: props}
	actions := el.Actions()
	for name, a := range actions {
		a.OnSuccess = rewriteSet(a.OnSuccess, scope)
		a.OnError = rewriteSet(a.OnError, scope)
		actions[name] = a
	}
	return actions
}

// unjoin splits an errors.Join result into its parts.
func unjoin(err error) []error {
	if err == nil {
		return nil
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
