package engine

import (
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/roach88/uispec/internal/ir"
	"github.com/roach88/uispec/internal/pointer"
)

// Snapshot is an immutable view of the tree after a whole number of
// patches. Readers never observe a patch half-applied.
type Snapshot struct {
	Spec ir.Spec
	Seq  int64 // seq of the last applied patch, 0 before any
}

// Tree is the authoritative UI tree of a session: a root pointer, a flat
// element map and the spec-level initial state.
//
// Writers are serialized by the tree's lock and every patch is staged in
// full before it is committed, so a rejected patch leaves the tree exactly
// as it was. Elements are never mutated in place: a patch that touches an
// element replaces it, so a snapshot only copies the element map.
type Tree struct {
	mu       sync.RWMutex
	root     string
	elements map[string]*ir.Element
	state    ir.Object
	seq      int64
	limits   *LimitEnforcer
	snap     *Snapshot // cached, nil after a write
}

// NewTree creates an empty tree capped at maxElements elements (0 disables
// the cap).
func NewTree(maxElements int) *Tree {
	return &Tree{
		elements: make(map[string]*ir.Element),
		limits:   NewLimitEnforcer(maxElements, 0),
	}
}

// Snapshot returns the current tree. The returned value must be treated as
// read-only; it stays valid after later patches.
func (t *Tree) Snapshot() *Snapshot {
	t.mu.RLock()
	snap := t.snap
	t.mu.RUnlock()
	if snap != nil {
		return snap
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snap == nil {
		t.snap = &Snapshot{
			Spec: ir.Spec{Root: t.root, Elements: maps.Clone(t.elements), State: t.state},
			Seq:  t.seq,
		}
	}
	return t.snap
}

// Len returns the number of elements.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.elements)
}

// Seq returns the seq of the last applied patch.
func (t *Tree) Seq() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.seq
}

// Load replaces the whole tree with spec, e.g. when a host starts from a
// complete spec rather than a stream.
func (t *Tree) Load(spec ir.Spec) error {
	if err := t.limits.CheckElements(len(spec.Elements)); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.root = spec.Root
	t.elements = maps.Clone(spec.Elements)
	if t.elements == nil {
		t.elements = make(map[string]*ir.Element)
	}
	t.state = spec.State
	t.snap = nil
	return nil
}

// mutation is one staged patch. Nothing in the tree changes until commit.
type mutation struct {
	setRoot  bool
	root     string
	elements map[string]*ir.Element // replaces the whole map when non-nil
	putKey   string
	put      *ir.Element // nil with putKey set means delete
	setState bool
	state    ir.Object
}

// Apply applies one patch as a single atomic step and records seq as the
// tree's position. A patch that cannot be applied returns an *Error with
// CodeMalformedPatch or CodeLimitExceeded and changes nothing.
func (t *Tree) Apply(p ir.Patch, seq int64) error {
	if !ir.ValidOps[p.Op] {
		return NewMalformedError(p.Path, fmt.Sprintf("unknown op %q", p.Op), nil)
	}
	if p.Op != ir.OpRemove && p.Value == nil {
		return NewMalformedError(p.Path, fmt.Sprintf("%s requires a value", p.Op), nil)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	m, err := t.stage(p, pointer.Parse(p.Path))
	if err != nil {
		var ee *Error
		if errors.As(err, &ee) {
			return ee
		}
		return NewMalformedError(p.Path, "cannot apply", err)
	}

	if err := t.limits.CheckElements(t.countAfter(m)); err != nil {
		return err
	}
	t.commit(m)
	t.seq = seq
	return nil
}

func (t *Tree) stage(p ir.Patch, segs []string) (mutation, error) {
	if len(segs) == 0 {
		return t.stageSpec(p)
	}
	switch segs[0] {
	case "root":
		if len(segs) > 1 {
			return mutation{}, fmt.Errorf("root has no fields")
		}
		return stageRoot(p)
	case "elements":
		switch len(segs) {
		case 1:
			return stageElements(p)
		case 2:
			return t.stageElement(p, segs[1])
		default:
			return t.stageElementField(p, segs[1], pointer.Format(segs[2:]...))
		}
	case "state":
		return t.stageState(p, pointer.Format(segs[1:]...))
	}
	return mutation{}, fmt.Errorf("unsupported location %q", segs[0])
}

func (t *Tree) stageSpec(p ir.Patch) (mutation, error) {
	if p.Op == ir.OpRemove {
		return mutation{setRoot: true, elements: map[string]*ir.Element{}, setState: true}, nil
	}
	spec, errs := ir.SpecFromValue(p.Value)
	if len(errs) > 0 {
		return mutation{}, errors.Join(errs...)
	}
	return mutation{setRoot: true, root: spec.Root, elements: spec.Elements, setState: true, state: spec.State}, nil
}

func stageRoot(p ir.Patch) (mutation, error) {
	if p.Op == ir.OpRemove {
		return mutation{setRoot: true}, nil
	}
	switch v := p.Value.(type) {
	case ir.Null:
		return mutation{setRoot: true}, nil
	case ir.String:
		return mutation{setRoot: true, root: string(v)}, nil
	}
	return mutation{}, fmt.Errorf("root must be a string or null, got %s", ir.Kind(p.Value))
}

func stageElements(p ir.Patch) (mutation, error) {
	if p.Op == ir.OpRemove {
		return mutation{elements: map[string]*ir.Element{}}, nil
	}
	obj, ok := p.Value.(ir.Object)
	if !ok {
		return mutation{}, fmt.Errorf("elements must be an object, got %s", ir.Kind(p.Value))
	}
	elements := make(map[string]*ir.Element, len(obj))
	for _, key := range obj.SortedKeys() {
		el, err := ir.ElementFromValue(key, obj[key])
		if err != nil {
			return mutation{}, err
		}
		elements[key] = el
	}
	return mutation{elements: elements}, nil
}

func (t *Tree) stageElement(p ir.Patch, key string) (mutation, error) {
	_, exists := t.elements[key]
	switch {
	case p.Op == ir.OpRemove && !exists:
		return mutation{}, fmt.Errorf("no element %q to remove", key)
	case p.Op == ir.OpRemove:
		return mutation{putKey: key}, nil
	case p.Op == ir.OpReplace && !exists:
		return mutation{}, fmt.Errorf("no element %q to replace", key)
	}
	el, err := ir.ElementFromValue(key, p.Value)
	if err != nil {
		return mutation{}, err
	}
	return mutation{putKey: key, put: el}, nil
}

func (t *Tree) stageElementField(p ir.Patch, key, field string) (mutation, error) {
	el, ok := t.elements[key]
	if !ok {
		return mutation{}, fmt.Errorf("element %q has not arrived", key)
	}
	doc, err := writeAt(el.ToValue(), field, p)
	if err != nil {
		return mutation{}, err
	}
	next, err := ir.ElementFromValue(key, doc)
	if err != nil {
		return mutation{}, err
	}
	return mutation{putKey: key, put: next}, nil
}

func (t *Tree) stageState(p ir.Patch, field string) (mutation, error) {
	var base ir.Value = t.state
	if t.state == nil {
		base = ir.Object{}
	}
	doc, err := writeAt(base, field, p)
	if err != nil {
		return mutation{}, err
	}
	switch v := doc.(type) {
	case nil:
		return mutation{setState: true}, nil
	case ir.Object:
		return mutation{setState: true, state: v}, nil
	}
	return mutation{}, fmt.Errorf("state must be an object, got %s", ir.Kind(doc))
}

// writeAt applies a set, add, replace or remove at path inside doc and
// returns the new document. Removing the document itself yields nil.
func writeAt(doc ir.Value, path string, p ir.Patch) (ir.Value, error) {
	switch p.Op {
	case ir.OpRemove:
		if len(pointer.Parse(path)) == 0 {
			return nil, nil
		}
		next, ok := pointer.Remove(doc, path)
		if !ok {
			return nil, fmt.Errorf("nothing to remove at %s", path)
		}
		return next, nil
	case ir.OpReplace:
		if _, ok := pointer.Get(doc, path); !ok {
			return nil, fmt.Errorf("nothing to replace at %s", path)
		}
	}
	return pointer.Set(doc, path, p.Value)
}

func (t *Tree) countAfter(m mutation) int {
	n := len(t.elements)
	if m.elements != nil {
		n = len(m.elements)
	}
	if m.putKey != "" {
		_, exists := t.elements[m.putKey]
		switch {
		case m.put != nil && !exists:
			n++
		case m.put == nil && exists:
			n--
		}
	}
	return n
}

func (t *Tree) commit(m mutation) {
	if m.setRoot {
		t.root = m.root
	}
	if m.elements != nil {
		t.elements = m.elements
	}
	if m.putKey != "" {
		if m.put != nil {
			t.elements[m.putKey] = m.put
		} else {
			delete(t.elements, m.putKey)
		}
	}
	if m.setState {
		t.state = m.state
	}
	t.snap = nil
}

// DanglingReferences lists the root and children keys of spec that name no
// element: the root first, then by referencing element key and position. While a stream is
// building these are expected; once settled each one is an error.
func DanglingReferences(spec ir.Spec) []*Error {
	var out []*Error
	if spec.Root != "" {
		if _, ok := spec.Elements[spec.Root]; !ok {
			out = append(out, NewDanglingError(spec.Root, ""))
		}
	}
	for _, key := range spec.Keys() {
		el := spec.Elements[key]
		for _, child := range el.Children {
			if _, ok := spec.Elements[child]; !ok {
				out = append(out, NewDanglingError(child, key))
			}
		}
	}
	return out
}
