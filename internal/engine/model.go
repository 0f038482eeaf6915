package engine

import (
	"sort"
	"sync"

	"github.com/roach88/uispec/internal/ir"
	"github.com/roach88/uispec/internal/pointer"
)

// ChangeFunc observes one data model write.
type ChangeFunc func(path string, value ir.Value)

// Model is the session's data model. Every write goes through one locked
// update path and produces a new top-level document, so a document handed
// out by Data is never changed afterwards and hosts can detect changes by
// identity.
type Model struct {
	mu        sync.Mutex
	data      ir.Object
	observers map[int]ChangeFunc
	nextID    int
}

// NewModel creates a model holding initial. A nil initial starts empty.
func NewModel(initial ir.Object) *Model {
	if initial == nil {
		initial = ir.Object{}
	}
	return &Model{data: initial, observers: make(map[int]ChangeFunc)}
}

// Data returns the current document.
func (m *Model) Data() ir.Object {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data
}

// Get resolves path against the current document; nil means undefined.
func (m *Model) Get(path string) ir.Value {
	return pointer.Lookup(m.Data(), path)
}

// Set writes value at path.
func (m *Model) Set(path string, value ir.Value) error {
	return m.Update(map[string]ir.Value{path: value})
}

// Update writes every path/value pair as one step, in sorted path order.
// Either every write lands or, on the first unwritable path, none does.
// Observers run after the lock is released, once per written path.
func (m *Model) Update(values map[string]ir.Value) error {
	paths := make([]string, 0, len(values))
	for p := range values {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	m.mu.Lock()
	var doc ir.Value = m.data
	for _, p := range paths {
		next, err := pointer.Set(doc, p, values[p])
		if err != nil {
			m.mu.Unlock()
			return err
		}
		doc = next
	}
	obj, ok := doc.(ir.Object)
	if !ok {
		m.mu.Unlock()
		return &pointer.PathError{Path: "/", Message: "data model root must stay an object"}
	}
	m.data = obj
	observers := m.snapshotObservers()
	m.mu.Unlock()

	for _, p := range paths {
		for _, fn := range observers {
			fn(p, values[p])
		}
	}
	return nil
}

// Adopt fills the top-level keys the document lacks from state, without
// notifying observers. Keys already present are left alone. It reports
// whether anything was added.
func (m *Model) Adopt(state ir.Object) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	var merged ir.Object
	for k, v := range state {
		if _, ok := m.data[k]; ok {
			continue
		}
		if merged == nil {
			merged = m.data.Clone()
		}
		merged[k] = v
	}
	if merged == nil {
		return false
	}
	m.data = merged
	return true
}

// OnChange registers fn to run after each write and returns a function
// that unregisters it.
func (m *Model) OnChange(fn ChangeFunc) (cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.observers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.observers, id)
	}
}

func (m *Model) snapshotObservers() []ChangeFunc {
	ids := make([]int, 0, len(m.observers))
	for id := range m.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]ChangeFunc, len(ids))
	for i, id := range ids {
		out[i] = m.observers[id]
	}
	return out
}
