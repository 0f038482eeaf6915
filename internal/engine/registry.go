package engine

import "sort"

// Registry maps element types to a host's renderers. The set of types is
// closed: an unregistered type resolves to the fallback, or to nothing.
// T is whatever the host renders with, e.g. a function producing HTML.
//
// Registration happens at startup; a Registry is not safe for concurrent
// Register and Lookup.
type Registry[T any] struct {
	entries     map[string]T
	fallback    T
	hasFallback bool
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{entries: make(map[string]T)}
}

// Register binds typ to r, replacing any earlier binding.
func (reg *Registry[T]) Register(typ string, r T) *Registry[T] {
	reg.entries[typ] = r
	return reg
}

// SetFallback sets the renderer used for unregistered types.
func (reg *Registry[T]) SetFallback(r T) *Registry[T] {
	reg.fallback = r
	reg.hasFallback = true
	return reg
}

// Lookup returns the renderer for typ. exact is false when the fallback was
// returned; ok is false when there is neither.
func (reg *Registry[T]) Lookup(typ string) (r T, exact, ok bool) {
	if r, found := reg.entries[typ]; found {
		return r, true, true
	}
	if reg.hasFallback {
		return reg.fallback, false, true
	}
	var zero T
	return zero, false, false
}

// Has reports whether typ is registered.
func (reg *Registry[T]) Has(typ string) bool {
	_, ok := reg.entries[typ]
	return ok
}

// HasFallback reports whether a fallback is set.
func (reg *Registry[T]) HasFallback() bool {
	return reg.hasFallback
}

// Types returns the registered types in sorted order.
func (reg *Registry[T]) Types() []string {
	out := make([]string, 0, len(reg.entries))
	for typ := range reg.entries {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out
}
