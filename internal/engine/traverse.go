package engine

import (
	"sort"
	"strings"

	"github.com/roach88/uispec/internal/ir"
	"github.com/roach88/uispec/internal/pointer"
	"github.com/roach88/uispec/internal/visibility"
)

// VisitFunc is called once per reachable element. parent is nil for the
// root. Returning false skips the element's children.
type VisitFunc func(el *ir.Element, parent *ir.Element, depth int) bool

// Walk visits the elements reachable from the root depth-first, in
// children order. Each element is visited once even if several parents
// name it, and missing keys are skipped.
func Walk(spec ir.Spec, fn VisitFunc) {
	seen := make(map[string]bool)
	var visit func(key string, parent *ir.Element, depth int)
	visit = func(key string, parent *ir.Element, depth int) {
		el, ok := spec.Elements[key]
		if !ok || seen[key] {
			return
		}
		seen[key] = true
		if !fn(el, parent, depth) {
			return
		}
		for _, c := range el.Children {
			visit(c, el, depth+1)
		}
	}
	if spec.Root != "" {
		visit(spec.Root, nil, 0)
	}
}

// CollectComponents returns the sorted, distinct types of the reachable
// elements.
func CollectComponents(spec ir.Spec) []string {
	set := make(map[string]bool)
	Walk(spec, func(el *ir.Element, _ *ir.Element, _ int) bool {
		set[el.Type] = true
		return true
	})
	return sortedSet(set)
}

// CollectActions returns the sorted, distinct action names declared by the
// reachable elements.
func CollectActions(spec ir.Spec) []string {
	set := make(map[string]bool)
	Walk(spec, func(el *ir.Element, _ *ir.Element, _ int) bool {
		for _, a := range el.Actions() {
			set[a.Name] = true
		}
		return true
	})
	return sortedSet(set)
}

// CollectStatePaths returns the sorted, distinct data paths the reachable
// elements read or write: {path} references and "*Path" string props,
// visibility conditions, repeat sources and action writes. Paths inside
// repeated subtrees are reported with their tokens, e.g. "$item/name".
func CollectStatePaths(spec ir.Spec) []string {
	set := make(map[string]bool)
	Walk(spec, func(el *ir.Element, _ *ir.Element, _ int) bool {
		for _, name := range el.Props.SortedKeys() {
			collectPropPaths(name, el.Props[name], set)
		}
		if el.Visible != nil {
			if c, err := visibility.Parse(el.Visible); err == nil {
				for _, p := range visibility.Paths(c) {
					set[p] = true
				}
			}
		}
		if el.Repeat != nil {
			set[el.Repeat.Path] = true
		}
		for _, a := range el.Actions() {
			set = addSetPaths(set, a.OnSuccess)
			set = addSetPaths(set, a.OnError)
		}
		return true
	})
	return sortedSet(set)
}

func collectPropPaths(name string, v ir.Value, set map[string]bool) {
	switch val := v.(type) {
	case ir.String:
		if (name == "path" || strings.HasSuffix(name, "Path")) && isPathLike(string(val)) {
			set[string(val)] = true
		}
	case ir.Object:
		if p, ok := refPath(val); ok {
			set[p] = true
			return
		}
		for k, e := range val {
			collectPropPaths(k, e, set)
		}
	case ir.Array:
		for _, e := range val {
			collectPropPaths(name, e, set)
		}
	}
}

func isPathLike(s string) bool {
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, pointer.TokenItem)
}

func addSetPaths(set map[string]bool, s *ir.SetSpec) map[string]bool {
	for _, p := range s.Paths() {
		set[p] = true
	}
	return set
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
