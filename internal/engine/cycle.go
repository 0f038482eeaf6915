package engine

// CycleGuard tracks the element keys on the current render path so that a
// tree whose children lead back to an ancestor renders once instead of
// recursing forever.
//
// A key may legitimately render many times in one pass (a repeated child
// renders once per item), so the guard tracks the active path, not every
// key seen. One guard serves one render pass and is not safe for
// concurrent use.
type CycleGuard struct {
	onPath map[string]bool
	path   []string
}

// NewCycleGuard creates an empty guard.
func NewCycleGuard() *CycleGuard {
	return &CycleGuard{onPath: make(map[string]bool)}
}

// Enter pushes key onto the render path. It returns false, leaving the path
// unchanged, if key is already an ancestor.
func (g *CycleGuard) Enter(key string) bool {
	if g.onPath[key] {
		return false
	}
	g.onPath[key] = true
	g.path = append(g.path, key)
	return true
}

// Leave pops key off the render path. Calls must mirror successful Enters.
func (g *CycleGuard) Leave(key string) {
	delete(g.onPath, key)
	if n := len(g.path); n > 0 && g.path[n-1] == key {
		g.path = g.path[:n-1]
	}
}

// Path returns a copy of the keys from the root to the current element.
func (g *CycleGuard) Path() []string {
	out := make([]string, len(g.path))
	copy(out, g.path)
	return out
}

// Depth returns the length of the current render path.
func (g *CycleGuard) Depth() int {
	return len(g.path)
}
