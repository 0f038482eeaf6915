package testutil

import (
	"fmt"
	"sync"
)

// SequenceGenerator hands out "<prefix>-0001", "<prefix>-0002", and so on.
//
// Unlike engine.FixedGenerator, which returns a declared list and panics
// once it runs out, SequenceGenerator never runs out. Scenarios use it when
// they cannot know up front how many invocations they will make, yet still
// need IDs that are identical between runs.
//
// Thread-safety: all methods are safe for concurrent use.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceGenerator creates a generator. An empty prefix becomes "test".
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	if prefix == "" {
		prefix = "test"
	}
	return &SequenceGenerator{prefix: prefix}
}

// Generate returns the next ID. Implements engine.IDGenerator.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

// Reset restarts the sequence, so the next Generate returns "<prefix>-0001".
func (g *SequenceGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
