package engine

// Default stream caps. A generator is untrusted input; these bound the
// memory one stream can claim.
const (
	DefaultMaxElements = 10000
	DefaultMaxPatches  = 100000
)

// LimitEnforcer counts the patches of one stream and checks element totals
// against the configured caps. A cap of zero or less disables that check.
//
// Not safe for concurrent use: the stream calls it from its apply path
// under its own lock.
type LimitEnforcer struct {
	maxElements int
	maxPatches  int
	patches     int
}

// NewLimitEnforcer creates an enforcer with the given caps.
func NewLimitEnforcer(maxElements, maxPatches int) *LimitEnforcer {
	return &LimitEnforcer{maxElements: maxElements, maxPatches: maxPatches}
}

// CheckPatch counts one more patch and fails once the patch cap is passed.
func (l *LimitEnforcer) CheckPatch() error {
	l.patches++
	if l.maxPatches > 0 && l.patches > l.maxPatches {
		return NewLimitError("patches", l.patches, l.maxPatches)
	}
	return nil
}

// CheckElements fails if a tree of n elements would pass the element cap.
func (l *LimitEnforcer) CheckElements(n int) error {
	if l.maxElements > 0 && n > l.maxElements {
		return NewLimitError("elements", n, l.maxElements)
	}
	return nil
}

// Patches returns the number of patches counted so far.
func (l *LimitEnforcer) Patches() int {
	return l.patches
}

// Reset clears the patch count, e.g. when a stream resumes.
func (l *LimitEnforcer) Reset() {
	l.patches = 0
}
