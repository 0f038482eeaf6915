package ir

// Version constants for the tree format and engine.
const (
	// FormatVersion is the spec document format version.
	FormatVersion = "1"

	// EngineVersion is the uispec engine version.
	EngineVersion = "0.1.0"
)
