package ir

// NOTE: These are journal records, not part of the tree model.

// PatchRecord is one journaled patch. Seq is the arrival order within a
// session and is the replay key.
type PatchRecord struct {
	SessionID string `json:"session_id"`
	Seq       int64  `json:"seq"`
	ID        string `json:"id"` // PatchID
	Patch     Patch  `json:"patch"`
}

// ActionRecord is one journaled action invocation and its outcome.
type ActionRecord struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Seq       int64  `json:"seq"`
	Name      string `json:"name"`
	Params    Object `json:"params"`
	Status    string `json:"status"` // "success", "error" or "cancelled"
	Result    Value  `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
}
