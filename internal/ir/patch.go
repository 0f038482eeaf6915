package ir

import (
	"encoding/json"
	"fmt"
)

// Patch operations accepted on the stream.
const (
	OpSet     = "set"
	OpAdd     = "add"
	OpReplace = "replace"
	OpRemove  = "remove"
)

// ValidOps lists the recognised patch operations.
var ValidOps = map[string]bool{
	OpSet:     true,
	OpAdd:     true,
	OpReplace: true,
	OpRemove:  true,
}

// Patch is one incremental instruction used to build the spec.
// Value is nil for remove.
type Patch struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value Value  `json:"value,omitempty"`
}

// UnmarshalJSON decodes a patch frame, keeping an absent value distinct
// from an explicit null.
func (p *Patch) UnmarshalJSON(data []byte) error {
	var raw struct {
		Op    *string         `json:"op"`
		Path  *string         `json:"path"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Op == nil {
		return fmt.Errorf("patch: missing op")
	}
	if raw.Path == nil {
		return fmt.Errorf("patch: missing path")
	}
	p.Op = *raw.Op
	p.Path = *raw.Path
	p.Value = nil
	if raw.Value != nil {
		v, err := unmarshalValue(raw.Value)
		if err != nil {
			return fmt.Errorf("patch value: %w", err)
		}
		p.Value = v
	}
	return nil
}

// MarshalJSON encodes the patch as a single stream frame.
func (p Patch) MarshalJSON() ([]byte, error) {
	obj := Object{"op": String(p.Op), "path": String(p.Path)}
	if p.Value != nil {
		obj["value"] = p.Value
	}
	return obj.MarshalJSON()
}

// ParsePatch decodes one stream frame.
func ParsePatch(line []byte) (Patch, error) {
	var p Patch
	if err := json.Unmarshal(line, &p); err != nil {
		return Patch{}, err
	}
	return p, nil
}
