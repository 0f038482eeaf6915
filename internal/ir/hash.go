package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainSpec   = "uispec/spec/v1"
	DomainPatch  = "uispec/patch/v1"
	DomainAction = "uispec/action/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SpecHash computes the content hash of a spec. Two trees built by
// replaying the same patch sequence hash identically.
func SpecHash(s Spec) (string, error) {
	canonical, err := MarshalCanonical(s.ToValue())
	if err != nil {
		return "", fmt.Errorf("SpecHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSpec, canonical), nil
}

// PatchID computes the content-addressed ID of the patch applied at seq
// within a session.
func PatchID(sessionID string, seq int64, p Patch) (string, error) {
	obj := Object{
		"session": String(sessionID),
		"seq":     Number(float64(seq)),
		"op":      String(p.Op),
		"path":    String(p.Path),
	}
	if p.Value != nil {
		obj["value"] = p.Value
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("PatchID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainPatch, canonical), nil
}

// ActionHash identifies an action invocation by name and resolved params.
// Used to correlate journaled action records across replays.
func ActionHash(name string, params Object) (string, error) {
	obj := Object{
		"name":   String(name),
		"params": params,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ActionHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainAction, canonical), nil
}

// MustSpecHash is like SpecHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustSpecHash(s Spec) string {
	h, err := SpecHash(s)
	if err != nil {
		panic(err)
	}
	return h
}

// MustPatchID is like PatchID but panics on error.
func MustPatchID(sessionID string, seq int64, p Patch) string {
	id, err := PatchID(sessionID, seq, p)
	if err != nil {
		panic(err)
	}
	return id
}
