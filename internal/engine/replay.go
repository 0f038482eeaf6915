package engine

// # Replay
//
// Replay is not a special mode. A journal holds exactly the patches a
// stream applied, each with the seq it was applied at, and replay feeds
// them back through Tree.Apply in seq order. Because every patch is applied
// as one atomic step and nothing else writes to the tree, the same ordered
// patches always produce the same tree, which SpecHash makes checkable:
//
//	records -> sort by seq -> Tree.Apply(patch, seq) -> SpecHash
//
// Two mechanisms keep a resumed stream from applying a patch twice:
//
//  1. The journal is keyed by (session_id, seq); appending the same seq
//     again is a no-op.
//  2. Stream.Resume(lastSeq) counts the patches a restarted source
//     re-delivers and skips those at or below lastSeq.

import (
	"fmt"
	"sort"

	"github.com/roach88/uispec/internal/ir"
)

// ReplayInto applies records to tree in seq order and returns the last seq
// applied. It stops at the first patch that does not apply.
func ReplayInto(tree *Tree, records []ir.PatchRecord) (int64, error) {
	ordered := make([]ir.PatchRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })

	var last int64
	for _, rec := range ordered {
		if err := tree.Apply(rec.Patch, rec.Seq); err != nil {
			return last, fmt.Errorf("replay seq %d: %w", rec.Seq, err)
		}
		last = rec.Seq
	}
	return last, nil
}

// Replay rebuilds a tree from journaled patches. The tree has no element
// cap, since the journal only holds patches that were accepted once.
func Replay(records []ir.PatchRecord) (*Tree, error) {
	tree := NewTree(0)
	if _, err := ReplayInto(tree, records); err != nil {
		return nil, err
	}
	return tree, nil
}

// ReplayHash rebuilds a tree from records and returns its SpecHash.
func ReplayHash(records []ir.PatchRecord) (string, error) {
	tree, err := Replay(records)
	if err != nil {
		return "", err
	}
	return ir.SpecHash(tree.Snapshot().Spec)
}

// VerifyReplay replays records twice from empty trees and reports whether
// both runs produce the same tree. It returns the hash of the first run.
func VerifyReplay(records []ir.PatchRecord) (string, bool, error) {
	first, err := ReplayHash(records)
	if err != nil {
		return "", false, err
	}
	second, err := ReplayHash(records)
	if err != nil {
		return first, false, err
	}
	return first, first == second, nil
}
