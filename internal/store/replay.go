package store

import (
	"context"
	"fmt"

	"github.com/roach88/uispec/internal/ir"
)

// SessionState is everything the journal holds about one session, for
// resume and replay.
type SessionState struct {
	Info      SessionInfo
	Patches   []ir.PatchRecord
	Actions   []ir.ActionRecord
	LastSeq   int64          // highest journaled patch seq
	Outcomes  map[string]int // action status -> count
	Cancelled int            // confirmations the user declined
}

// GetSessionState loads a session's journal for resume or replay.
func (s *Store) GetSessionState(ctx context.Context, sessionID string) (SessionState, error) {
	var state SessionState

	info, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return state, fmt.Errorf("get session state: %w", err)
	}
	state.Info = info
	state.LastSeq = info.LastSeq

	if state.Patches, err = s.ReadPatches(ctx, sessionID); err != nil {
		return state, fmt.Errorf("get session state: %w", err)
	}
	if state.Actions, err = s.ReadActions(ctx, sessionID); err != nil {
		return state, fmt.Errorf("get session state: %w", err)
	}

	state.Outcomes = make(map[string]int)
	for _, a := range state.Actions {
		state.Outcomes[a.Status]++
		if a.Status == "cancelled" {
			state.Cancelled++
		}
	}
	return state, nil
}
