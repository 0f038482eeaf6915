package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/uispec/internal/engine"
	"github.com/roach88/uispec/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Session  string // optional - specific session only
}

// ReplaySessionResult holds the replay result for a single session.
type ReplaySessionResult struct {
	Session       string         `json:"session"`
	Patches       int            `json:"patches"`
	LastSeq       int64          `json:"last_seq"`
	Actions       map[string]int `json:"actions,omitempty"`
	SpecHash      string         `json:"spec_hash"`
	RecordedHash  string         `json:"recorded_hash,omitempty"`
	Deterministic bool           `json:"deterministic"`
	MatchesRecord bool           `json:"matches_record"`
	Error         string         `json:"error,omitempty"`
}

// OK reports whether the session replayed identically and, when a hash was
// recorded at settle time, to the recorded tree.
func (r ReplaySessionResult) OK() bool {
	return r.Error == "" && r.Deterministic && r.MatchesRecord
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Sessions         []ReplaySessionResult `json:"sessions"`
	TotalSessions    int                   `json:"total_sessions"`
	AllDeterministic bool                  `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay journaled sessions and verify determinism",
		Long: `Rebuild each journaled session's tree from its patches, twice, and
verify both runs produce the same SpecHash. When the session recorded a
hash at settle time, the replayed tree must match it too.

Exit codes:
  0 - All sessions replay deterministically
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, unknown session, etc.)

Examples:
  uispec replay --db ./uispec.db
  uispec replay --db ./uispec.db --session s1
  uispec replay --db ./uispec.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "replay one session only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, "failed to open database", err)
	}
	defer st.Close()

	var sessions []store.SessionInfo
	if opts.Session != "" {
		info, err := st.GetSession(ctx, opts.Session)
		if errors.Is(err, store.ErrSessionNotFound) {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("session %s not found", opts.Session), nil)
		}
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeJournal, "failed to read session", err)
		}
		sessions = []store.SessionInfo{info}
	} else {
		sessions, err = st.ListSessions(ctx)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeJournal, "failed to list sessions", err)
		}
	}

	result := ReplayResult{
		Sessions:         make([]ReplaySessionResult, 0, len(sessions)),
		TotalSessions:    len(sessions),
		AllDeterministic: true,
	}

	if len(sessions) == 0 {
		if formatter.JSON() {
			return formatter.Report(result, nil)
		}
		fmt.Fprintln(formatter.Writer, "No sessions found in database.")
		return nil
	}

	for _, info := range sessions {
		formatter.VerboseLog("Replaying session %s (%d patches)", info.ID, info.Patches)
		sr, err := replayAndVerifySession(ctx, st, info.ID)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeJournal, fmt.Sprintf("failed to read session %s", info.ID), err)
		}
		result.Sessions = append(result.Sessions, sr)
		if !sr.OK() {
			result.AllDeterministic = false
		}
	}

	if formatter.JSON() {
		return outputReplayJSON(formatter, result)
	}
	return outputReplayText(formatter, result)
}

// replayAndVerifySession rebuilds one session's tree twice and compares
// both runs with each other and with the hash recorded at settle time.
// Journal read failures are returned; replay failures are reported in the
// result.
func replayAndVerifySession(ctx context.Context, st *store.Store, sessionID string) (ReplaySessionResult, error) {
	state, err := st.GetSessionState(ctx, sessionID)
	if err != nil {
		return ReplaySessionResult{}, err
	}

	sr := ReplaySessionResult{
		Session:      sessionID,
		Patches:      len(state.Patches),
		LastSeq:      state.LastSeq,
		RecordedHash: state.Info.SpecHash,
	}
	if len(state.Outcomes) > 0 {
		sr.Actions = state.Outcomes
	}

	hash, ok, err := engine.VerifyReplay(state.Patches)
	if err != nil {
		sr.Error = err.Error()
		return sr, nil
	}
	sr.SpecHash = hash
	sr.Deterministic = ok
	sr.MatchesRecord = sr.RecordedHash == "" || sr.RecordedHash == hash
	return sr, nil
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(formatter *OutputFormatter, result ReplayResult) error {
	var cliErr *CLIError
	if !result.AllDeterministic {
		cliErr = &CLIError{
			Code:    ErrCodeDeterminism,
			Message: "determinism verification failed",
		}
	}
	if err := formatter.Report(result, cliErr); err != nil {
		return err
	}
	if cliErr != nil {
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%s: determinism verification failed", ErrCodeDeterminism))
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(formatter *OutputFormatter, result ReplayResult) error {
	w := formatter.Writer

	fmt.Fprintf(w, "Replay Summary: %d session(s)\n", result.TotalSessions)
	fmt.Fprintln(w)

	for _, s := range result.Sessions {
		status := "OK"
		if !s.OK() {
			status = "FAIL"
		}
		fmt.Fprintf(w, "%s Session: %s\n", status, s.Session)
		fmt.Fprintf(w, "  Patches: %d (last seq %d)\n", s.Patches, s.LastSeq)

		if formatter.Verbose {
			fmt.Fprintf(w, "  SpecHash: %s\n", s.SpecHash)
			if s.RecordedHash != "" {
				fmt.Fprintf(w, "  Recorded: %s\n", s.RecordedHash)
			}
			for _, outcome := range []string{"success", "error", "cancelled"} {
				if n := s.Actions[outcome]; n > 0 {
					fmt.Fprintf(w, "  Actions %s: %d\n", outcome, n)
				}
			}
		}

		switch {
		case s.Error != "":
			fmt.Fprintf(w, "  Error: %s\n", s.Error)
		case !s.Deterministic:
			fmt.Fprintln(w, "  Warning: Non-deterministic replay detected!")
		case !s.MatchesRecord:
			fmt.Fprintln(w, "  Warning: Replayed tree differs from the recorded hash!")
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "OK All sessions verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "FAIL Determinism verification failed")
	// Determinism failure = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("%s: determinism verification failed", ErrCodeDeterminism))
}
