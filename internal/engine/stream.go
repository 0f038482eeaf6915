package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/uispec/internal/ir"
)

// StreamState is the lifecycle of a patch stream:
// empty -> building -> settled | aborted.
type StreamState int

const (
	StateEmpty StreamState = iota
	StateBuilding
	StateSettled
	StateAborted
)

func (s StreamState) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateSettled:
		return "settled"
	case StateAborted:
		return "aborted"
	}
	return "empty"
}

// Terminal reports whether the stream accepts no more patches.
func (s StreamState) Terminal() bool {
	return s == StateSettled || s == StateAborted
}

// FrameSource yields raw stream frames, one patch each. Next returns io.EOF
// at the end of the stream, and an error wrapping ErrFrameTooLong for a
// frame it dropped for size. The source package implements it.
type FrameSource interface {
	Next(ctx context.Context) ([]byte, error)
}

// ErrFrameTooLong reports a frame a source dropped because it exceeded the
// source's size limit. The source stays usable.
var ErrFrameTooLong = errors.New("frame exceeds size limit")

// Stream applies an ordered sequence of patches to a Tree.
//
// Patches are applied strictly in arrival order, each as one atomic step.
// References to elements that have not arrived yet are expected while
// building. Settle checks them; Abort stops the stream and keeps the last
// fully-applied tree.
type Stream struct {
	tree      *Tree
	log       *slog.Logger
	sessionID string
	clock     *Clock
	limits    *LimitEnforcer
	policy    MalformedPolicy
	journal   Journal
	observer  Observer
	queue     *frameQueue

	mu        sync.Mutex
	state     StreamState
	skipUntil int64 // seqs at or below are already in the tree
	abortErr  error
	diags     []*Error
}

// NewStream creates a stream that writes to tree. It uses WithLogger,
// WithSessionID, WithClock, WithMaxPatches, WithMalformedPolicy,
// WithJournal and WithMetrics.
func NewStream(tree *Tree, opts ...Option) *Stream {
	return newStream(tree, newConfig(opts))
}

func newStream(tree *Tree, cfg *config) *Stream {
	s := &Stream{
		tree:      tree,
		log:       cfg.logger,
		sessionID: cfg.sessionID,
		clock:     cfg.clock,
		limits:    NewLimitEnforcer(0, cfg.maxPatches),
		policy:    cfg.malformed,
		journal:   cfg.journal,
		observer:  cfg.observer,
		queue:     newFrameQueue(),
	}
	if tree.Len() > 0 {
		s.state = StateBuilding
	}
	return s
}

// State returns the current lifecycle state.
func (s *Stream) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns why the stream aborted, or nil.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abortErr
}

// Diagnostics returns the malformed fragments skipped so far plus, once
// settled, the dangling references.
func (s *Stream) Diagnostics() []*Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Error, len(s.diags))
	copy(out, s.diags)
	return out
}

// Tree returns the tree the stream writes to.
func (s *Stream) Tree() *Tree {
	return s.tree
}

// ApplyLine decodes and applies one frame. Blank frames are ignored. A
// malformed frame is skipped or aborts the stream depending on policy; the
// returned error is non-nil only when the stream stopped.
func (s *Stream) ApplyLine(ctx context.Context, line []byte) error {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil
	}
	p, err := ir.ParsePatch(line)
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.acceptingLocked(); err != nil {
			return err
		}
		return s.malformedLocked(NewMalformedError("", "frame does not decode", err))
	}
	return s.Apply(ctx, p)
}

// Apply applies one decoded patch. See ApplyLine for error semantics.
func (s *Stream) Apply(ctx context.Context, p ir.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.acceptingLocked(); err != nil {
		return err
	}
	if err := s.limits.CheckPatch(); err != nil {
		s.abortLocked(err)
		return err
	}

	seq := s.clock.Next()
	if seq <= s.skipUntil {
		s.log.Debug("skipping patch already applied", "session", s.sessionID, "seq", seq, "path", p.Path)
		return nil
	}

	if err := s.tree.Apply(p, seq); err != nil {
		if IsCode(err, CodeLimitExceeded) {
			s.abortLocked(err)
			return err
		}
		var ee *Error
		if !errors.As(err, &ee) {
			ee = NewMalformedError(p.Path, "cannot apply", err)
		}
		ee.Details = map[string]string{"seq": fmt.Sprintf("%d", seq), "op": p.Op}
		return s.malformedLocked(ee)
	}

	s.log.Debug("patch applied", "session", s.sessionID, "seq", seq, "op", p.Op, "path", p.Path)
	s.observer.PatchApplied(p.Op)
	if s.state == StateEmpty {
		s.setStateLocked(StateBuilding)
	}
	s.journalPatch(ctx, seq, p)
	return nil
}

func (s *Stream) journalPatch(ctx context.Context, seq int64, p ir.Patch) {
	if s.journal == nil {
		return
	}
	id, err := ir.PatchID(s.sessionID, seq, p)
	if err != nil {
		s.log.Error("failed to compute patch id", "session", s.sessionID, "seq", seq, "error", err)
		return
	}
	rec := ir.PatchRecord{SessionID: s.sessionID, Seq: seq, ID: id, Patch: p}
	if err := s.journal.AppendPatch(ctx, rec); err != nil {
		// The in-memory tree stays authoritative; only resume is affected.
		s.log.Error("failed to journal patch", "session", s.sessionID, "seq", seq, "error", err)
	}
}

func (s *Stream) acceptingLocked() error {
	if !s.state.Terminal() {
		return nil
	}
	return &Error{
		Code:    CodeStreamAborted,
		Message: fmt.Sprintf("stream is %s", s.state),
		Err:     s.abortErr,
	}
}

// rejectFrame records a frame the source could not deliver whole. It is
// malformed input, not a transport failure.
func (s *Stream) rejectFrame(cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.acceptingLocked(); err != nil {
		return err
	}
	return s.malformedLocked(NewMalformedError("", "frame exceeds size limit", cause))
}

func (s *Stream) malformedLocked(e *Error) error {
	s.diags = append(s.diags, e)
	s.observer.PatchMalformed()
	s.observer.Diagnostic(e.Code)
	if s.policy == MalformedAbort {
		s.log.Warn("malformed patch, aborting stream", "session", s.sessionID, "path", e.Path, "error", e)
		s.abortLocked(e)
		return e
	}
	s.log.Warn("malformed patch skipped", "session", s.sessionID, "path", e.Path, "error", e)
	return nil
}

// Settle marks the end of input. It returns every root or child key that
// still names no element, each a CodeDanglingReference error. Settling a
// terminal stream returns nil and changes nothing.
func (s *Stream) Settle() []*Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return nil
	}
	s.queue.Close()
	dangling := DanglingReferences(s.tree.Snapshot().Spec)
	for _, d := range dangling {
		s.observer.Diagnostic(d.Code)
		s.log.Warn("dangling reference after settle", "session", s.sessionID, "element", d.Key)
	}
	s.diags = append(s.diags, dangling...)
	s.setStateLocked(StateSettled)
	s.log.Info("stream settled", "session", s.sessionID, "seq", s.tree.Seq(), "elements", s.tree.Len())
	return dangling
}

// Abort stops the stream. Queued frames are discarded and the tree keeps
// its last fully-applied state. Aborting a terminal stream does nothing.
func (s *Stream) Abort(reason error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abortLocked(reason)
}

func (s *Stream) abortLocked(reason error) {
	if s.state.Terminal() {
		return
	}
	s.abortErr = reason
	s.queue.Close()
	dropped := s.queue.Discard()
	s.setStateLocked(StateAborted)
	s.log.Info("stream aborted", "session", s.sessionID, "seq", s.tree.Seq(), "dropped", dropped, "reason", reason)
}

// Resume reopens an aborted or fresh stream for a source that restarts
// from the beginning. The first lastSeq patches it delivers are counted but
// not applied, since the tree already holds them.
func (s *Stream) Resume(lastSeq int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateSettled {
		return errResumeSettled()
	}
	s.skipUntil = lastSeq
	s.clock.Reset(0)
	s.limits.Reset()
	s.abortErr = nil
	s.queue = newFrameQueue()
	if s.tree.Len() > 0 || lastSeq > 0 {
		s.setStateLocked(StateBuilding)
	} else {
		s.setStateLocked(StateEmpty)
	}
	s.log.Info("stream resumed", "session", s.sessionID, "last_seq", lastSeq)
	return nil
}

func errResumeSettled() *Error {
	return &Error{Code: CodeStreamAborted, Message: "cannot resume a settled stream"}
}

func (s *Stream) setStateLocked(state StreamState) {
	s.state = state
	s.observer.StreamState(state)
}

// Enqueue queues a frame for Run. Returns false once the stream stopped
// taking input.
func (s *Stream) Enqueue(frame []byte) bool {
	s.mu.Lock()
	q := s.queue
	s.mu.Unlock()
	return q.Enqueue(frame)
}

// Close marks the end of queued input; Run settles once the queue drains.
func (s *Stream) Close() {
	s.mu.Lock()
	q := s.queue
	s.mu.Unlock()
	q.Close()
}

// Run applies queued frames in order until the queue is closed and
// drained (the stream settles) or ctx is cancelled (the stream aborts).
// It returns nil when settled.
func (s *Stream) Run(ctx context.Context) error {
	s.mu.Lock()
	q := s.queue
	s.mu.Unlock()

	s.log.Info("stream started", "session", s.sessionID)
	for {
		if frame, ok := q.TryDequeue(); ok {
			if err := s.ApplyLine(ctx, frame); err != nil {
				return err
			}
			continue
		}
		if q.Drained() {
			if s.State().Terminal() {
				return s.Err()
			}
			s.Settle()
			return nil
		}

		select {
		case <-ctx.Done():
			s.Abort(ctx.Err())
			return ctx.Err()
		case <-q.Wait():
		}
	}
}

// Consume reads frames from src and applies them until src returns io.EOF
// (the stream settles), src fails (the stream aborts with CodeTransport),
// or ctx is cancelled. A frame dropped for size follows the malformed
// policy like any other undecodable frame.
func (s *Stream) Consume(ctx context.Context, src FrameSource) error {
	for {
		frame, err := src.Next(ctx)
		switch {
		case errors.Is(err, io.EOF):
			s.Settle()
			return nil
		case ctx.Err() != nil:
			s.Abort(ctx.Err())
			return ctx.Err()
		case errors.Is(err, ErrFrameTooLong):
			if err := s.rejectFrame(err); err != nil {
				return err
			}
			continue
		case err != nil:
			terr := NewTransportError(err)
			s.observer.Diagnostic(terr.Code)
			s.Abort(terr)
			return terr
		}
		if err := s.ApplyLine(ctx, frame); err != nil {
			return err
		}
	}
}
