package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/uispec/internal/ir"
)

// ensureSession inserts the session row if it does not exist yet.
func ensureSession(ctx context.Context, tx *sql.Tx, sessionID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, engine_version, format_version)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, sessionID, ir.EngineVersion, ir.FormatVersion)
	if err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}
	return nil
}

// AppendPatch journals one applied patch.
// Uses ON CONFLICT(session_id, seq) DO NOTHING for idempotency: a resumed
// stream that re-journals a seq leaves the original record in place.
//
// The session row is created on first use.
func (s *Store) AppendPatch(ctx context.Context, rec ir.PatchRecord) error {
	value, err := marshalValue(rec.Patch.Value)
	if err != nil {
		return fmt.Errorf("append patch: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append patch: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := ensureSession(ctx, tx, rec.SessionID); err != nil {
		return fmt.Errorf("append patch: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO patches
		(session_id, seq, patch_id, op, path, value)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, seq) DO NOTHING
	`,
		rec.SessionID,
		rec.Seq,
		rec.ID,
		rec.Patch.Op,
		rec.Patch.Path,
		value,
	)
	if err != nil {
		return fmt.Errorf("append patch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append patch: commit: %w", err)
	}
	return nil
}

// AppendAction journals one resolved action invocation.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (s *Store) AppendAction(ctx context.Context, rec ir.ActionRecord) error {
	params, err := marshalParams(rec.Params)
	if err != nil {
		return fmt.Errorf("append action: %w", err)
	}
	result, err := marshalValue(rec.Result)
	if err != nil {
		return fmt.Errorf("append action: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append action: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := ensureSession(ctx, tx, rec.SessionID); err != nil {
		return fmt.Errorf("append action: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO actions
		(id, session_id, seq, name, params, status, result, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.SessionID,
		rec.Seq,
		rec.Name,
		params,
		rec.Status,
		result,
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("append action: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append action: commit: %w", err)
	}
	return nil
}

// SetSpecHash records the SpecHash a session settled at, so replay can be
// checked against it later.
func (s *Store) SetSpecHash(ctx context.Context, sessionID, hash string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET spec_hash = ? WHERE id = ?
	`, hash, sessionID)
	if err != nil {
		return fmt.Errorf("set spec hash: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set spec hash: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("set spec hash: session %q not found", sessionID)
	}
	return nil
}
