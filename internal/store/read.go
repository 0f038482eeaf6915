package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/uispec/internal/ir"
)

// ErrSessionNotFound is returned when a session has no journal.
var ErrSessionNotFound = errors.New("session not found")

// SessionInfo summarizes one journaled session.
type SessionInfo struct {
	ID            string
	SpecHash      string // empty until the session settled
	EngineVersion string
	FormatVersion string
	Patches       int
	LastSeq       int64
}

// ReadPatches returns the journaled patches of a session.
// Results are ordered by seq, the replay key.
//
// Returns an empty slice (not nil) if the session has no patches.
func (s *Store) ReadPatches(ctx context.Context, sessionID string) ([]ir.PatchRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, patch_id, op, path, value
		FROM patches
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query patches: %w", err)
	}
	defer rows.Close()

	records := []ir.PatchRecord{}
	for rows.Next() {
		rec, err := scanPatch(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patches: %w", err)
	}
	return records, nil
}

// ReadPatchesAfter returns the patches of a session with seq > afterSeq,
// ordered by seq. Used to catch a resumed reader up.
func (s *Store) ReadPatchesAfter(ctx context.Context, sessionID string, afterSeq int64) ([]ir.PatchRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, patch_id, op, path, value
		FROM patches
		WHERE session_id = ? AND seq > ?
		ORDER BY seq ASC
	`, sessionID, afterSeq)
	if err != nil {
		return nil, fmt.Errorf("query patches: %w", err)
	}
	defer rows.Close()

	records := []ir.PatchRecord{}
	for rows.Next() {
		rec, err := scanPatch(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patches: %w", err)
	}
	return records, nil
}

func scanPatch(rows *sql.Rows) (ir.PatchRecord, error) {
	var (
		rec   ir.PatchRecord
		value sql.NullString
	)
	if err := rows.Scan(&rec.SessionID, &rec.Seq, &rec.ID, &rec.Patch.Op, &rec.Patch.Path, &value); err != nil {
		return ir.PatchRecord{}, fmt.Errorf("scan patch: %w", err)
	}
	v, err := unmarshalValue(value)
	if err != nil {
		return ir.PatchRecord{}, fmt.Errorf("patch seq %d: %w", rec.Seq, err)
	}
	rec.Patch.Value = v
	return rec, nil
}

// ReadActions returns the journaled actions of a session.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
func (s *Store) ReadActions(ctx context.Context, sessionID string) ([]ir.ActionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, seq, name, params, status, result, error
		FROM actions
		WHERE session_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	records := []ir.ActionRecord{}
	for rows.Next() {
		var (
			rec    ir.ActionRecord
			params string
			result sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Seq, &rec.Name, &params, &rec.Status, &result, &rec.Error); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		if rec.Params, err = unmarshalParams(params); err != nil {
			return nil, fmt.Errorf("action %s: %w", rec.ID, err)
		}
		if rec.Result, err = unmarshalValue(result); err != nil {
			return nil, fmt.Errorf("action %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return records, nil
}

// GetSession returns the summary of one session, or ErrSessionNotFound.
func (s *Store) GetSession(ctx context.Context, sessionID string) (SessionInfo, error) {
	row := s.db.QueryRowContext(ctx, sessionQuery+`
		WHERE s.id = ?
		GROUP BY s.id
	`, sessionID)
	info, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionInfo{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return info, err
}

// ListSessions returns every journaled session ordered by ID.
func (s *Store) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx, sessionQuery+`
		GROUP BY s.id
		ORDER BY s.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []SessionInfo{}
	for rows.Next() {
		info, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

const sessionQuery = `
	SELECT s.id, s.spec_hash, s.engine_version, s.format_version,
	       COUNT(p.seq), COALESCE(MAX(p.seq), 0)
	FROM sessions s
	LEFT JOIN patches p ON p.session_id = s.id
`

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (SessionInfo, error) {
	var info SessionInfo
	if err := r.Scan(&info.ID, &info.SpecHash, &info.EngineVersion, &info.FormatVersion, &info.Patches, &info.LastSeq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SessionInfo{}, err
		}
		return SessionInfo{}, fmt.Errorf("scan session: %w", err)
	}
	return info, nil
}
