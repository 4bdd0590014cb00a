package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/lead-engine/internal/types"
)

// CreateSession inserts a session in status running.
func (db *DB) CreateSession(ctx context.Context, session *types.Session) error {
	if err := validateSession(session); err != nil {
		return err
	}
	query, err := json.Marshal(session.Query)
	if err != nil {
		return fmt.Errorf("failed to encode session query: %w", err)
	}

	err = db.pool.QueryRow(ctx,
		`INSERT INTO lead_sessions (id, title, query, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		session.ID, session.Title, query, session.Status,
	).Scan(&session.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FinishSession records how the run ended.
func (db *DB) FinishSession(ctx context.Context, id uuid.UUID, status types.SessionStatus) error {
	result, err := db.pool.Exec(ctx,
		`UPDATE lead_sessions SET status = $1, completed_at = NOW() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

// RecomputeSessionCounters derives the session counters from its lead rows.
func (db *DB) RecomputeSessionCounters(ctx context.Context, id uuid.UUID) (*types.Session, error) {
	row := db.pool.QueryRow(ctx,
		`UPDATE lead_sessions s SET
		   total_leads = (SELECT COUNT(*) FROM leads l WHERE l.session_id = s.id),
		   total_contacts = (SELECT COALESCE(SUM(l.contact_count), 0) FROM leads l WHERE l.session_id = s.id)
		 WHERE s.id = $1
		 RETURNING `+sessionColumns,
		id,
	)
	session, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("failed to recompute session counters: %w", err)
	}
	return session, nil
}

// ListSessions returns the most recent sessions first.
func (db *DB) ListSessions(ctx context.Context, limit int) ([]types.Session, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := db.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM lead_sessions ORDER BY created_at DESC, seq DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []types.Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to list sessions: %w", err)
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

// GetSession returns a session with its leads.
func (db *DB) GetSession(ctx context.Context, id uuid.UUID) (*types.SessionDetail, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM lead_sessions WHERE id = $1`, id)
	session, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	rows, err := db.pool.Query(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE session_id = $1 ORDER BY created_at, seq`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list session leads: %w", err)
	}
	defer rows.Close()

	detail := &types.SessionDetail{Session: *session, Leads: []types.Lead{}}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to list session leads: %w", err)
		}
		detail.Leads = append(detail.Leads, *lead)
	}
	return detail, rows.Err()
}

// DeleteSession deletes a session and all its leads (via cascade)
func (db *DB) DeleteSession(ctx context.Context, id uuid.UUID) error {
	result, err := db.pool.Exec(ctx, `DELETE FROM lead_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanSession(row pgx.Row) (*types.Session, error) {
	var s types.Session
	var query []byte
	err := row.Scan(&s.ID, &s.Title, &query, &s.Status, &s.TotalLeads, &s.TotalContacts, &s.CreatedAt, &s.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(query, &s.Query); err != nil {
		return nil, fmt.Errorf("failed to decode session query: %w", err)
	}
	return &s, nil
}
