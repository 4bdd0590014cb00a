package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/jonathan/lead-engine/internal/types"
)

// sqliteTime is fixed-width so text ordering matches time ordering.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

// SQLite is the embedded store. It serializes access through a single connection.
type SQLite struct {
	pool *sql.DB
	now  func() time.Time
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)

	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	pool.SetMaxOpenConns(1)
	pool.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.PingContext(pingCtx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s := &SQLite{pool: pool, now: func() time.Time { return time.Now().UTC() }}
	if err := s.Migrate(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	return s.pool.Close()
}

// Ping checks the database.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.pool.PingContext(ctx)
}

// Migrate applies the embedded schema. It is idempotent.
func (s *SQLite) Migrate(ctx context.Context) error {
	schema, err := schemaFS.ReadFile("schema/sqlite.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}
	for _, stmt := range strings.Split(string(schema), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.pool.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// CreateSession inserts a session in status running.
func (s *SQLite) CreateSession(ctx context.Context, session *types.Session) error {
	if err := validateSession(session); err != nil {
		return err
	}
	query, err := json.Marshal(session.Query)
	if err != nil {
		return fmt.Errorf("failed to encode session query: %w", err)
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = s.now()
	}

	_, err = s.pool.ExecContext(ctx,
		`INSERT INTO lead_sessions (id, title, query, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		session.ID.String(), session.Title, string(query), string(session.Status), formatTime(session.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FinishSession records how the run ended.
func (s *SQLite) FinishSession(ctx context.Context, id uuid.UUID, status types.SessionStatus) error {
	result, err := s.pool.ExecContext(ctx,
		`UPDATE lead_sessions SET status = ?, completed_at = ? WHERE id = ?`,
		string(status), formatTime(s.now()), id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}
	return requireAffected(result, "session", id)
}

// RecomputeSessionCounters derives the session counters from its lead rows.
func (s *SQLite) RecomputeSessionCounters(ctx context.Context, id uuid.UUID) (*types.Session, error) {
	result, err := s.pool.ExecContext(ctx,
		`UPDATE lead_sessions SET
		   total_leads = (SELECT COUNT(*) FROM leads WHERE session_id = lead_sessions.id),
		   total_contacts = (SELECT COALESCE(SUM(contact_count), 0) FROM leads WHERE session_id = lead_sessions.id)
		 WHERE id = ?`,
		id.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to recompute session counters: %w", err)
	}
	if err := requireAffected(result, "session", id); err != nil {
		return nil, err
	}
	return s.getSession(ctx, id)
}

// ListSessions returns the most recent sessions first.
func (s *SQLite) ListSessions(ctx context.Context, limit int) ([]types.Session, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.pool.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM lead_sessions ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sessions := []types.Session{}
	for rows.Next() {
		session, err := scanSQLiteSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to list sessions: %w", err)
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

// GetSession returns a session with its leads.
func (s *SQLite) GetSession(ctx context.Context, id uuid.UUID) (*types.SessionDetail, error) {
	session, err := s.getSession(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.QueryContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE session_id = ? ORDER BY created_at, rowid`,
		id.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list session leads: %w", err)
	}
	defer func() { _ = rows.Close() }()

	detail := &types.SessionDetail{Session: *session, Leads: []types.Lead{}}
	for rows.Next() {
		lead, err := scanSQLiteLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to list session leads: %w", err)
		}
		detail.Leads = append(detail.Leads, *lead)
	}
	return detail, rows.Err()
}

func (s *SQLite) getSession(ctx context.Context, id uuid.UUID) (*types.Session, error) {
	row := s.pool.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM lead_sessions WHERE id = ?`, id.String())
	session, err := scanSQLiteSession(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// DeleteSession deletes a session and its leads.
func (s *SQLite) DeleteSession(ctx context.Context, id uuid.UUID) error {
	result, err := s.pool.ExecContext(ctx, `DELETE FROM lead_sessions WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return requireAffected(result, "session", id)
}

// InsertLead writes a lead.
func (s *SQLite) InsertLead(ctx context.Context, lead *types.Lead) error {
	if err := validateLead(lead); err != nil {
		return err
	}
	row, err := encodeLead(lead)
	if err != nil {
		return err
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = s.now()
	}
	lead.UpdatedAt = lead.CreatedAt

	_, err = s.pool.ExecContext(ctx,
		`INSERT INTO leads (id, session_id, company_name, company_domain, company, job, contacts,
		   contact_count, draft_subject, draft_body, score, status, last_error, created_at, updated_at, contacted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID.String(), lead.SessionID.String(), lead.Company.Name, lead.Company.Domain,
		string(row.company), string(row.job), string(row.contacts), len(lead.Contacts),
		lead.Draft.Subject, lead.Draft.Body, lead.Score, string(lead.Status), lead.LastError,
		formatTime(lead.CreatedAt), formatTime(lead.UpdatedAt), formatNullTime(lead.ContactedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert lead: %w", err)
	}
	return nil
}

// GetLead retrieves a lead by ID.
func (s *SQLite) GetLead(ctx context.Context, id uuid.UUID) (*types.Lead, error) {
	return s.getLead(ctx, s.pool, id)
}

type sqliteQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLite) getLead(ctx context.Context, q sqliteQuerier, id uuid.UUID) (*types.Lead, error) {
	lead, err := scanSQLiteLead(q.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = ?`, id.String()))
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return lead, nil
}

// TransitionLead moves a lead to next inside a transaction.
func (s *SQLite) TransitionLead(ctx context.Context, id uuid.UUID, next types.LeadStatus, lastError string) (*types.Lead, error) {
	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM leads WHERE id = ?`, id.String()).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("lead %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read lead status: %w", err)
	}
	if _, err := types.LeadStatus(current).Transition(next); err != nil {
		return nil, err
	}

	now := formatTime(s.now())
	query := `UPDATE leads SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`
	args := []any{string(next), lastError, now, id.String()}
	if next == types.LeadStatusContacted {
		query = `UPDATE leads SET status = ?, last_error = ?, updated_at = ?, contacted_at = ? WHERE id = ?`
		args = []any{string(next), lastError, now, now, id.String()}
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to update lead status: %w", err)
	}

	lead, err := s.getLead(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit lead status: %w", err)
	}
	return lead, nil
}

// UpdateDraft replaces a lead's draft.
func (s *SQLite) UpdateDraft(ctx context.Context, id uuid.UUID, draft types.Draft) (*types.Lead, error) {
	result, err := s.pool.ExecContext(ctx,
		`UPDATE leads SET draft_subject = ?, draft_body = ?, updated_at = ? WHERE id = ?`,
		draft.Subject, draft.Body, formatTime(s.now()), id.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update draft: %w", err)
	}
	if err := requireAffected(result, "lead", id); err != nil {
		return nil, err
	}
	return s.GetLead(ctx, id)
}

type sqliteScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteSession(row sqliteScanner) (*types.Session, error) {
	var (
		sess              types.Session
		id, query, status string
		createdAt         string
		completedAt       sql.NullString
	)
	err := row.Scan(&id, &sess.Title, &query, &status, &sess.TotalLeads, &sess.TotalContacts, &createdAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if sess.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid session id %q: %w", id, err)
	}
	sess.Status = types.SessionStatus(status)
	if err := json.Unmarshal([]byte(query), &sess.Query); err != nil {
		return nil, fmt.Errorf("failed to decode session query: %w", err)
	}
	if sess.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if sess.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, err
	}
	return &sess, nil
}

func scanSQLiteLead(row sqliteScanner) (*types.Lead, error) {
	var (
		lead                   types.Lead
		id, sessionID, status  string
		company, job, contacts string
		createdAt, updatedAt   string
		contactedAt            sql.NullString
	)
	err := row.Scan(&id, &sessionID, &company, &job, &contacts, &lead.Draft.Subject, &lead.Draft.Body,
		&lead.Score, &status, &lead.LastError, &createdAt, &updatedAt, &contactedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if lead.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid lead id %q: %w", id, err)
	}
	if lead.SessionID, err = uuid.Parse(sessionID); err != nil {
		return nil, fmt.Errorf("invalid session id %q: %w", sessionID, err)
	}
	lead.Status = types.LeadStatus(status)
	if err := decodeLead(&lead, leadRow{company: []byte(company), job: []byte(job), contacts: []byte(contacts)}); err != nil {
		return nil, err
	}
	if lead.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if lead.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if lead.ContactedAt, err = parseNullTime(contactedAt); err != nil {
		return nil, err
	}
	return &lead, nil
}

func requireAffected(result sql.Result, kind string, id uuid.UUID) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTime)
}

func formatNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTime, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
