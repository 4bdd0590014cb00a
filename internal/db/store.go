package db

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/lead-engine/internal/types"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// ErrNotFound is returned when a session or lead does not exist.
var ErrNotFound = errors.New("not found")

// DefaultListLimit is used when ListSessions is called without a positive limit.
const DefaultListLimit = 50

// Store is the Lead Record Store: sessions and the leads they own.
// Each write is an independent statement; there are no cross-lead transactions.
type Store interface {
	// CreateSession inserts a session in status running.
	CreateSession(ctx context.Context, session *types.Session) error
	// FinishSession records how the run ended and stamps completed_at.
	FinishSession(ctx context.Context, id uuid.UUID, status types.SessionStatus) error
	// RecomputeSessionCounters derives total_leads and total_contacts from the lead rows.
	RecomputeSessionCounters(ctx context.Context, id uuid.UUID) (*types.Session, error)
	ListSessions(ctx context.Context, limit int) ([]types.Session, error)
	// GetSession returns the session with its leads in creation order.
	GetSession(ctx context.Context, id uuid.UUID) (*types.SessionDetail, error)
	// DeleteSession removes a session and, by cascade, its leads.
	DeleteSession(ctx context.Context, id uuid.UUID) error

	InsertLead(ctx context.Context, lead *types.Lead) error
	GetLead(ctx context.Context, id uuid.UUID) (*types.Lead, error)
	// TransitionLead moves a lead to next if its current status allows it, stamping
	// contacted_at on contacted and recording lastError. Disallowed moves return an
	// error wrapping types.ErrInvalidTransition.
	TransitionLead(ctx context.Context, id uuid.UUID, next types.LeadStatus, lastError string) (*types.Lead, error)
	// UpdateDraft replaces a lead's draft.
	UpdateDraft(ctx context.Context, id uuid.UUID, draft types.Draft) (*types.Lead, error)

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Open connects to the store selected by driver: "postgres" (dsn is a connection URL)
// or "sqlite" (dsn is a file path, ":memory:" for an in-memory database).
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch strings.ToLower(driver) {
	case "", "postgres", "postgresql":
		if dsn == "" {
			return nil, fmt.Errorf("database URL is required for the postgres driver")
		}
		return Connect(ctx, dsn)
	case "sqlite":
		return OpenSQLite(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// leadColumns is shared by both dialects; the order matches scanLead.
const leadColumns = `id, session_id, company, job, contacts, draft_subject, draft_body, score, status,
	last_error, created_at, updated_at, contacted_at`

const sessionColumns = `id, title, query, status, total_leads, total_contacts, created_at, completed_at`

// leadRow holds the encoded form of a lead.
type leadRow struct {
	company  []byte
	job      []byte
	contacts []byte
}

func encodeLead(lead *types.Lead) (leadRow, error) {
	var row leadRow
	var err error
	if row.company, err = json.Marshal(lead.Company); err != nil {
		return row, fmt.Errorf("failed to encode company: %w", err)
	}
	if row.job, err = json.Marshal(lead.Job); err != nil {
		return row, fmt.Errorf("failed to encode job: %w", err)
	}
	contacts := lead.Contacts
	if contacts == nil {
		contacts = []types.Contact{}
	}
	if row.contacts, err = json.Marshal(contacts); err != nil {
		return row, fmt.Errorf("failed to encode contacts: %w", err)
	}
	return row, nil
}

func decodeLead(lead *types.Lead, row leadRow) error {
	if err := json.Unmarshal(row.company, &lead.Company); err != nil {
		return fmt.Errorf("failed to decode company: %w", err)
	}
	if err := json.Unmarshal(row.job, &lead.Job); err != nil {
		return fmt.Errorf("failed to decode job: %w", err)
	}
	if err := json.Unmarshal(row.contacts, &lead.Contacts); err != nil {
		return fmt.Errorf("failed to decode contacts: %w", err)
	}
	return nil
}

func validateLead(lead *types.Lead) error {
	if lead.ID == uuid.Nil {
		return fmt.Errorf("lead id is required")
	}
	if lead.SessionID == uuid.Nil {
		return fmt.Errorf("lead session id is required")
	}
	if lead.Status == "" {
		lead.Status = types.LeadStatusNew
	}
	if !lead.Status.Valid() {
		return fmt.Errorf("invalid lead status %q", lead.Status)
	}
	return nil
}

func validateSession(session *types.Session) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.Status == "" {
		session.Status = types.SessionStatusRunning
	}
	if strings.TrimSpace(session.Title) == "" {
		return fmt.Errorf("session title is required")
	}
	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
