package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/lead-engine/internal/types"
)

// InsertLead writes a lead. Re-inserting an existing id fails; leads are never upserted.
func (db *DB) InsertLead(ctx context.Context, lead *types.Lead) error {
	if err := validateLead(lead); err != nil {
		return err
	}
	row, err := encodeLead(lead)
	if err != nil {
		return err
	}

	err = db.pool.QueryRow(ctx,
		`INSERT INTO leads (id, session_id, company_name, company_domain, company, job, contacts,
		   contact_count, draft_subject, draft_body, score, status, last_error, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		   COALESCE($14, NOW()), COALESCE($14, NOW()))
		 RETURNING created_at, updated_at`,
		lead.ID, lead.SessionID, lead.Company.Name, lead.Company.Domain, row.company, row.job, row.contacts,
		len(lead.Contacts), lead.Draft.Subject, lead.Draft.Body, lead.Score, lead.Status, lead.LastError,
		nullTime(lead.CreatedAt),
	).Scan(&lead.CreatedAt, &lead.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert lead: %w", err)
	}
	return nil
}

// GetLead retrieves a lead by ID.
func (db *DB) GetLead(ctx context.Context, id uuid.UUID) (*types.Lead, error) {
	lead, err := scanLead(db.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return lead, nil
}

// TransitionLead moves a lead to next under a row lock.
func (db *DB) TransitionLead(ctx context.Context, id uuid.UUID, next types.LeadStatus, lastError string) (*types.Lead, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current types.LeadStatus
	err = tx.QueryRow(ctx, `SELECT status FROM leads WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("lead %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read lead status: %w", err)
	}
	if _, err := current.Transition(next); err != nil {
		return nil, err
	}

	lead, err := scanLead(tx.QueryRow(ctx,
		`UPDATE leads SET status = $1, last_error = $2, updated_at = NOW(),
		   contacted_at = CASE WHEN $1 = 'contacted' THEN NOW() ELSE contacted_at END
		 WHERE id = $3
		 RETURNING `+leadColumns,
		next, lastError, id,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to update lead status: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit lead status: %w", err)
	}
	return lead, nil
}

// UpdateDraft replaces a lead's draft.
func (db *DB) UpdateDraft(ctx context.Context, id uuid.UUID, draft types.Draft) (*types.Lead, error) {
	lead, err := scanLead(db.pool.QueryRow(ctx,
		`UPDATE leads SET draft_subject = $1, draft_body = $2, updated_at = NOW()
		 WHERE id = $3
		 RETURNING `+leadColumns,
		draft.Subject, draft.Body, id,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to update draft: %w", err)
	}
	return lead, nil
}

func scanLead(row pgx.Row) (*types.Lead, error) {
	var lead types.Lead
	var enc leadRow
	err := row.Scan(&lead.ID, &lead.SessionID, &enc.company, &enc.job, &enc.contacts,
		&lead.Draft.Subject, &lead.Draft.Body, &lead.Score, &lead.Status, &lead.LastError,
		&lead.CreatedAt, &lead.UpdatedAt, &lead.ContactedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := decodeLead(&lead, enc); err != nil {
		return nil, err
	}
	return &lead, nil
}
