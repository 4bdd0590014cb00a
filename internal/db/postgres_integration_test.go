//go:build integration

package db

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/jonathan/lead-engine/internal/types"
)

func getTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	db, err := Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

func cleanupSession(t *testing.T, db *DB, id uuid.UUID) {
	t.Helper()
	_ = db.DeleteSession(context.Background(), id)
}

func TestIntegration_SessionAndLeads(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()

	session := testSession("Integration " + uuid.NewString())
	if err := db.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	defer cleanupSession(t, db, session.ID)

	email := "alice@acme.io"
	first := testLead(session.ID, "Acme", types.Contact{Name: "Alice", Email: &email}, types.Contact{Name: "Bob"})
	second := testLead(session.ID, "Globex")

	t.Run("insert and read back", func(t *testing.T) {
		for _, lead := range []*types.Lead{first, second} {
			if err := db.InsertLead(ctx, lead); err != nil {
				t.Fatalf("InsertLead failed: %v", err)
			}
		}

		got, err := db.GetLead(ctx, first.ID)
		if err != nil {
			t.Fatalf("GetLead failed: %v", err)
		}
		if got.Company.Name != "Acme" {
			t.Errorf("Company.Name = %q, want Acme", got.Company.Name)
		}
		if len(got.Contacts) != 2 {
			t.Errorf("len(Contacts) = %d, want 2", len(got.Contacts))
		}
	})

	t.Run("counters recompute", func(t *testing.T) {
		updated, err := db.RecomputeSessionCounters(ctx, session.ID)
		if err != nil {
			t.Fatalf("RecomputeSessionCounters failed: %v", err)
		}
		if updated.TotalLeads != 2 || updated.TotalContacts != 2 {
			t.Errorf("counters = (%d, %d), want (2, 2)", updated.TotalLeads, updated.TotalContacts)
		}
	})

	t.Run("session detail lists leads in order", func(t *testing.T) {
		detail, err := db.GetSession(ctx, session.ID)
		if err != nil {
			t.Fatalf("GetSession failed: %v", err)
		}
		if len(detail.Leads) != 2 || detail.Leads[0].ID != first.ID {
			t.Errorf("unexpected lead order: %+v", detail.Leads)
		}
	})

	t.Run("transition", func(t *testing.T) {
		got, err := db.TransitionLead(ctx, first.ID, types.LeadStatusContacted, "")
		if err != nil {
			t.Fatalf("TransitionLead failed: %v", err)
		}
		if got.ContactedAt == nil {
			t.Error("ContactedAt should be set")
		}

		_, err = db.TransitionLead(ctx, first.ID, types.LeadStatusSkipped, "")
		if !errors.Is(err, types.ErrInvalidTransition) {
			t.Errorf("err = %v, want ErrInvalidTransition", err)
		}
	})

	t.Run("finish and delete", func(t *testing.T) {
		if err := db.FinishSession(ctx, session.ID, types.SessionStatusCompleted); err != nil {
			t.Fatalf("FinishSession failed: %v", err)
		}
		if err := db.DeleteSession(ctx, session.ID); err != nil {
			t.Fatalf("DeleteSession failed: %v", err)
		}
		if _, err := db.GetLead(ctx, second.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("lead should be deleted with its session, got %v", err)
		}
	})
}
