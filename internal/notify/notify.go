// Package notify publishes lead-engine domain events to a message broker so other
// services (CRM sync, reporting) can follow leads without polling the API.
package notify

import (
	"context"
	"time"
)

// Event types published by the engine. They double as AMQP routing keys.
const (
	LeadCreated      = "lead.created"
	LeadStatusChange = "lead.status_changed"
	SessionFinished  = "session.finished"
)

// Event is one published domain event.
type Event struct {
	Type       string    `json:"type"`
	SessionID  string    `json:"session_id"`
	LeadID     string    `json:"lead_id,omitempty"`
	Company    string    `json:"company,omitempty"`
	Domain     string    `json:"domain,omitempty"`
	Status     string    `json:"status,omitempty"`
	Score      int       `json:"score,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers domain events. Publishing is best-effort: callers log failures
// and carry on.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// HealthChecker is implemented by publishers that hold a broker connection.
type HealthChecker interface {
	Healthy() bool
}

// Nop discards every event. It is the default when no broker is configured.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }
