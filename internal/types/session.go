package types

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus tracks how the run that produced a session ended.
type SessionStatus string

// Session statuses.
const (
	SessionStatusRunning       SessionStatus = "running"
	SessionStatusCompleted     SessionStatus = "completed"
	SessionStatusQuotaExceeded SessionStatus = "quota_exceeded"
	SessionStatusFailed        SessionStatus = "failed"
)

// Session groups the leads produced by one SearchQuery execution.
// TotalLeads and TotalContacts are derived from the lead rows and only change on recompute.
type Session struct {
	ID            uuid.UUID     `json:"id"`
	Title         string        `json:"title"`
	Query         SearchQuery   `json:"query"`
	Status        SessionStatus `json:"status"`
	TotalLeads    int           `json:"total_leads"`
	TotalContacts int           `json:"total_contacts"`
	CreatedAt     time.Time     `json:"created_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
}

// SessionDetail is a session together with its leads in creation order.
type SessionDetail struct {
	Session
	Leads []Lead `json:"leads"`
}
