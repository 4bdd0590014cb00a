package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LeadStatus is the lifecycle state of a lead.
type LeadStatus string

// Lead statuses. skipped and failed are terminal apart from the explicit resend path.
const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusReady     LeadStatus = "ready"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusReplied   LeadStatus = "replied"
	LeadStatusSkipped   LeadStatus = "skipped"
	LeadStatusFailed    LeadStatus = "failed"
)

// ErrInvalidTransition is returned when a lead action does not apply to its current status.
var ErrInvalidTransition = errors.New("invalid lead status transition")

var leadTransitions = map[LeadStatus][]LeadStatus{
	LeadStatusNew:       {LeadStatusReady, LeadStatusSkipped},
	LeadStatusReady:     {LeadStatusContacted, LeadStatusSkipped, LeadStatusFailed},
	LeadStatusFailed:    {LeadStatusContacted, LeadStatusFailed},
	LeadStatusContacted: {LeadStatusReplied},
}

// Valid reports whether s is a known status.
func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusNew, LeadStatusReady, LeadStatusContacted,
		LeadStatusReplied, LeadStatusSkipped, LeadStatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether a lead may move from s to next.
func (s LeadStatus) CanTransition(next LeadStatus) bool {
	for _, allowed := range leadTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition returns next, or an error wrapping ErrInvalidTransition.
func (s LeadStatus) Transition(next LeadStatus) (LeadStatus, error) {
	if !s.CanTransition(next) {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}
	return next, nil
}

// Draft is the outreach email drafted for a lead.
type Draft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Lead is one persisted (company, job opening, contacts) association.
// Company and Job are snapshots taken when the lead was created.
type Lead struct {
	ID          uuid.UUID  `json:"id"`
	SessionID   uuid.UUID  `json:"session_id"`
	Company     Company    `json:"company"`
	Job         JobPosting `json:"job_opening"`
	Contacts    []Contact  `json:"contacts"`
	Draft       Draft      `json:"draft"`
	Score       int        `json:"score"`
	Status      LeadStatus `json:"status"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ContactedAt *time.Time `json:"contacted_at,omitempty"`
}

// PrimaryContact returns the first contact with a known email.
func (l *Lead) PrimaryContact() (Contact, bool) {
	for _, c := range l.Contacts {
		if c.HasEmail() {
			return c, true
		}
	}
	return Contact{}, false
}
