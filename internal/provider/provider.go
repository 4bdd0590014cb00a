// Package provider defines the contracts of the third-party data providers the lead engine
// talks to, and the error taxonomy their adapters report through.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/lead-engine/internal/types"
)

// Sentinel errors adapters wrap so callers can branch with errors.Is.
var (
	// ErrQuotaExceeded means the provider refused the call for rate or credit exhaustion.
	ErrQuotaExceeded = errors.New("provider quota exceeded")
	// ErrNotFound means the provider has no record for the requested entity.
	ErrNotFound = errors.New("provider has no record")
)

// Error describes a failed provider call.
type Error struct {
	Provider   string
	Op         string
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s failed", e.Provider, e.Op)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsQuota reports whether err carries ErrQuotaExceeded.
func IsQuota(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}

// IsNotFound reports whether err carries ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// JobSearcher finds job postings for a query.
type JobSearcher interface {
	SearchJobs(ctx context.Context, q types.SearchQuery) ([]types.JobPosting, error)
}

// CompanyEnricher resolves a domain into company details.
type CompanyEnricher interface {
	EnrichCompany(ctx context.Context, domain string) (*types.Company, error)
}

// ContactFinder discovers points of contact at a domain, optionally restricted to role categories.
type ContactFinder interface {
	FindContacts(ctx context.Context, domain string, roles []string) ([]types.Contact, error)
}

// Message is one outbound email.
type Message struct {
	FromEmail string
	FromName  string
	To        string
	ToName    string
	Subject   string
	Body      string
	ReplyTo   string
}

// Mailer delivers outbound email and returns the provider's message id when it has one.
type Mailer interface {
	Send(ctx context.Context, msg Message) (string, error)
}
