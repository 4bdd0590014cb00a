// Package server provides the HTTP API for the lead engine: the streaming generate
// endpoint, session and lead queries, and the lead actions.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/lead-engine/internal/db"
	"github.com/jonathan/lead-engine/internal/llm"
	"github.com/jonathan/lead-engine/internal/schemas"
	"github.com/jonathan/lead-engine/internal/types"
)

// Error codes written in the "error" field of error responses.
const (
	CodeInvalidQuery      = "invalid_query"
	CodeValidation        = "validation_error"
	CodeNotFound          = "not_found"
	CodeInvalidTransition = "invalid_transition"
	CodeNoRecipient       = "no_recipient"
	CodeSendFailure       = "send_failure"
	CodeRunLimit          = "run_limit_reached"
	CodeUnavailable       = "unavailable"
	CodeUpstream          = "upstream_error"
	CodeRateLimited       = "rate_limit_exceeded"
	CodeUnauthorized      = "unauthorized"
	CodeStreaming         = "streaming_unsupported"
	CodeInternal          = "internal_error"
)

// ErrRewriteUnavailable is returned by draft rewrites when no LLM is configured.
var ErrRewriteUnavailable = errors.New("draft rewriting is not configured")

// ErrSendFailure reports that the mail provider rejected or failed a send.
// The lead has been moved to failed by the time it is returned.
type ErrSendFailure struct {
	LeadID uuid.UUID
	Cause  error
}

func (e *ErrSendFailure) Error() string {
	return fmt.Sprintf("failed to send email for lead %s: %v", e.LeadID, e.Cause)
}

func (e *ErrSendFailure) Unwrap() error {
	return e.Cause
}

// ErrNoRecipient means the lead has no contact with an email and no override was given.
type ErrNoRecipient struct {
	LeadID uuid.UUID
}

func (e *ErrNoRecipient) Error() string {
	return fmt.Sprintf("lead %s has no contact with an email address", e.LeadID)
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		sendErr      *ErrSendFailure
		recipientErr *ErrNoRecipient
		validErr     *ErrValidation
		schemaErr    *schemas.ValidationError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &sendErr):
		return http.StatusBadGateway
	case errors.Is(err, types.ErrInvalidQuery), errors.As(err, &validErr), errors.As(err, &schemaErr):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrInvalidTransition):
		return http.StatusConflict
	case errors.As(err, &recipientErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrRewriteUnavailable), errors.Is(err, ErrMailUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, llm.ErrEmptyRewrite):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorCode returns the error code reported for err.
func errorCode(err error) string {
	var (
		sendErr      *ErrSendFailure
		recipientErr *ErrNoRecipient
	)
	switch {
	case errors.As(err, &sendErr):
		return CodeSendFailure
	case errors.Is(err, types.ErrInvalidQuery):
		return CodeInvalidQuery
	case errors.Is(err, db.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, types.ErrInvalidTransition):
		return CodeInvalidTransition
	case errors.As(err, &recipientErr):
		return CodeNoRecipient
	case errors.Is(err, ErrRewriteUnavailable), errors.Is(err, ErrMailUnavailable):
		return CodeUnavailable
	case errors.Is(err, llm.ErrEmptyRewrite):
		return CodeUpstream
	}
	switch HTTPStatus(err) {
	case http.StatusBadRequest:
		return CodeValidation
	case http.StatusBadGateway:
		return CodeUpstream
	default:
		return CodeInternal
	}
}
