package provider

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jonathan/lead-engine/internal/fetch"
)

// quotaPhrases are fragments providers put in error bodies when credits run out,
// sometimes alongside a plain 400 or 403.
var quotaPhrases = []string{
	"run out of searches",
	"insufficient credits",
	"credits exhausted",
	"quota exceeded",
	"rate limit",
	"too many requests",
}

// Wrap converts a fetch failure into a *Error, attaching ErrQuotaExceeded or ErrNotFound
// when the response indicates either. A nil err stays nil.
func Wrap(providerName, op string, err error) error {
	if err == nil {
		return nil
	}

	perr := &Error{Provider: providerName, Op: op, Cause: err}

	var ferr *fetch.Error
	if !errors.As(err, &ferr) {
		return perr
	}
	perr.StatusCode = ferr.StatusCode
	perr.Message = ferr.Message

	switch {
	case ferr.StatusCode == http.StatusTooManyRequests, ferr.StatusCode == http.StatusPaymentRequired:
		perr.Cause = errors.Join(ErrQuotaExceeded, err)
	case ferr.StatusCode == http.StatusNotFound:
		perr.Cause = errors.Join(ErrNotFound, err)
	case ferr.StatusCode >= 400 && mentionsQuota(ferr.Body):
		perr.Cause = errors.Join(ErrQuotaExceeded, err)
	}
	return perr
}

// QuotaError builds a quota failure reported in-band by a 2xx response body.
func QuotaError(providerName, op, message string) error {
	return &Error{Provider: providerName, Op: op, Message: message, Cause: ErrQuotaExceeded}
}

// NotFoundError builds a not-found failure for an empty provider answer.
func NotFoundError(providerName, op, message string) error {
	return &Error{Provider: providerName, Op: op, Message: message, Cause: ErrNotFound}
}

func mentionsQuota(body string) bool {
	lower := strings.ToLower(body)
	for _, phrase := range quotaPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// MentionsQuota reports whether a provider message reads like credit or rate exhaustion.
func MentionsQuota(message string) bool {
	return mentionsQuota(message)
}
