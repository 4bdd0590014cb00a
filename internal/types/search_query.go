// Package types provides the domain model shared by the lead engine: search queries,
// job postings, companies, contacts, leads and sessions.
package types

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultNumJobs is used when a query does not specify num_jobs.
const DefaultNumJobs = 10

// DefaultMaxResults is the provider-imposed ceiling on num_jobs unless configured otherwise.
const DefaultMaxResults = 100

// Company size buckets accepted in SearchQuery.CompanySizes.
const (
	SizeSmall = "small"
	SizeMid   = "mid"
	SizeLarge = "large"
)

// ErrInvalidQuery is returned for malformed or empty search queries.
// Field-level detail is available through errors.As on *QueryError.
var ErrInvalidQuery = errors.New("invalid query")

// FieldError describes one rejected field of a SearchQuery.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// QueryError collects every field problem found while validating a query.
type QueryError struct {
	Fields []FieldError
}

func (e *QueryError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return fmt.Sprintf("invalid query: %s", strings.Join(parts, "; "))
}

// Is makes errors.Is(err, ErrInvalidQuery) hold for every QueryError.
func (e *QueryError) Is(target error) bool {
	return target == ErrInvalidQuery
}

// SearchQuery is the input to one pipeline run.
type SearchQuery struct {
	SessionTitle string   `json:"session_title,omitempty"`
	JobTitles    []string `json:"job_titles" validate:"required,min=1,dive,required"`
	NumJobs      int      `json:"num_jobs,omitempty" validate:"gte=0"`
	Locations    []string `json:"locations,omitempty"`
	Industries   []string `json:"industries,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
	CompanySizes []string `json:"company_sizes,omitempty" validate:"dive,oneof=small mid large"`
	POCRoles     []string `json:"poc_roles,omitempty"`
}

var queryValidator = validator.New()

// Normalize trims whitespace, drops blank list entries and fills defaults.
// It returns a copy; the receiver is left untouched.
func (q SearchQuery) Normalize(now time.Time) SearchQuery {
	out := SearchQuery{
		SessionTitle: strings.TrimSpace(q.SessionTitle),
		JobTitles:    cleanList(q.JobTitles),
		NumJobs:      q.NumJobs,
		Locations:    cleanList(q.Locations),
		Industries:   cleanList(q.Industries),
		Keywords:     cleanList(q.Keywords),
		CompanySizes: lowerList(cleanList(q.CompanySizes)),
		POCRoles:     lowerList(cleanList(q.POCRoles)),
	}
	if out.NumJobs == 0 {
		out.NumJobs = DefaultNumJobs
	}
	if out.SessionTitle == "" && len(out.JobTitles) > 0 {
		out.SessionTitle = fmt.Sprintf("%s — %s", out.JobTitles[0], now.Format("Jan 2, 2006"))
	}
	return out
}

// Validate checks the query against maxResults, the provider's ceiling on num_jobs.
// A non-positive maxResults falls back to DefaultMaxResults.
func (q SearchQuery) Validate(maxResults int) error {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	var fields []FieldError
	if len(cleanList(q.JobTitles)) == 0 {
		fields = append(fields, FieldError{Field: "job_titles", Message: "at least one job title is required"})
	} else if err := queryValidator.Struct(q); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields = append(fields, FieldError{Field: jsonFieldName(fe.StructField()), Message: describeTag(fe)})
			}
		} else {
			fields = append(fields, FieldError{Field: "query", Message: err.Error()})
		}
	}

	if q.NumJobs < 1 || q.NumJobs > maxResults {
		fields = append(fields, FieldError{
			Field:   "num_jobs",
			Message: fmt.Sprintf("must be between 1 and %d", maxResults),
		})
	}

	if len(fields) > 0 {
		return &QueryError{Fields: fields}
	}
	return nil
}

// Clone returns a deep copy so a running pipeline cannot observe later edits.
func (q SearchQuery) Clone() SearchQuery {
	out := q
	out.JobTitles = append([]string(nil), q.JobTitles...)
	out.Locations = append([]string(nil), q.Locations...)
	out.Industries = append([]string(nil), q.Industries...)
	out.Keywords = append([]string(nil), q.Keywords...)
	out.CompanySizes = append([]string(nil), q.CompanySizes...)
	out.POCRoles = append([]string(nil), q.POCRoles...)
	return out
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func lowerList(in []string) []string {
	for i := range in {
		in[i] = strings.ToLower(in[i])
	}
	return in
}

func jsonFieldName(structField string) string {
	name, _, _ := strings.Cut(structField, "[")
	switch name {
	case "JobTitles":
		return "job_titles"
	case "NumJobs":
		return "num_jobs"
	case "CompanySizes":
		return "company_sizes"
	default:
		return strings.ToLower(name)
	}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
