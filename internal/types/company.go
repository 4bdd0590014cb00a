package types

import (
	"net/url"
	"slices"
	"strings"
	"time"
)

// JobPosting is one discovered job listing. It only lives for the duration of a run;
// leads keep a snapshot of it.
type JobPosting struct {
	Title       string     `json:"title"`
	Company     string     `json:"company"`
	Platform    string     `json:"platform,omitempty"`
	URL         string     `json:"url,omitempty"`
	Domain      string     `json:"domain,omitempty"`
	Location    string     `json:"location,omitempty"`
	Description string     `json:"description,omitempty"`
	PostedAt    *time.Time `json:"posted_at,omitempty"`
}

// Company is the enrichment result for a domain.
type Company struct {
	Name          string   `json:"name"`
	Domain        string   `json:"domain"`
	Industry      string   `json:"industry,omitempty"`
	EmployeeCount int      `json:"employee_count,omitempty"`
	SizeBucket    string   `json:"size_bucket,omitempty"`
	Location      string   `json:"location,omitempty"`
	Revenue       string   `json:"revenue,omitempty"`
	TechStack     []string `json:"tech_stack,omitempty"`
	LinkedInURL   string   `json:"linkedin_url,omitempty"`
}

// SizeBucketFor maps an employee count to small, mid or large.
// Zero means unknown and yields an empty bucket.
func SizeBucketFor(employees int) string {
	switch {
	case employees <= 0:
		return ""
	case employees < 50:
		return SizeSmall
	case employees < 1000:
		return SizeMid
	default:
		return SizeLarge
	}
}

// MatchesFilters reports whether the company passes the size and industry filters of q.
// Unknown size or industry never passes a non-empty filter.
func (c Company) MatchesFilters(q SearchQuery) bool {
	if len(q.CompanySizes) > 0 {
		bucket := c.SizeBucket
		if bucket == "" {
			bucket = SizeBucketFor(c.EmployeeCount)
		}
		if !slices.Contains(q.CompanySizes, bucket) {
			return false
		}
	}
	if len(q.Industries) > 0 {
		industry := strings.ToLower(c.Industry)
		if industry == "" {
			return false
		}
		matched := false
		for _, want := range q.Industries {
			if strings.Contains(industry, strings.ToLower(want)) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// Contact is a point-of-contact at a company. Email is nil while the provider withholds it.
type Contact struct {
	Name         string  `json:"name"`
	Title        string  `json:"title,omitempty"`
	Email        *string `json:"email"`
	EmailStatus  string  `json:"email_status,omitempty"`
	RoleCategory string  `json:"role_category,omitempty"`
	Phone        string  `json:"phone,omitempty"`
	LinkedInURL  string  `json:"linkedin_url,omitempty"`
	ProviderID   string  `json:"provider_id,omitempty"`
}

// HasEmail reports whether a usable email address is known.
func (c Contact) HasEmail() bool {
	return c.Email != nil && strings.TrimSpace(*c.Email) != ""
}

// DomainFromURL extracts a bare registrable-looking host from a URL or host string.
// It strips scheme, "www." and any port. Returns "" for unparseable input.
func DomainFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}
