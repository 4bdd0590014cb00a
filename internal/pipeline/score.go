package pipeline

import (
	"slices"
	"time"

	"github.com/jonathan/lead-engine/internal/types"
)

// Score weights. They add up to 100.
const (
	weightEmail       = 35
	weightSecondEmail = 10
	weightRole        = 20
	weightSize        = 15
	weightRecency     = 15
	weightIndustry    = 5
)

// Score rates how promising a lead is, from 0 to 100. It is a pure function of its
// inputs: reachable contacts, role and size filter matches, and posting freshness.
func Score(q types.SearchQuery, company types.Company, job types.JobPosting, contacts []types.Contact, now time.Time) int {
	score := 0

	emails := 0
	for _, c := range contacts {
		if c.HasEmail() {
			emails++
		}
	}
	if emails > 0 {
		score += weightEmail
	}
	if emails > 1 {
		score += weightSecondEmail
	}

	if roleMatches(q.POCRoles, contacts) {
		score += weightRole
	}

	bucket := company.SizeBucket
	if bucket == "" {
		bucket = types.SizeBucketFor(company.EmployeeCount)
	}
	switch {
	case len(q.CompanySizes) > 0 && slices.Contains(q.CompanySizes, bucket):
		score += weightSize
	case len(q.CompanySizes) == 0 && bucket != "":
		score += weightSize / 2
	}

	if job.PostedAt != nil {
		age := now.Sub(*job.PostedAt)
		switch {
		case age <= 7*24*time.Hour:
			score += weightRecency
		case age <= 30*24*time.Hour:
			score += weightRecency / 2
		}
	}

	if company.Industry != "" {
		score += weightIndustry
	}

	return min(score, 100)
}

// roleMatches is true when a contact falls in a requested role category, or, with no
// role filter, when any contact has a recognised category.
func roleMatches(roles []string, contacts []types.Contact) bool {
	for _, c := range contacts {
		if len(roles) == 0 {
			if c.RoleCategory != "" && c.RoleCategory != "other" {
				return true
			}
			continue
		}
		if slices.Contains(roles, c.RoleCategory) {
			return true
		}
	}
	return false
}
