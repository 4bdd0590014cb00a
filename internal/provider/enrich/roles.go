package enrich

import (
	"strings"
)

// Role categories understood by the people search. Anything else is passed through
// as a literal title filter.
const (
	RoleRecruiter      = "recruiter"
	RoleHiringManager  = "hiring_manager"
	RoleFounder        = "founder"
	RoleEngineering    = "engineering"
	RoleExecutive      = "executive"
	RoleOther          = "other"
	defaultRoleOrdinal = 99
)

var roleTitles = map[string][]string{
	RoleRecruiter:     {"recruiter", "talent acquisition", "technical recruiter", "head of talent", "people operations"},
	RoleHiringManager: {"engineering manager", "hiring manager", "head of engineering", "director of engineering"},
	RoleFounder:       {"founder", "co-founder", "owner"},
	RoleEngineering:   {"vp engineering", "vp of engineering", "cto", "chief technology officer", "tech lead"},
	RoleExecutive:     {"ceo", "chief executive officer", "coo", "president"},
}

// categoryOrder decides which category wins when a title matches several.
var categoryOrder = []string{RoleFounder, RoleRecruiter, RoleHiringManager, RoleEngineering, RoleExecutive}

// titlesForRoles expands role categories into the provider's title filter.
// Empty roles mean no title filter.
func titlesForRoles(roles []string) []string {
	seen := make(map[string]bool)
	var titles []string
	for _, role := range roles {
		role = strings.ToLower(strings.TrimSpace(role))
		expanded, ok := roleTitles[role]
		if !ok {
			expanded = []string{strings.ReplaceAll(role, "_", " ")}
		}
		for _, t := range expanded {
			if t != "" && !seen[t] {
				seen[t] = true
				titles = append(titles, t)
			}
		}
	}
	return titles
}

// Categorize assigns a role category to a job title.
func Categorize(title string) string {
	lower := strings.ToLower(title)
	if lower == "" {
		return RoleOther
	}
	for _, category := range categoryOrder {
		for _, fragment := range roleTitles[category] {
			if containsWord(lower, fragment) {
				return category
			}
		}
	}
	if strings.Contains(lower, "engineer") || strings.Contains(lower, "developer") {
		return RoleEngineering
	}
	return RoleOther
}

// matchesRoles reports whether a contact's category or title satisfies one of the requested roles.
func matchesRoles(category, title string, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	lower := strings.ToLower(title)
	for _, role := range roles {
		role = strings.ToLower(strings.TrimSpace(role))
		if role == category {
			return true
		}
		if _, known := roleTitles[role]; !known && strings.Contains(lower, strings.ReplaceAll(role, "_", " ")) {
			return true
		}
	}
	return false
}

func roleRank(category string, roles []string) int {
	for i, role := range roles {
		if strings.EqualFold(strings.TrimSpace(role), category) {
			return i
		}
	}
	return defaultRoleOrdinal
}

// containsWord matches fragment on word boundaries so "cto" does not match "director".
func containsWord(s, fragment string) bool {
	for idx := 0; ; {
		i := strings.Index(s[idx:], fragment)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(fragment)
		if (start == 0 || !isWordByte(s[start-1])) && (end == len(s) || !isWordByte(s[end])) {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}
