package ratelimit

import (
	"net/http"
	"strings"
)

// unlimited is returned for probe and scrape paths.
var unlimited = EndpointConfig{}

// MatchEndpoint returns the configuration for a request, or nil when none applies.
// Patterns are matched segment by segment; a "{name}" segment matches any single
// segment, so "/api/leads/{id}/send" matches "/api/leads/7f3a.../send". A pattern
// ending in "/" also matches everything below it. When several patterns match, the
// one with the most literal segments wins.
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if method == http.MethodGet && (path == "/health" || path == "/metrics") {
		cfg := unlimited
		return &cfg
	}

	reqSegments := splitPath(path)
	var (
		best      *EndpointConfig
		bestScore = -1
	)
	for i := range configs {
		cfg := &configs[i]
		if cfg.Method != method {
			continue
		}
		score, ok := matchPattern(cfg.Path, reqSegments)
		if ok && score > bestScore {
			best, bestScore = cfg, score
		}
	}
	return best
}

// matchPattern reports whether pattern matches the request segments and how many
// literal segments it matched. An exact match outranks a prefix match of equal length.
func matchPattern(pattern string, reqSegments []string) (int, bool) {
	prefix := strings.HasSuffix(pattern, "/")
	patSegments := splitPath(pattern)

	if len(reqSegments) < len(patSegments) || (!prefix && len(reqSegments) != len(patSegments)) {
		return 0, false
	}

	score := 0
	for i, seg := range patSegments {
		if isWildcard(seg) {
			continue
		}
		if seg != reqSegments[i] {
			return 0, false
		}
		score += 2
	}
	if !prefix {
		score++
	}
	return score, true
}

func splitPath(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
}

func isWildcard(segment string) bool {
	return strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}")
}
