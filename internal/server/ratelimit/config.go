package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Path pattern; "{id}" matches one segment, a trailing "/" matches a subtree
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// LoadConfig loads rate limiting configuration from the process environment.
func LoadConfig() *Config {
	return LoadConfigFrom(os.Getenv)
}

// LoadConfigFrom loads rate limiting configuration through getenv.
//
// RATE_LIMIT_ENABLED, RATE_LIMIT_DEFAULT_LIMIT, RATE_LIMIT_DEFAULT_WINDOW,
// RATE_LIMIT_CLEANUP_INTERVAL, RATE_LIMIT_EXEMPT_IPS and RATE_LIMIT_BLOCKED_IPS configure
// the limiter; RATE_LIMIT_GENERATE_PER_HOUR and RATE_LIMIT_SEND_PER_MINUTE tune the
// endpoints that spend provider credits.
func LoadConfigFrom(getenv func(string) string) *Config {
	env := envReader(getenv)
	if !env.bool("RATE_LIMIT_ENABLED", true) {
		return &Config{Enabled: false}
	}

	endpoints := DefaultEndpointConfigs()
	for i := range endpoints {
		switch endpoints[i].Path {
		case generatePath:
			endpoints[i].Limit = env.int("RATE_LIMIT_GENERATE_PER_HOUR", endpoints[i].Limit)
		case sendPath:
			endpoints[i].Limit = env.int("RATE_LIMIT_SEND_PER_MINUTE", endpoints[i].Limit)
		}
	}

	return &Config{
		Enabled:         true,
		DefaultLimit:    env.int("RATE_LIMIT_DEFAULT_LIMIT", 1000),
		DefaultWindow:   env.duration("RATE_LIMIT_DEFAULT_WINDOW", time.Minute),
		CleanupInterval: env.duration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		Exempt:          parseIPList(getenv("RATE_LIMIT_EXEMPT_IPS")),
		Blocked:         parseIPList(getenv("RATE_LIMIT_BLOCKED_IPS")),
		EndpointConfigs: endpoints,
	}
}

const (
	generatePath = "/api/lead-engine/generate"
	sendPath     = "/api/leads/{id}/send"
	rewritePath  = "/api/leads/{id}/draft/rewrite"
)

// DefaultEndpointConfigs returns the default endpoint-specific configurations.
// Endpoints that call paid providers get tight limits; reads use the default.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		{Path: generatePath, Method: "POST", Limit: 20, Window: time.Hour, Burst: 3},
		{Path: sendPath, Method: "POST", Limit: 30, Window: time.Minute, Burst: 5},
		{Path: rewritePath, Method: "POST", Limit: 30, Window: time.Minute, Burst: 5},

		// Skip, replied and draft edits only touch the store.
		{Path: "/api/leads/", Method: "POST", Limit: 120, Window: time.Minute, Burst: 20},
		{Path: "/api/leads/", Method: "PUT", Limit: 120, Window: time.Minute, Burst: 20},
		{Path: "/api/sessions/{id}", Method: "DELETE", Limit: 60, Window: time.Minute, Burst: 10},
	}
}

type envReader func(string) string

func (e envReader) int(key string, def int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(e(key))); err == nil {
		return v
	}
	return def
}

func (e envReader) bool(key string, def bool) bool {
	if v, err := strconv.ParseBool(strings.TrimSpace(e(key))); err == nil {
		return v
	}
	return def
}

func (e envReader) duration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(strings.TrimSpace(e(key))); err == nil {
		return v
	}
	return def
}

// parseIPList parses a comma-separated list of IP addresses into a set.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
