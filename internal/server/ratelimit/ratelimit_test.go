package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable clock for deterministic refill.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(t *testing.T, config *Config) (*Limiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	limiter := NewLimiter(config)
	limiter.now = clock.Now
	t.Cleanup(limiter.Stop)
	return limiter, clock
}

func TestLimiter_Allow(t *testing.T) {
	limiter, _ := newTestLimiter(t, &Config{
		Enabled:       true,
		DefaultLimit:  10,
		DefaultWindow: time.Minute,
	})

	for i := 0; i < 10; i++ {
		allowed, info := limiter.Allow("127.0.0.1", "/api/sessions", "GET")
		require.Truef(t, allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 10, info.Limit)
		assert.Equal(t, 10-i-1, info.Remaining)
	}

	allowed, info := limiter.Allow("127.0.0.1", "/api/sessions", "GET")
	assert.False(t, allowed)
	assert.Equal(t, 0, info.Remaining)
	assert.Greater(t, info.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, info.RetryAfter, 6*time.Second+time.Millisecond)
}

func TestLimiter_Refill(t *testing.T) {
	limiter, clock := newTestLimiter(t, &Config{
		Enabled:       true,
		DefaultLimit:  60,
		DefaultWindow: time.Minute,
	})

	for i := 0; i < 60; i++ {
		limiter.Allow("c", "/x", "GET")
	}
	allowed, _ := limiter.Allow("c", "/x", "GET")
	require.False(t, allowed)

	clock.Advance(time.Second)
	allowed, _ = limiter.Allow("c", "/x", "GET")
	assert.True(t, allowed, "one token refills per second")

	allowed, _ = limiter.Allow("c", "/x", "GET")
	assert.False(t, allowed)
}

func TestLimiter_ResetTime(t *testing.T) {
	limiter, clock := newTestLimiter(t, &Config{
		Enabled:       true,
		DefaultLimit:  10,
		DefaultWindow: 10 * time.Second,
	})

	for i := 0; i < 5; i++ {
		limiter.Allow("c", "/x", "GET")
	}
	_, info := limiter.Allow("c", "/x", "GET")
	assert.Equal(t, 4, info.Remaining)
	assert.Equal(t, clock.Now().Add(6*time.Second), info.ResetTime)
}

func TestLimiter_ExemptAndBlocked(t *testing.T) {
	limiter, _ := newTestLimiter(t, &Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Minute,
		Exempt:        map[string]bool{"127.0.0.1": true},
		Blocked:       map[string]bool{"192.168.1.1": true},
	})

	for i := 0; i < 100; i++ {
		allowed, info := limiter.Allow("127.0.0.1", "/x", "GET")
		require.True(t, allowed)
		assert.Equal(t, 0, info.Limit)
	}

	allowed, _ := limiter.Allow("192.168.1.1", "/x", "GET")
	assert.False(t, allowed)
}

func TestLimiter_Disabled(t *testing.T) {
	limiter, _ := newTestLimiter(t, &Config{Enabled: false})

	for i := 0; i < 100; i++ {
		allowed, info := limiter.Allow("127.0.0.1", "/x", "GET")
		require.True(t, allowed)
		assert.Equal(t, 0, info.Limit)
	}
}

func TestLimiter_EndpointSpecific(t *testing.T) {
	limiter, _ := newTestLimiter(t, &Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		EndpointConfigs: DefaultEndpointConfigs(),
	})

	for i := 0; i < 3; i++ {
		allowed, info := limiter.Allow("c", "/api/lead-engine/generate", "POST")
		require.Truef(t, allowed, "run %d should fit the burst", i+1)
		assert.Equal(t, 20, info.Limit)
	}
	allowed, _ := limiter.Allow("c", "/api/lead-engine/generate", "POST")
	assert.False(t, allowed, "burst of 3 exhausted")

	allowed, info := limiter.Allow("c", "/api/sessions", "GET")
	assert.True(t, allowed)
	assert.Equal(t, 1000, info.Limit)

	allowed, info = limiter.Allow("c", "/health", "GET")
	assert.True(t, allowed)
	assert.Equal(t, 0, info.Limit)
}

func TestLimiter_PatternSharesBucketAcrossIDs(t *testing.T) {
	limiter, _ := newTestLimiter(t, &Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		EndpointConfigs: DefaultEndpointConfigs(),
	})

	for i := 0; i < 5; i++ {
		allowed, _ := limiter.Allow("c", fmt.Sprintf("/api/leads/lead-%d/send", i), "POST")
		require.Truef(t, allowed, "send %d should fit the burst", i+1)
	}
	allowed, _ := limiter.Allow("c", "/api/leads/another-lead/send", "POST")
	assert.False(t, allowed, "sends to different leads draw from one budget")

	allowed, _ = limiter.Allow("c", "/api/leads/lead-0/skip", "POST")
	assert.True(t, allowed, "other lead actions have their own budget")
}

func TestLimiter_ClientsAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Minute})

	allowed, _ := limiter.Allow("a", "/x", "GET")
	assert.True(t, allowed)
	allowed, _ = limiter.Allow("a", "/x", "GET")
	assert.False(t, allowed)
	allowed, _ = limiter.Allow("b", "/x", "GET")
	assert.True(t, allowed)
}

func TestLimiter_Concurrent(t *testing.T) {
	limiter, _ := newTestLimiter(t, &Config{
		Enabled:       true,
		DefaultLimit:  100,
		DefaultWindow: time.Minute,
	})

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if allowed, _ := limiter.Allow("127.0.0.1", "/x", "GET"); allowed {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, allowedCount)
}

func TestLimiter_CleanupDropsIdleBuckets(t *testing.T) {
	limiter, clock := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 10, DefaultWindow: time.Minute})

	for i := 0; i < 10; i++ {
		limiter.Allow(fmt.Sprintf("127.0.0.%d", i+1), "/x", "GET")
	}
	clock.Advance(2 * time.Hour)
	for i := 0; i < 5; i++ {
		limiter.Allow(fmt.Sprintf("127.0.0.%d", i+1), "/x", "GET")
	}

	limiter.sweep()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Len(t, limiter.buckets, 5)
}

func TestNewLimiter_NilConfig(t *testing.T) {
	limiter, _ := newTestLimiter(t, nil)

	allowed, info := limiter.Allow("127.0.0.1", "/x", "GET")
	assert.True(t, allowed)
	assert.Equal(t, 1000, info.Limit)
}

func TestLimiter_StopIsIdempotent(t *testing.T) {
	limiter := NewLimiter(&Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Second, CleanupInterval: time.Millisecond})
	limiter.Stop()
	limiter.Stop()
}

func TestMatchEndpoint(t *testing.T) {
	configs := DefaultEndpointConfigs()

	tests := []struct {
		name     string
		path     string
		method   string
		wantPath string
	}{
		{"generate", "/api/lead-engine/generate", "POST", "/api/lead-engine/generate"},
		{"send", "/api/leads/7f3a/send", "POST", "/api/leads/{id}/send"},
		{"rewrite", "/api/leads/7f3a/draft/rewrite", "POST", "/api/leads/{id}/draft/rewrite"},
		{"skip falls back to prefix", "/api/leads/7f3a/skip", "POST", "/api/leads/"},
		{"draft edit", "/api/leads/7f3a/draft", "PUT", "/api/leads/"},
		{"session delete", "/api/sessions/7f3a", "DELETE", "/api/sessions/{id}"},
		{"wildcard needs a segment", "/api/sessions", "DELETE", ""},
		{"no nested match for exact pattern", "/api/sessions/7f3a/leads", "DELETE", ""},
		{"read", "/api/leads/7f3a", "GET", ""},
		{"method mismatch", "/api/lead-engine/generate", "GET", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchEndpoint(tt.path, tt.method, configs)
			if tt.wantPath == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantPath, got.Path)
		})
	}

	assert.Equal(t, 0, MatchEndpoint("/metrics", "GET", configs).Limit)
	assert.Equal(t, 0, MatchEndpoint("/health", "GET", configs).Limit)
}

func TestLoadConfigFrom(t *testing.T) {
	env := map[string]string{
		"RATE_LIMIT_DEFAULT_LIMIT":     "42",
		"RATE_LIMIT_DEFAULT_WINDOW":    "30s",
		"RATE_LIMIT_EXEMPT_IPS":        "10.0.0.1, 10.0.0.2,",
		"RATE_LIMIT_GENERATE_PER_HOUR": "5",
		"RATE_LIMIT_SEND_PER_MINUTE":   "not-a-number",
	}
	getenv := func(key string) string { return env[key] }

	config := LoadConfigFrom(getenv)
	assert.True(t, config.Enabled)
	assert.Equal(t, 42, config.DefaultLimit)
	assert.Equal(t, 30*time.Second, config.DefaultWindow)
	assert.Equal(t, 5*time.Minute, config.CleanupInterval)
	assert.Equal(t, map[string]bool{"10.0.0.1": true, "10.0.0.2": true}, config.Exempt)
	assert.Empty(t, config.Blocked)

	limits := map[string]int{}
	for _, ep := range config.EndpointConfigs {
		limits[ep.Method+" "+ep.Path] = ep.Limit
	}
	assert.Equal(t, 5, limits["POST /api/lead-engine/generate"])
	assert.Equal(t, 30, limits["POST /api/leads/{id}/send"], "unparseable values keep the default")

	env["RATE_LIMIT_ENABLED"] = "false"
	assert.False(t, LoadConfigFrom(getenv).Enabled)
}

func TestLoadConfig_ReadsEnvironment(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("RATE_LIMIT_DEFAULT_LIMIT", "7")

	assert.Equal(t, 7, LoadConfig().DefaultLimit)
}
