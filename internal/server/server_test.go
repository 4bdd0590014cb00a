package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/lead-engine/internal/config"
	"github.com/jonathan/lead-engine/internal/notify"
	"github.com/jonathan/lead-engine/internal/pipeline"
	"github.com/jonathan/lead-engine/internal/provider"
	"github.com/jonathan/lead-engine/internal/server/ratelimit"
	"github.com/jonathan/lead-engine/internal/types"
)

const generatePath = "/api/lead-engine/generate"

func TestGenerate_StreamsNDJSONAndPersists(t *testing.T) {
	env := newTestEnv(t)
	env.enrich.errs["globex.com"] = provider.NotFoundError("enrich", "company", "no record")

	w := env.do(t, http.MethodPost, generatePath, map[string]any{
		"job_titles": []string{"Backend Engineer"},
		"num_jobs":   3,
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, ContentTypeNDJSON, w.Header().Get("Content-Type"))
	sessionID, err := uuid.Parse(w.Header().Get("X-Session-ID"))
	require.NoError(t, err)

	events := decodeEvents(t, w.Body.Bytes())
	require.NotEmpty(t, events)
	complete, ok := events[len(events)-1].(pipeline.Complete)
	require.True(t, ok, "last event should be complete, got %T", events[len(events)-1])
	assert.Equal(t, 100, complete.Progress)
	assert.Equal(t, 2, complete.Summary.TotalGenerated)
	assert.Equal(t, 1, complete.Summary.Skipped)

	var streamed []types.Lead
	last := 0
	for _, ev := range events {
		assert.GreaterOrEqual(t, ev.ProgressPercent(), last)
		last = ev.ProgressPercent()
		if le, ok := ev.(pipeline.LeadEvent); ok {
			streamed = append(streamed, le.Lead)
		}
	}

	detail, err := env.store.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, types.SessionStatusCompleted, detail.Status)
	assert.NotNil(t, detail.CompletedAt)
	assert.Equal(t, 2, detail.TotalLeads)
	assert.Equal(t, 4, detail.TotalContacts)
	assert.True(t, strings.HasPrefix(detail.Title, "Backend Engineer"), detail.Title)

	require.Len(t, detail.Leads, len(streamed))
	for i, lead := range detail.Leads {
		assert.Equal(t, streamed[i].ID, lead.ID)
		assert.Equal(t, streamed[i].Company.Domain, lead.Company.Domain)
		assert.Equal(t, streamed[i].Draft, lead.Draft)
		assert.Equal(t, types.LeadStatusReady, lead.Status)
	}

	finished := env.publisher.ofType(notify.SessionFinished)
	require.Len(t, finished, 1)
	assert.Equal(t, sessionID.String(), finished[0].SessionID)
	assert.Equal(t, string(types.SessionStatusCompleted), finished[0].Status)
}

func TestGenerate_SSEFraming(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, generatePath, strings.NewReader(`{"job_titles": ["SRE"], "num_jobs": 1}`))
	req.Header.Set("Accept", "text/event-stream")
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ContentTypeSSE, w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, "event: status\ndata: {")
	assert.Contains(t, body, "event: lead\ndata: {")
	assert.Contains(t, body, "event: complete\ndata: {")

	events := decodeEvents(t, w.Body.Bytes())
	_, ok := events[len(events)-1].(pipeline.Complete)
	assert.True(t, ok)
}

func TestGenerate_InvalidQuery(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{name: "empty titles", body: `{"job_titles": []}`, wantField: "job_titles"},
		{name: "blank titles", body: `{"job_titles": ["  "]}`, wantField: "job_titles"},
		{name: "num_jobs above ceiling", body: `{"job_titles": ["SRE"], "num_jobs": 101}`, wantField: "num_jobs"},
		{name: "negative num_jobs", body: `{"job_titles": ["SRE"], "num_jobs": -3}`, wantField: "num_jobs"},
		{name: "unknown size", body: `{"job_titles": ["SRE"], "company_sizes": ["giant"]}`, wantField: "company_sizes"},
		{name: "size wrong type", body: `{"job_titles": ["SRE"], "company_sizes": [3]}`, wantField: "company_sizes.0"},
		{name: "not json", body: `{"job_titles": [`, wantField: "(root)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			w := env.do(t, http.MethodPost, generatePath, tt.body)

			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			body := decodeBody[errorBody](t, w)
			assert.Equal(t, CodeInvalidQuery, body.Error)
			fields := make([]string, 0, len(body.Fields))
			for _, f := range body.Fields {
				fields = append(fields, f.Field)
			}
			assert.Contains(t, fields, tt.wantField)

			sessions, err := env.store.ListSessions(context.Background(), 10)
			require.NoError(t, err)
			assert.Empty(t, sessions, "no session is created for a rejected query")
		})
	}
}

func TestGenerate_ProviderCeiling(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.MaxResults = 5 })

	w := env.do(t, http.MethodPost, generatePath, `{"job_titles": ["SRE"], "num_jobs": 6}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, generatePath, `{"job_titles": ["SRE"], "num_jobs": 5}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGenerate_CompanySizesIgnoreCase(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, generatePath, `{"job_titles": ["SRE"], "company_sizes": [" Small ", "LARGE"]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	sessions, err := env.store.ListSessions(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, []string{"small", "large"}, sessions[0].Query.CompanySizes)
}

func TestGenerate_RunLimit(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.MaxConcurrentRuns = 1 })
	require.True(t, env.server.runs.TryAcquire(1))

	w := env.do(t, http.MethodPost, generatePath, `{"job_titles": ["SRE"]}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, CodeRunLimit, decodeBody[errorBody](t, w).Error)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	env.server.runs.Release(1)
	w = env.do(t, http.MethodPost, generatePath, `{"job_titles": ["SRE"]}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGenerate_NoFlusher(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, generatePath, strings.NewReader(`{"job_titles": ["SRE"]}`))
	w := &noFlushWriter{}
	env.server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.status)
	assert.Contains(t, w.body.String(), CodeStreaming)

	sessions, err := env.store.ListSessions(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestGenerate_FinalSessionStatus(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(env *testEnv)
		want      types.SessionStatus
		wantLast  string
		wantLeads int
	}{
		{
			name:     "zero postings",
			setup:    func(env *testEnv) { env.search.postings = nil },
			want:     types.SessionStatusCompleted,
			wantLast: pipeline.TypeComplete,
		},
		{
			name:     "search quota",
			setup:    func(env *testEnv) { env.search.err = provider.QuotaError("search", "jobs", "out of credits") },
			want:     types.SessionStatusQuotaExceeded,
			wantLast: pipeline.TypeComplete,
		},
		{
			name: "quota mid-run keeps earlier leads",
			setup: func(env *testEnv) {
				env.enrich.errs["globex.com"] = provider.QuotaError("enrich", "company", "credits exhausted")
			},
			want:      types.SessionStatusQuotaExceeded,
			wantLast:  pipeline.TypeComplete,
			wantLeads: 1,
		},
		{
			name:     "search failure",
			setup:    func(env *testEnv) { env.search.err = errBoom },
			want:     types.SessionStatusFailed,
			wantLast: pipeline.TypeError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			tt.setup(env)

			w := env.do(t, http.MethodPost, generatePath, `{"job_titles": ["SRE"], "num_jobs": 3}`)
			require.Equal(t, http.StatusOK, w.Code, "failures after validation are reported in-band")

			events := decodeEvents(t, w.Body.Bytes())
			require.NotEmpty(t, events)
			assert.Equal(t, tt.wantLast, events[len(events)-1].Type())

			id := uuid.MustParse(w.Header().Get("X-Session-ID"))
			detail, err := env.store.GetSession(context.Background(), id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, detail.Status)
			assert.Len(t, detail.Leads, tt.wantLeads)
			assert.Equal(t, tt.wantLeads, detail.TotalLeads)
		})
	}
}

func TestGenerate_ClientAbortKeepsPersistedLeads(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.enrich.onCall = func(domain string) {
		if domain == "globex.com" {
			cancel()
		}
	}

	req := httptest.NewRequest(http.MethodPost, generatePath, strings.NewReader(`{"job_titles": ["SRE"], "num_jobs": 3}`)).WithContext(ctx)
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	events := decodeEvents(t, w.Body.Bytes())
	for _, ev := range events {
		assert.NotEqual(t, pipeline.TypeComplete, ev.Type(), "an aborted run never completes")
	}

	id := uuid.MustParse(w.Header().Get("X-Session-ID"))
	detail, err := env.store.GetSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, types.SessionStatusFailed, detail.Status)
	require.NotEmpty(t, detail.Leads, "leads persisted before the abort are kept")
	assert.Equal(t, "acme.io", detail.Leads[0].Company.Domain)
	assert.Equal(t, len(detail.Leads), detail.TotalLeads)
}

func TestGenerate_IdenticalQueriesCreateSeparateSessions(t *testing.T) {
	env := newTestEnv(t)

	first := env.do(t, http.MethodPost, generatePath, `{"job_titles": ["SRE"], "num_jobs": 2}`)
	second := env.do(t, http.MethodPost, generatePath, `{"job_titles": ["SRE"], "num_jobs": 2}`)

	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	assert.NotEqual(t, first.Header().Get("X-Session-ID"), second.Header().Get("X-Session-ID"))

	sessions, err := env.store.ListSessions(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, 2, sessions[0].TotalLeads)
	assert.Equal(t, 2, sessions[1].TotalLeads)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody[map[string]string](t, w)["status"])

	require.NoError(t, env.store.Close())
	w = env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type brokerPublisher struct {
	recordingPublisher
	healthy bool
}

func (p *brokerPublisher) Healthy() bool { return p.healthy }

func TestHealth_ReportsBroker(t *testing.T) {
	env := newTestEnv(t)
	broker := &brokerPublisher{healthy: true}
	env.server.publisher = broker

	w := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"status": "ok", "broker": "ok"}, decodeBody[map[string]string](t, w))

	broker.healthy = false
	w = env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code, "a lost broker does not take the API down")
	assert.Equal(t, map[string]string{"status": "degraded", "broker": "unavailable"}, decodeBody[map[string]string](t, w))
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/sessions", nil)

	w := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "http_requests_total")
	assert.Contains(t, body, `path="GET /api/sessions"`)
	assert.Contains(t, body, "lead_engine_runs_active")
}

func TestAuth(t *testing.T) {
	jwtService := NewJWTService(&config.JWTConfig{Secret: "test-secret-key-for-jwt-signing", Issuer: "lead-engine", TTL: time.Hour})
	env := newTestEnv(t, func(c *Config) { c.JWT = jwtService })

	w := env.do(t, http.MethodGet, "/api/sessions", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, CodeUnauthorized, decodeBody[errorBody](t, w).Error)

	w = env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code, "health stays open")

	token, err := jwtService.GenerateToken("dashboard")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	w = env.do(t, http.MethodGet, "/api/sessions?access_token="+token, nil)
	assert.Equal(t, http.StatusOK, w.Code, "EventSource clients pass the token in the query")
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.RateLimit = &ratelimit.Config{Enabled: true, DefaultLimit: 2, DefaultWindow: 1 << 40}
	})

	for i := 0; i < 2; i++ {
		w := env.do(t, http.MethodGet, "/api/sessions", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := env.do(t, http.MethodGet, "/api/sessions", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, CodeRateLimited, decodeBody[map[string]any](t, w)["error"])

	w = env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.CORSOrigins = []string{"https://dash.example"} })

	req := httptest.NewRequest(http.MethodOptions, generatePath, nil)
	req.Header.Set("Origin", "https://dash.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	assert.Less(t, w.Code, 300)
	assert.Equal(t, "https://dash.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	env := newTestEnv(t)
	_, err = New(Config{Store: env.store})
	assert.Error(t, err)
}
