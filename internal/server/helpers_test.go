package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/lead-engine/internal/db"
	"github.com/jonathan/lead-engine/internal/drafting"
	"github.com/jonathan/lead-engine/internal/notify"
	"github.com/jonathan/lead-engine/internal/pipeline"
	"github.com/jonathan/lead-engine/internal/provider"
	"github.com/jonathan/lead-engine/internal/server/ratelimit"
	"github.com/jonathan/lead-engine/internal/stream"
	"github.com/jonathan/lead-engine/internal/types"
)

type fakeSearch struct {
	postings []types.JobPosting
	err      error
}

func (f *fakeSearch) SearchJobs(context.Context, types.SearchQuery) ([]types.JobPosting, error) {
	return f.postings, f.err
}

type fakeEnricher struct {
	errs   map[string]error
	onCall func(domain string)
}

func (f *fakeEnricher) EnrichCompany(_ context.Context, domain string) (*types.Company, error) {
	if f.onCall != nil {
		f.onCall(domain)
	}
	if err := f.errs[domain]; err != nil {
		return nil, err
	}
	return &types.Company{Name: domain, Domain: domain, EmployeeCount: 120, SizeBucket: types.SizeMid}, nil
}

type fakeContacts struct{}

func (fakeContacts) FindContacts(_ context.Context, domain string, _ []string) ([]types.Contact, error) {
	email := "talent@" + domain
	return []types.Contact{
		{Name: "Riley Hart", Title: "Recruiter", Email: &email, RoleCategory: "recruiter"},
		{Name: "Sam Ode", Title: "CTO", RoleCategory: "engineering"},
	}, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []provider.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg provider.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, msg)
	return "msg-" + msg.To, nil
}

func (m *fakeMailer) messages() []provider.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]provider.Message(nil), m.sent...)
}

type fakeRewriter struct {
	draft        types.Draft
	err          error
	instructions string
}

func (f *fakeRewriter) Rewrite(_ context.Context, _ *types.Lead, instructions string) (types.Draft, error) {
	f.instructions = instructions
	return f.draft, f.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) ofType(eventType string) []notify.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []notify.Event
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	server    *Server
	store     *db.SQLite
	search    *fakeSearch
	enrich    *fakeEnricher
	mailer    *fakeMailer
	rewriter  *fakeRewriter
	publisher *recordingPublisher
}

func postings(domains ...string) []types.JobPosting {
	out := make([]types.JobPosting, 0, len(domains))
	for _, d := range domains {
		out = append(out, types.JobPosting{Title: "Backend Engineer", Company: d, Domain: d, URL: "https://" + d + "/careers/1"})
	}
	return out
}

func newTestEnv(t *testing.T, configure ...func(*Config)) *testEnv {
	t.Helper()

	store, err := db.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	templates, err := drafting.DefaultTemplates()
	require.NoError(t, err)

	env := &testEnv{
		store:     store,
		search:    &fakeSearch{postings: postings("acme.io", "globex.com", "initech.dev")},
		enrich:    &fakeEnricher{errs: map[string]error{}},
		mailer:    &fakeMailer{},
		rewriter:  &fakeRewriter{draft: types.Draft{Subject: "Shorter", Body: "Hi Riley, quick note."}},
		publisher: &recordingPublisher{},
	}

	cfg := Config{
		SenderEmail: "jo@leads.example",
		SenderName:  "Jo",
		Store:       store,
		Pipeline: &pipeline.Pipeline{
			Search:    env.search,
			Enrich:    env.enrich,
			Contacts:  fakeContacts{},
			Drafter:   drafting.New(templates, "Jo"),
			Store:     store,
			Publisher: env.publisher,
		},
		Mailer:    env.mailer,
		Rewriter:  env.rewriter,
		Publisher: env.publisher,
		RateLimit: &ratelimit.Config{Enabled: false},
	}
	for _, fn := range configure {
		fn(&cfg)
	}

	env.server, err = New(cfg)
	require.NoError(t, err)
	t.Cleanup(env.server.Close)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

// seedLead stores a session with one lead in the given status.
func (e *testEnv) seedLead(t *testing.T, status types.LeadStatus, withEmail bool) *types.Lead {
	t.Helper()
	ctx := context.Background()

	session := &types.Session{Title: "Seed", Query: types.SearchQuery{JobTitles: []string{"SRE"}, NumJobs: 1}}
	require.NoError(t, e.store.CreateSession(ctx, session))

	contact := types.Contact{Name: "Riley Hart", Title: "Recruiter"}
	if withEmail {
		email := "riley@acme.io"
		contact.Email = &email
	}
	lead := &types.Lead{
		ID:        uuid.New(),
		SessionID: session.ID,
		Company:   types.Company{Name: "Acme", Domain: "acme.io"},
		Job:       types.JobPosting{Title: "SRE", Company: "Acme", Domain: "acme.io"},
		Contacts:  []types.Contact{contact},
		Draft:     types.Draft{Subject: "SRE opening at Acme", Body: "Hi Riley,\n\nHello."},
		Score:     70,
		Status:    status,
	}
	require.NoError(t, e.store.InsertLead(ctx, lead))
	return lead
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

func decodeEvents(t *testing.T, body []byte) []pipeline.Event {
	t.Helper()
	dec := stream.NewDecoder(bytes.NewReader(body), nil)
	var events []pipeline.Event
	for ev := range dec.All() {
		events = append(events, ev)
	}
	require.NoError(t, dec.Err())
	require.Zero(t, dec.Skipped(), "stream had malformed lines: %s", body)
	return events
}

// noFlushWriter is a ResponseWriter without http.Flusher.
type noFlushWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (w *noFlushWriter) Header() http.Header {
	if w.header == nil {
		w.header = http.Header{}
	}
	return w.header
}

func (w *noFlushWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(b)
}

func (w *noFlushWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
}

var errBoom = errors.New("boom")
