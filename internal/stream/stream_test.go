package stream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/lead-engine/internal/pipeline"
	"github.com/jonathan/lead-engine/internal/types"
)

func encode(t *testing.T, ev pipeline.Event) string {
	t.Helper()
	data, err := pipeline.Encode(ev)
	require.NoError(t, err)
	return string(data)
}

func decodeAll(d *Decoder) []pipeline.Event {
	var out []pipeline.Event
	for ev := range d.All() {
		out = append(out, ev)
	}
	return out
}

// chunkedReader returns its data in fixed-size pieces, splitting lines across reads.
type chunkedReader struct {
	data  string
	chunk int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if c.data == "" {
		return 0, io.EOF
	}
	n := min(c.chunk, len(c.data), len(p))
	copy(p, c.data[:n])
	c.data = c.data[n:]
	return n, nil
}

func TestDecoder_NDJSONSplitAcrossReads(t *testing.T) {
	lead := pipeline.LeadEvent{Lead: types.Lead{ID: uuid.New(), Company: types.Company{Name: "Acme"}}, Progress: 50}
	body := encode(t, pipeline.Status{Message: "Searching for jobs…"}) + "\n" +
		encode(t, lead) + "\n" +
		encode(t, pipeline.Complete{Message: "done", Progress: 100})

	d := NewDecoder(&chunkedReader{data: body, chunk: 7}, nil)
	events := decodeAll(d)

	require.Len(t, events, 3)
	assert.Equal(t, pipeline.TypeStatus, events[0].Type())
	got, ok := events[1].(pipeline.LeadEvent)
	require.True(t, ok)
	assert.Equal(t, lead.Lead.ID, got.Lead.ID)
	assert.Equal(t, pipeline.TypeComplete, events[2].Type(), "final unterminated line is parsed at EOF")
	assert.NoError(t, d.Err())
}

func TestDecoder_BurstInOneRead(t *testing.T) {
	body := strings.Repeat(encode(t, pipeline.Status{Message: "x", Progress: 10})+"\n", 5)
	events := decodeAll(NewDecoder(strings.NewReader(body), nil))
	assert.Len(t, events, 5)
}

func TestDecoder_SkipsMalformedLines(t *testing.T) {
	body := "{not json}\n" +
		encode(t, pipeline.Status{Message: "ok"}) + "\n" +
		`{"type":"unknown"}` + "\n\n" +
		encode(t, pipeline.Complete{Progress: 100}) + "\n"

	d := NewDecoder(strings.NewReader(body), nil)
	events := decodeAll(d)

	require.Len(t, events, 2)
	assert.Equal(t, 2, d.Skipped())
}

func TestDecoder_SkipsOversizedLines(t *testing.T) {
	huge := `{"type":"status","message":"` + strings.Repeat("x", 1000) + `","progress":5}`
	body := encode(t, pipeline.Status{Message: "before"}) + "\n" +
		huge + "\n" +
		encode(t, pipeline.Complete{Progress: 100}) + "\n" +
		huge

	d := NewDecoder(&chunkedReader{data: body, chunk: 64}, nil)
	d.maxLine = 512
	events := decodeAll(d)

	require.Len(t, events, 2)
	assert.Equal(t, pipeline.TypeStatus, events[0].Type())
	assert.Equal(t, pipeline.TypeComplete, events[1].Type(), "the stream continues past an oversized line")
	assert.Equal(t, 2, d.Skipped(), "an unterminated oversized tail counts too")
	assert.NoError(t, d.Err())
}

func TestDecoder_Strict(t *testing.T) {
	lead := pipeline.LeadEvent{
		Lead: types.Lead{
			ID:        uuid.New(),
			SessionID: uuid.New(),
			Company:   types.Company{Name: "Acme", Domain: "acme.io"},
			Job:       types.JobPosting{Title: "SRE", Company: "Acme"},
			Draft:     types.Draft{Subject: "Hi", Body: "Hello"},
			Score:     60,
			Status:    types.LeadStatusReady,
		},
		Progress: 50,
	}
	body := encode(t, pipeline.Status{Message: "Searching for jobs…"}) + "\n" +
		`{"type":"status","progress":150}` + "\n" +
		`{"type":"status","progress":10}` + "\n" +
		encode(t, lead) + "\n" +
		encode(t, pipeline.Complete{Message: "done", Progress: 100})

	lenient := NewDecoder(strings.NewReader(body), nil)
	assert.Len(t, decodeAll(lenient), 5)

	strict := NewDecoder(strings.NewReader(body), nil).Strict()
	events := decodeAll(strict)
	require.Len(t, events, 3)
	assert.Equal(t, 2, strict.Skipped())
	assert.IsType(t, pipeline.LeadEvent{}, events[1])
}

func TestDecoder_SSEFraming(t *testing.T) {
	body := ": keep-alive\n\n" +
		"event: status\ndata: " + encode(t, pipeline.Status{Message: "Searching"}) + "\n\n" +
		"event: complete\ndata: " + encode(t, pipeline.Complete{Progress: 100}) + "\n\n"

	events := decodeAll(NewDecoder(strings.NewReader(body), nil))
	require.Len(t, events, 2)
	assert.Equal(t, pipeline.TypeStatus, events[0].Type())
	assert.Equal(t, pipeline.TypeComplete, events[1].Type())
}

type failingReader struct{ sent bool }

func (f *failingReader) Read(p []byte) (int, error) {
	if !f.sent {
		f.sent = true
		return copy(p, `{"type":"status","message":"a","progress":0}`+"\n"), nil
	}
	return 0, errors.New("connection reset")
}

func TestDecoder_ReadError(t *testing.T) {
	d := NewDecoder(&failingReader{}, nil)
	events := decodeAll(d)
	assert.Len(t, events, 1)
	assert.ErrorContains(t, d.Err(), "connection reset")
}

func TestProgress(t *testing.T) {
	var p Progress
	assert.True(t, p.CanStart())

	p.Start()
	assert.True(t, p.Generating)
	assert.False(t, p.CanStart())
	assert.False(t, p.CanExport())

	p.Apply(pipeline.Status{Message: "Searching"})
	p.Apply(pipeline.LeadEvent{Lead: types.Lead{ID: uuid.New()}, Progress: 33})
	p.Apply(pipeline.Error{Message: "Failed to save lead", Progress: 20})
	assert.Equal(t, 33, p.Percent, "progress never moves backwards")
	assert.Len(t, p.Leads, 1)
	assert.False(t, p.CanExport())

	p.Apply(pipeline.QuotaExceeded{Message: "quota", Progress: 33})
	p.Apply(pipeline.Complete{Message: "done", Summary: pipeline.Summary{TotalGenerated: 1}, Progress: 100})
	assert.Equal(t, 100, p.Percent)
	assert.False(t, p.Generating)
	assert.True(t, p.QuotaExceeded)
	assert.True(t, p.CanExport())
	require.NotNil(t, p.Summary)
	assert.Equal(t, 1, p.Summary.TotalGenerated)
	assert.Len(t, p.Notices, 2)
}

func TestProgress_FatalErrorEndsGeneration(t *testing.T) {
	var p Progress
	p.Start()
	p.Apply(pipeline.Error{Message: "search failed", Fatal: true})
	assert.False(t, p.Generating)
	assert.False(t, p.CanExport())
}

func TestClient_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/lead-engine/generate", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = io.WriteString(w, encode(t, pipeline.Status{Message: "Searching"})+"\n")
		_, _ = io.WriteString(w, encode(t, pipeline.Complete{Progress: 100})+"\n")
	}))
	defer server.Close()

	c := &Client{BaseURL: server.URL, Token: "tok"}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	run, err := c.Generate(ctx, types.SearchQuery{JobTitles: []string{"SRE"}})
	require.NoError(t, err)
	defer func() { _ = run.Close() }()

	events := decodeAll(run.Decoder)
	assert.Len(t, events, 2)
}

func TestClient_GenerateRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"invalid_query","message":"job_titles: at least one job title is required"}`)
	}))
	defer server.Close()

	_, err := (&Client{BaseURL: server.URL}).Generate(context.Background(), types.SearchQuery{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "invalid_query", apiErr.Code)
}
