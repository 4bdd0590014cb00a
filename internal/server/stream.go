package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jonathan/lead-engine/internal/pipeline"
)

// Stream content types.
const (
	ContentTypeNDJSON = "application/x-ndjson"
	ContentTypeSSE    = "text/event-stream"
)

// EventWriter writes pipeline events to a streaming response, one flush per event.
// NDJSON is the default framing; SSE is used when the client asks for text/event-stream.
// Both framings carry the same JSON object.
type EventWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	sse     bool
	started bool
}

// NewEventWriter picks the framing for r. It fails when the response cannot be
// flushed, before anything has been written.
func NewEventWriter(w http.ResponseWriter, r *http.Request) (*EventWriter, error) {
	flusher, ok := findFlusher(w)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}
	return &EventWriter{w: w, flusher: flusher, sse: wantsSSE(r)}, nil
}

// ContentType returns the negotiated content type.
func (e *EventWriter) ContentType() string {
	if e.sse {
		return ContentTypeSSE
	}
	return ContentTypeNDJSON
}

// Start sends the response headers. Any later failure can only be reported in-band.
func (e *EventWriter) Start() {
	if e.started {
		return
	}
	e.started = true

	h := e.w.Header()
	h.Set("Content-Type", e.ContentType())
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	e.w.WriteHeader(http.StatusOK)
	e.flusher.Flush()
}

// WriteEvent writes and flushes one event.
func (e *EventWriter) WriteEvent(ev pipeline.Event) error {
	e.Start()

	data, err := pipeline.Encode(ev)
	if err != nil {
		return err
	}
	if e.sse {
		_, err = fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", ev.Type(), data)
	} else {
		_, err = fmt.Fprintf(e.w, "%s\n", data)
	}
	if err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}

func wantsSSE(r *http.Request) bool {
	if strings.EqualFold(r.URL.Query().Get("format"), "sse") {
		return true
	}
	for _, accept := range r.Header.Values("Accept") {
		if strings.Contains(strings.ToLower(accept), ContentTypeSSE) {
			return true
		}
	}
	return false
}

// findFlusher unwraps middleware writers down to the one that can flush.
func findFlusher(w http.ResponseWriter) (http.Flusher, bool) {
	for {
		if f, ok := w.(http.Flusher); ok {
			return f, true
		}
		u, ok := w.(interface{ Unwrap() http.ResponseWriter })
		if !ok {
			return nil, false
		}
		w = u.Unwrap()
	}
}
