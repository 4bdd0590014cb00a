package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/jonathan/lead-engine/internal/types"
)

// Event type tags written in the "type" field of every encoded event.
const (
	TypeStatus        = "status"
	TypeLead          = "lead"
	TypeQuotaExceeded = "quota_exceeded"
	TypeComplete      = "complete"
	TypeError         = "error"
)

// Event is one item of a run's event sequence. The set of implementations is closed:
// Status, LeadEvent, QuotaExceeded, Complete and Error.
type Event interface {
	// Type returns the wire tag of the event.
	Type() string
	// ProgressPercent returns the run progress (0-100) when the event was produced.
	ProgressPercent() int
	isEvent()
}

// Status is an informational line emitted at stage boundaries and for skipped postings.
type Status struct {
	Message  string `json:"message"`
	Progress int    `json:"progress"`
}

// LeadEvent carries a lead that has already been persisted.
type LeadEvent struct {
	Lead     types.Lead `json:"data"`
	Progress int        `json:"progress"`
}

// QuotaExceeded reports provider credit or rate exhaustion. The run stops early and
// keeps its partial results; a Complete event follows.
type QuotaExceeded struct {
	Message  string `json:"message"`
	Progress int    `json:"progress"`
}

// Complete is the final event of every run that was not ended by a fatal Error.
type Complete struct {
	Message  string  `json:"message"`
	Summary  Summary `json:"summary"`
	Progress int     `json:"progress"`
}

// Error reports a failure. Fatal errors end the run; others concern one posting.
type Error struct {
	Message  string `json:"message"`
	Company  string `json:"company,omitempty"`
	Fatal    bool   `json:"fatal,omitempty"`
	Progress int    `json:"progress"`
}

// Summary aggregates one run.
type Summary struct {
	TotalGenerated int     `json:"total_generated"`
	AvgScore       float64 `json:"avg_score"`
	TotalContacts  int     `json:"total_contacts"`
	Processed      int     `json:"processed"`
	Skipped        int     `json:"skipped"`
	Failed         int     `json:"failed"`
	TotalPostings  int     `json:"total_postings"`
	QuotaExceeded  bool    `json:"quota_exceeded,omitempty"`
}

func (Status) Type() string        { return TypeStatus }
func (LeadEvent) Type() string     { return TypeLead }
func (QuotaExceeded) Type() string { return TypeQuotaExceeded }
func (Complete) Type() string      { return TypeComplete }
func (Error) Type() string         { return TypeError }

func (e Status) ProgressPercent() int        { return e.Progress }
func (e LeadEvent) ProgressPercent() int     { return e.Progress }
func (e QuotaExceeded) ProgressPercent() int { return e.Progress }
func (e Complete) ProgressPercent() int      { return e.Progress }
func (e Error) ProgressPercent() int         { return e.Progress }

func (Status) isEvent()        {}
func (LeadEvent) isEvent()     {}
func (QuotaExceeded) isEvent() {}
func (Complete) isEvent()      {}
func (Error) isEvent()         {}

// Encode serializes an event as one JSON object with its "type" tag.
func Encode(ev Event) ([]byte, error) {
	var payload any
	switch e := ev.(type) {
	case Status:
		type alias Status
		payload = struct {
			Type string `json:"type"`
			alias
		}{TypeStatus, alias(e)}
	case LeadEvent:
		type alias LeadEvent
		payload = struct {
			Type string `json:"type"`
			alias
		}{TypeLead, alias(e)}
	case QuotaExceeded:
		type alias QuotaExceeded
		payload = struct {
			Type string `json:"type"`
			alias
		}{TypeQuotaExceeded, alias(e)}
	case Complete:
		type alias Complete
		payload = struct {
			Type string `json:"type"`
			alias
		}{TypeComplete, alias(e)}
	case Error:
		type alias Error
		payload = struct {
			Type string `json:"type"`
			alias
		}{TypeError, alias(e)}
	default:
		return nil, fmt.Errorf("unknown event %T", ev)
	}
	return json.Marshal(payload)
}

// Decode parses one encoded event.
func Decode(data []byte) (Event, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}

	var (
		ev  Event
		err error
	)
	switch head.Type {
	case TypeStatus:
		var e Status
		err = json.Unmarshal(data, &e)
		ev = e
	case TypeLead:
		var e LeadEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case TypeQuotaExceeded:
		var e QuotaExceeded
		err = json.Unmarshal(data, &e)
		ev = e
	case TypeComplete:
		var e Complete
		err = json.Unmarshal(data, &e)
		ev = e
	case TypeError:
		var e Error
		err = json.Unmarshal(data, &e)
		ev = e
	default:
		return nil, fmt.Errorf("unknown event type %q", head.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s event: %w", head.Type, err)
	}
	return ev, nil
}
