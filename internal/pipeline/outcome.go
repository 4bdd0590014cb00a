package pipeline

import "github.com/jonathan/lead-engine/internal/types"

// Outcome is what a consumer observed on a run's event sequence.
type Outcome struct {
	Leads     int
	Quota     bool
	Fatal     bool
	Completed bool
}

// Observe records one event.
func (o *Outcome) Observe(ev Event) {
	switch e := ev.(type) {
	case LeadEvent:
		o.Leads++
	case QuotaExceeded:
		o.Quota = true
	case Complete:
		o.Completed = true
	case Error:
		if e.Fatal {
			o.Fatal = true
		}
	case Status:
	}
}

// SessionStatus maps the outcome onto the session's final status. A sequence that
// ended without Complete (fatal error or consumer abort) is failed.
func (o *Outcome) SessionStatus() types.SessionStatus {
	switch {
	case o.Fatal, !o.Completed:
		return types.SessionStatusFailed
	case o.Quota:
		return types.SessionStatusQuotaExceeded
	default:
		return types.SessionStatusCompleted
	}
}
