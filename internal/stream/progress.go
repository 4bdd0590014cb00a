package stream

import (
	"github.com/jonathan/lead-engine/internal/pipeline"
	"github.com/jonathan/lead-engine/internal/types"
)

// Progress is the state a client derives from a stream: the leads received so far,
// the progress percentage and whether generation is still running.
// Leads are only ever appended; errors never clear them.
type Progress struct {
	Leads         []types.Lead
	Percent       int
	Generating    bool
	LastMessage   string
	Notices       []string
	QuotaExceeded bool
	Summary       *pipeline.Summary
}

// Start resets the derived state for a new run. Leads from a previous run are dropped.
func (p *Progress) Start() {
	*p = Progress{Generating: true}
}

// Apply folds one event into the state.
func (p *Progress) Apply(ev pipeline.Event) {
	if pct := ev.ProgressPercent(); pct > p.Percent {
		p.Percent = min(pct, 100)
	}

	switch e := ev.(type) {
	case pipeline.Status:
		p.LastMessage = e.Message
	case pipeline.LeadEvent:
		p.Leads = append(p.Leads, e.Lead)
	case pipeline.QuotaExceeded:
		p.QuotaExceeded = true
		p.Notices = append(p.Notices, e.Message)
	case pipeline.Complete:
		summary := e.Summary
		p.Summary = &summary
		p.LastMessage = e.Message
		p.Generating = false
	case pipeline.Error:
		p.Notices = append(p.Notices, e.Message)
		if e.Fatal {
			p.Generating = false
		}
	}
}

// Finish marks the stream as ended, however it ended.
func (p *Progress) Finish() {
	p.Generating = false
}

// CanStart reports whether a new run may be started.
func (p *Progress) CanStart() bool {
	return !p.Generating
}

// CanExport reports whether bulk actions are available: generation has ended and at
// least one lead exists.
func (p *Progress) CanExport() bool {
	return !p.Generating && len(p.Leads) > 0
}
