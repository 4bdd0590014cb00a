// Package pipeline turns one search query into a lazy, ordered sequence of lead events:
// job search, then per posting company enrichment, contact discovery, drafting and
// persistence.
package pipeline

import (
	"context"
	"fmt"
	"iter"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/lead-engine/internal/drafting"
	"github.com/jonathan/lead-engine/internal/notify"
	"github.com/jonathan/lead-engine/internal/provider"
	"github.com/jonathan/lead-engine/internal/types"
)

// LeadWriter persists assembled leads.
type LeadWriter interface {
	InsertLead(ctx context.Context, lead *types.Lead) error
}

// Pipeline wires the providers, drafter and store used by a run.
// A Pipeline holds no per-run state and may serve concurrent runs.
type Pipeline struct {
	Search    provider.JobSearcher
	Enrich    provider.CompanyEnricher
	Contacts  provider.ContactFinder
	Drafter   *drafting.Drafter
	Store     LeadWriter
	Publisher notify.Publisher
	Logger    *zap.Logger

	// MaxResults is the provider ceiling on num_jobs. Zero means types.DefaultMaxResults.
	MaxResults int
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// runState accumulates the results of one run.
type runState struct {
	total     int
	processed int
	skipped   int
	failed    int
	contacts  int
	scoreSum  int
	leads     []types.Lead
	quota     bool
}

func (s *runState) progress() int {
	if s.total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(s.processed) / float64(s.total)))
}

func (s *runState) summary() Summary {
	sum := Summary{
		TotalGenerated: len(s.leads),
		TotalContacts:  s.contacts,
		Processed:      s.processed,
		Skipped:        s.skipped,
		Failed:         s.failed,
		TotalPostings:  s.total,
		QuotaExceeded:  s.quota,
	}
	if len(s.leads) > 0 {
		sum.AvgScore = math.Round(10*float64(s.scoreSum)/float64(len(s.leads))) / 10
	}
	return sum
}

// outcome of processing one posting.
type outcome int

const (
	outcomeLead outcome = iota
	outcomeSkip
	outcomeFailed
	outcomeQuota
	outcomeCanceled
)

type stepResult struct {
	outcome outcome
	lead    types.Lead
	message string
}

// Run returns the event sequence for q, recording leads under sessionID.
// Nothing happens until the sequence is iterated. Each lead is persisted before its
// LeadEvent is yielded. Stopping the iteration or canceling ctx ends the run after the
// current provider call; persisted leads are kept.
func (p *Pipeline) Run(ctx context.Context, sessionID uuid.UUID, q types.SearchQuery) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		q = q.Clone().Normalize(p.now())
		if err := q.Validate(p.MaxResults); err != nil {
			yield(Error{Message: err.Error(), Fatal: true})
			return
		}

		st := &runState{}
		logger := p.logger().With(zap.String("session_id", sessionID.String()))
		defer p.announce(context.WithoutCancel(ctx), sessionID, st, logger)

		if !yield(Status{Message: "Searching for jobs…"}) {
			return
		}

		postings, err := p.Search.SearchJobs(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if provider.IsQuota(err) {
				st.quota = true
				logger.Warn("search quota exceeded", zap.Error(err))
				if !yield(QuotaExceeded{Message: "Job search quota exceeded. No leads were generated."}) {
					return
				}
				yield(p.complete(st))
				return
			}
			logger.Error("job search failed", zap.Error(err))
			yield(Error{Message: fmt.Sprintf("Job search failed: %v", err), Fatal: true})
			return
		}
		if len(postings) > q.NumJobs {
			postings = postings[:q.NumJobs]
		}

		st.total = len(postings)
		if st.total == 0 {
			yield(p.complete(st))
			return
		}
		if !yield(Status{Message: fmt.Sprintf("Enriching %d job postings…", st.total)}) {
			return
		}

		for _, posting := range postings {
			if ctx.Err() != nil {
				return
			}

			res := p.processPosting(ctx, sessionID, q, posting, logger)
			if res.outcome == outcomeCanceled {
				return
			}
			if res.outcome == outcomeQuota {
				st.quota = true
				if !yield(QuotaExceeded{Message: res.message, Progress: st.progress()}) {
					return
				}
				break
			}

			st.processed++
			var ev Event
			switch res.outcome {
			case outcomeLead:
				st.leads = append(st.leads, res.lead)
				st.scoreSum += res.lead.Score
				st.contacts += len(res.lead.Contacts)
				ev = LeadEvent{Lead: res.lead, Progress: st.progress()}
			case outcomeSkip:
				st.skipped++
				ev = Status{Message: res.message, Progress: st.progress()}
			case outcomeFailed:
				st.failed++
				ev = Error{Message: res.message, Company: posting.Company, Progress: st.progress()}
			}
			if !yield(ev) {
				return
			}
		}

		yield(p.complete(st))
	}
}

// processPosting runs enrichment, contact discovery, drafting and persistence for one posting.
// Provider failures other than quota become skips.
func (p *Pipeline) processPosting(ctx context.Context, sessionID uuid.UUID, q types.SearchQuery, posting types.JobPosting, logger *zap.Logger) stepResult {
	label := posting.Company
	if label == "" {
		label = posting.Domain
	}
	if posting.Domain == "" {
		return stepResult{outcome: outcomeSkip, message: fmt.Sprintf("Skipped %s: no company domain", label)}
	}

	company, err := p.Enrich.EnrichCompany(ctx, posting.Domain)
	if res, stop := p.classify(ctx, err, label, "company enrichment", logger); stop {
		return res
	}
	if !company.MatchesFilters(q) {
		return stepResult{outcome: outcomeSkip, message: fmt.Sprintf("Skipped %s: outside size or industry filters", label)}
	}

	contacts, err := p.Contacts.FindContacts(ctx, company.Domain, q.POCRoles)
	if res, stop := p.classify(ctx, err, label, "contact discovery", logger); stop {
		return res
	}
	if len(contacts) == 0 {
		return stepResult{outcome: outcomeSkip, message: fmt.Sprintf("Skipped %s: no contacts found", label)}
	}

	now := p.now()
	lead := types.Lead{
		ID:        uuid.New(),
		SessionID: sessionID,
		Company:   *company,
		Job:       posting,
		Contacts:  contacts,
		Draft:     p.draft(*company, posting, contacts),
		Score:     Score(q, *company, posting, contacts, now),
		Status:    types.LeadStatusReady,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.Store.InsertLead(ctx, &lead); err != nil {
		if ctx.Err() != nil {
			return stepResult{outcome: outcomeCanceled}
		}
		logger.Error("failed to persist lead", zap.String("company", label), zap.Error(err))
		return stepResult{outcome: outcomeFailed, message: fmt.Sprintf("Failed to save lead for %s: %v", label, err)}
	}
	return stepResult{outcome: outcomeLead, lead: lead}
}

// classify maps a stage error to a result. stop is false when err is nil.
func (p *Pipeline) classify(ctx context.Context, err error, label, stage string, logger *zap.Logger) (stepResult, bool) {
	switch {
	case err == nil:
		return stepResult{}, false
	case ctx.Err() != nil:
		return stepResult{outcome: outcomeCanceled}, true
	case provider.IsQuota(err):
		logger.Warn("provider quota exceeded", zap.String("stage", stage), zap.Error(err))
		return stepResult{outcome: outcomeQuota, message: fmt.Sprintf("Provider quota exceeded during %s. Stopping early with partial results.", stage)}, true
	case provider.IsNotFound(err):
		return stepResult{outcome: outcomeSkip, message: fmt.Sprintf("Skipped %s: no %s data", label, stage)}, true
	default:
		logger.Warn("posting skipped", zap.String("company", label), zap.String("stage", stage), zap.Error(err))
		return stepResult{outcome: outcomeSkip, message: fmt.Sprintf("Skipped %s: %s failed", label, stage)}, true
	}
}

func (p *Pipeline) draft(company types.Company, job types.JobPosting, contacts []types.Contact) types.Draft {
	d := p.Drafter
	if d == nil {
		d = drafting.New(nil, "")
	}
	return d.Draft(company, job, contacts)
}

func (p *Pipeline) complete(st *runState) Complete {
	sum := st.summary()
	msg := fmt.Sprintf("Generated %d leads from %d job postings.", sum.TotalGenerated, sum.TotalPostings)
	if st.quota {
		msg = fmt.Sprintf("Stopped early: provider quota exceeded. Generated %d leads.", sum.TotalGenerated)
	}
	return Complete{Message: msg, Summary: sum, Progress: 100}
}

// announce publishes lead.created for every persisted lead. Failures are logged only.
func (p *Pipeline) announce(ctx context.Context, sessionID uuid.UUID, st *runState, logger *zap.Logger) {
	if p.Publisher == nil {
		return
	}
	for _, lead := range st.leads {
		err := p.Publisher.Publish(ctx, notify.Event{
			Type:       notify.LeadCreated,
			SessionID:  sessionID.String(),
			LeadID:     lead.ID.String(),
			Company:    lead.Company.Name,
			Domain:     lead.Company.Domain,
			Status:     string(lead.Status),
			Score:      lead.Score,
			OccurredAt: lead.CreatedAt,
		})
		if err != nil {
			logger.Warn("failed to publish lead event", zap.String("lead_id", lead.ID.String()), zap.Error(err))
		}
	}
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}

func (p *Pipeline) logger() *zap.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return zap.NewNop()
}
