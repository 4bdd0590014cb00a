package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/lead-engine/internal/notify"
	"github.com/jonathan/lead-engine/internal/pipeline"
	"github.com/jonathan/lead-engine/internal/schemas"
	"github.com/jonathan/lead-engine/internal/types"
)

const maxBodyBytes = 1 << 20

// handleGenerate validates the query, opens a session and streams the run's events.
// Validation and capacity failures are ordinary JSON errors; once the stream has
// started every failure is reported in-band.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	q, err := s.readQuery(w, r)
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	if !s.runs.TryAcquire(1) {
		w.Header().Set("Retry-After", "30")
		s.errorResponse(w, http.StatusServiceUnavailable, CodeRunLimit, "too many runs in progress, try again later")
		return
	}
	defer s.runs.Release(1)

	stream, err := NewEventWriter(w, r)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, CodeStreaming, err.Error())
		return
	}

	session := &types.Session{Title: q.SessionTitle, Query: q}
	if err := s.store.CreateSession(r.Context(), session); err != nil {
		s.writeError(w, r, err)
		return
	}

	logger := s.logger.With(zap.String("session_id", session.ID.String()))
	logger.Info("run started",
		zap.Strings("job_titles", q.JobTitles),
		zap.Int("num_jobs", q.NumJobs),
		zap.String("framing", stream.ContentType()),
	)

	w.Header().Set("X-Session-ID", session.ID.String())
	stream.Start()

	runsActive.Inc()
	defer runsActive.Dec()

	var outcome pipeline.Outcome
	for ev := range s.pipeline.Run(r.Context(), session.ID, q) {
		outcome.Observe(ev)
		if _, ok := ev.(pipeline.LeadEvent); ok {
			leadsGenerated.Inc()
		}
		if err := stream.WriteEvent(ev); err != nil {
			// The client is gone; leaving the loop stops the pipeline.
			logger.Info("stream closed by client", zap.Error(err))
			break
		}
	}

	s.finishRun(r.Context(), logger, session, &outcome)
}

// finishRun records the final session status and counters. It runs after the
// request context may already be cancelled, so it detaches from cancellation.
func (s *Server) finishRun(ctx context.Context, logger *zap.Logger, session *types.Session, outcome *pipeline.Outcome) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	status := outcome.SessionStatus()
	runsFinished.WithLabelValues(string(status)).Inc()

	if err := s.store.FinishSession(ctx, session.ID, status); err != nil {
		logger.Error("failed to finish session", zap.Error(err))
	}
	updated, err := s.store.RecomputeSessionCounters(ctx, session.ID)
	if err != nil {
		logger.Error("failed to recompute session counters", zap.Error(err))
		updated = session
	}

	event := notify.Event{
		Type:       notify.SessionFinished,
		SessionID:  session.ID.String(),
		Status:     string(status),
		OccurredAt: s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.Warn("failed to publish session event", zap.Error(err))
	}

	logger.Info("run finished",
		zap.String("status", string(status)),
		zap.Int("leads", outcome.Leads),
		zap.Int("total_leads", updated.TotalLeads),
		zap.Int("total_contacts", updated.TotalContacts),
	)
}

// readQuery decodes and validates the request body: shape first, against the
// JSON schema, then semantics, against the provider ceiling.
func (s *Server) readQuery(w http.ResponseWriter, r *http.Request) (types.SearchQuery, error) {
	var q types.SearchQuery

	body, err := readBody(w, r)
	if err != nil {
		return q, err
	}
	if err := schemas.Validate(schemas.SearchQuery, body); err != nil {
		return q, err
	}
	if err := unmarshalBody(body, &q); err != nil {
		return q, err
	}

	q = q.Normalize(s.now())
	if err := q.Validate(s.maxResults); err != nil {
		return q, err
	}
	return q, nil
}

// writeQueryError writes a 400 invalid_query response listing each rejected field.
func (s *Server) writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		queryErr  *types.QueryError
		schemaErr *schemas.ValidationError
		validErr  *ErrValidation
	)
	body := errorBody{Error: CodeInvalidQuery, Message: err.Error()}
	switch {
	case errors.As(err, &queryErr):
		for _, f := range queryErr.Fields {
			body.Fields = append(body.Fields, fieldError{Field: f.Field, Message: f.Message})
		}
	case errors.As(err, &schemaErr):
		for _, f := range schemaErr.Errors {
			body.Fields = append(body.Fields, fieldError{Field: f.Field, Message: f.Message})
		}
	case errors.As(err, &validErr):
		body.Fields = []fieldError{{Field: validErr.Field, Message: validErr.Message}}
	default:
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusBadRequest, body)
}
