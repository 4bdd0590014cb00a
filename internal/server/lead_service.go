package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/lead-engine/internal/db"
	"github.com/jonathan/lead-engine/internal/notify"
	"github.com/jonathan/lead-engine/internal/provider"
	"github.com/jonathan/lead-engine/internal/server/middleware"
	"github.com/jonathan/lead-engine/internal/types"
)

// ErrMailUnavailable is returned by Send when no mail provider is configured.
var ErrMailUnavailable = errors.New("email sending is not configured")

// DraftRewriter proposes a revised draft for a lead.
type DraftRewriter interface {
	Rewrite(ctx context.Context, lead *types.Lead, instructions string) (types.Draft, error)
}

// SendRequest overrides the sender or recipient of an outreach email.
type SendRequest struct {
	SenderEmail string `json:"sender_email,omitempty" validate:"omitempty,email"`
	SenderName  string `json:"sender_name,omitempty"`
	To          string `json:"to,omitempty" validate:"omitempty,email"`
}

// SendResult is the outcome of a successful send.
type SendResult struct {
	Lead      *types.Lead `json:"lead"`
	MessageID string      `json:"message_id,omitempty"`
	To        string      `json:"to"`
}

// DraftRequest is a human edit of a lead's draft.
type DraftRequest struct {
	Subject string `json:"subject" validate:"required"`
	Body    string `json:"body" validate:"required"`
}

// RewriteRequest asks the LLM to revise a draft. With Apply the result replaces the
// stored draft; otherwise it is only returned as a suggestion.
type RewriteRequest struct {
	Instructions string `json:"instructions,omitempty" validate:"max=2000"`
	Apply        bool   `json:"apply,omitempty"`
}

// RewriteResult carries the suggested draft and, when applied, the updated lead.
type RewriteResult struct {
	Draft   types.Draft `json:"draft"`
	Applied bool        `json:"applied"`
	Lead    *types.Lead `json:"lead,omitempty"`
}

// LeadServiceConfig wires a LeadService.
type LeadServiceConfig struct {
	Store       db.Store
	Mailer      provider.Mailer
	Rewriter    DraftRewriter
	Publisher   notify.Publisher
	SenderEmail string
	SenderName  string
	Logger      *zap.Logger
}

// LeadService applies the human actions on a lead: send, skip, replied and draft edits.
// Status changes go through the store's transition check, so a disallowed action is
// reported as types.ErrInvalidTransition.
type LeadService struct {
	store       db.Store
	mailer      provider.Mailer
	rewriter    DraftRewriter
	publisher   notify.Publisher
	senderEmail string
	senderName  string
	validate    *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewLeadService creates a lead service.
func NewLeadService(cfg LeadServiceConfig) *LeadService {
	if cfg.Publisher == nil {
		cfg.Publisher = notify.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &LeadService{
		store:       cfg.Store,
		mailer:      cfg.Mailer,
		rewriter:    cfg.Rewriter,
		publisher:   cfg.Publisher,
		senderEmail: cfg.SenderEmail,
		senderName:  cfg.SenderName,
		validate:    validator.New(),
		logger:      cfg.Logger,
		now:         time.Now,
	}
}

// Get returns one lead.
func (s *LeadService) Get(ctx context.Context, id uuid.UUID) (*types.Lead, error) {
	return s.store.GetLead(ctx, id)
}

// Send emails the lead's draft to its first contact with an email, or to req.To.
// On success the lead becomes contacted. When the provider fails the lead becomes
// failed and an *ErrSendFailure is returned; a failed lead may be sent again.
func (s *LeadService) Send(ctx context.Context, id uuid.UUID, req SendRequest) (*SendResult, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	if s.mailer == nil {
		return nil, ErrMailUnavailable
	}

	lead, err := s.store.GetLead(ctx, id)
	if err != nil {
		return nil, err
	}
	if !lead.Status.CanTransition(types.LeadStatusContacted) {
		return nil, fmt.Errorf("%w: cannot send a %s lead", types.ErrInvalidTransition, lead.Status)
	}

	msg := provider.Message{
		FromEmail: firstNonEmpty(req.SenderEmail, s.senderEmail),
		FromName:  firstNonEmpty(req.SenderName, s.senderName),
		To:        req.To,
		Subject:   lead.Draft.Subject,
		Body:      lead.Draft.Body,
	}
	if msg.To == "" {
		contact, ok := lead.PrimaryContact()
		if !ok {
			return nil, &ErrNoRecipient{LeadID: id}
		}
		msg.To = *contact.Email
		msg.ToName = contact.Name
	}
	if msg.FromEmail == "" {
		return nil, &ErrValidation{Field: "sender_email", Message: "no sender address given or configured"}
	}
	if strings.TrimSpace(msg.Subject) == "" || strings.TrimSpace(msg.Body) == "" {
		return nil, &ErrValidation{Field: "draft", Message: "draft subject and body must not be empty"}
	}

	logger := s.logger.With(zap.String("lead_id", id.String()), zap.String("to", msg.To))
	if actor, ok := middleware.SubjectFromContext(ctx); ok {
		logger = logger.With(zap.String("actor", actor))
	}

	messageID, sendErr := s.mailer.Send(ctx, msg)
	if sendErr != nil {
		emailsSent.WithLabelValues("failed").Inc()
		logger.Warn("send failed", zap.Error(sendErr))

		failed, err := s.store.TransitionLead(context.WithoutCancel(ctx), id, types.LeadStatusFailed, sendErr.Error())
		if err != nil {
			logger.Error("failed to mark lead failed", zap.Error(err))
		} else {
			s.announce(ctx, failed)
		}
		return nil, &ErrSendFailure{LeadID: id, Cause: sendErr}
	}
	emailsSent.WithLabelValues("sent").Inc()

	// The email is out; record it even if the caller has gone away.
	contacted, err := s.store.TransitionLead(context.WithoutCancel(ctx), id, types.LeadStatusContacted, "")
	if err != nil {
		return nil, fmt.Errorf("email sent but lead not updated: %w", err)
	}
	logger.Info("lead contacted", zap.String("message_id", messageID))
	s.announce(ctx, contacted)

	return &SendResult{Lead: contacted, MessageID: messageID, To: msg.To}, nil
}

// Skip marks a new or ready lead as skipped.
func (s *LeadService) Skip(ctx context.Context, id uuid.UUID) (*types.Lead, error) {
	return s.transition(ctx, id, types.LeadStatusSkipped)
}

// MarkReplied records that a contacted lead answered.
func (s *LeadService) MarkReplied(ctx context.Context, id uuid.UUID) (*types.Lead, error) {
	return s.transition(ctx, id, types.LeadStatusReplied)
}

func (s *LeadService) transition(ctx context.Context, id uuid.UUID, next types.LeadStatus) (*types.Lead, error) {
	lead, err := s.store.TransitionLead(ctx, id, next, "")
	if err != nil {
		return nil, err
	}
	s.announce(ctx, lead)
	return lead, nil
}

// UpdateDraft replaces the draft of a lead that has not been contacted yet.
func (s *LeadService) UpdateDraft(ctx context.Context, id uuid.UUID, req DraftRequest) (*types.Lead, error) {
	req.Subject = strings.TrimSpace(req.Subject)
	req.Body = strings.TrimSpace(req.Body)
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	lead, err := s.store.GetLead(ctx, id)
	if err != nil {
		return nil, err
	}
	if !draftEditable(lead.Status) {
		return nil, fmt.Errorf("%w: the draft of a %s lead cannot change", types.ErrInvalidTransition, lead.Status)
	}
	return s.store.UpdateDraft(ctx, id, types.Draft{Subject: req.Subject, Body: req.Body})
}

// RewriteDraft asks the LLM for a revised draft.
func (s *LeadService) RewriteDraft(ctx context.Context, id uuid.UUID, req RewriteRequest) (*RewriteResult, error) {
	if s.rewriter == nil {
		return nil, ErrRewriteUnavailable
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	lead, err := s.store.GetLead(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Apply && !draftEditable(lead.Status) {
		return nil, fmt.Errorf("%w: the draft of a %s lead cannot change", types.ErrInvalidTransition, lead.Status)
	}

	draft, err := s.rewriter.Rewrite(ctx, lead, req.Instructions)
	if err != nil {
		return nil, fmt.Errorf("failed to rewrite draft: %w", err)
	}

	result := &RewriteResult{Draft: draft}
	if req.Apply {
		updated, err := s.store.UpdateDraft(ctx, id, draft)
		if err != nil {
			return nil, err
		}
		result.Applied = true
		result.Lead = updated
	}
	return result, nil
}

func draftEditable(status types.LeadStatus) bool {
	switch status {
	case types.LeadStatusNew, types.LeadStatusReady, types.LeadStatusFailed:
		return true
	default:
		return false
	}
}

// announce publishes a status change. Failures are logged only.
func (s *LeadService) announce(ctx context.Context, lead *types.Lead) {
	event := notify.Event{
		Type:       notify.LeadStatusChange,
		SessionID:  lead.SessionID.String(),
		LeadID:     lead.ID.String(),
		Company:    lead.Company.Name,
		Domain:     lead.Company.Domain,
		Status:     string(lead.Status),
		Score:      lead.Score,
		OccurredAt: s.now().UTC(),
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("failed to publish lead event", zap.String("lead_id", lead.ID.String()), zap.Error(err))
	}
}

func (s *LeadService) validateRequest(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ErrValidation{Field: jsonName(fe.Field()), Message: describeValidation(fe)}
	}
	return &ErrValidation{Field: "body", Message: err.Error()}
}

func jsonName(field string) string {
	switch field {
	case "SenderEmail":
		return "sender_email"
	case "SenderName":
		return "sender_name"
	default:
		return strings.ToLower(field)
	}
}

func describeValidation(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
