package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"leadflow_backend/internal/campaigns/domain"
	"leadflow_backend/internal/campaigns/repository"
	"leadflow_backend/internal/events"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"
)

// EmailSender dispatches a rendered message and returns the provider's
// message identifier.
type EmailSender interface {
	Send(ctx context.Context, to, subject, bodyHTML, bodyText string) (providerMessageID string, err error)
}

// Composer renders the subject and bodies for one sequence step.
type Composer interface {
	Compose(ctx context.Context, input ComposeInput) (ComposedEmail, error)
}

type ComposeInput struct {
	Step               int
	FirstName          string
	LastName           string
	CompanyName        string
	JobTitle           string
	ValueProposition   string
	TrustSignal        string
	MatchedValuePropID string
}

type ComposedEmail struct {
	Subject  string
	BodyHTML string
	BodyText string
}

// ReplyClassifier decides the sentiment verdict of a reply body.
// Verdicts are positive, negative, or neutral.
type ReplyClassifier interface {
	ClassifyReply(ctx context.Context, body string) (string, error)
}

// LeadDirectory is the window into the leads module the campaign engine
// needs when rendering and dispatching messages.
type LeadDirectory interface {
	Contact(ctx context.Context, leadID, workspaceID uuid.UUID) (LeadContact, error)
}

// DispatchQueue hands an approved send to the scheduler process for
// near-term dispatch. Optional; without it dispatch waits for the next
// sequence tick.
type DispatchQueue interface {
	ScheduleDispatch(ctx context.Context, emailSendID string, runAt time.Time) error
}

type LeadContact struct {
	Email       string
	FirstName   string
	LastName    string
	CompanyName string
	JobTitle    string
}

// Store is the persistence surface the campaign engine drives. Satisfied by
// *repository.Repository.
type Store interface {
	CreateCampaign(ctx context.Context, params repository.CreateCampaignParams) (repository.Campaign, error)
	GetCampaign(ctx context.Context, id, workspaceID uuid.UUID) (repository.Campaign, error)
	GetCampaignByID(ctx context.Context, id uuid.UUID) (repository.Campaign, error)
	ListCampaigns(ctx context.Context, params repository.ListCampaignsParams) ([]repository.Campaign, int, error)
	UpdateCampaign(ctx context.Context, id, workspaceID uuid.UUID, params repository.UpdateCampaignParams) (repository.Campaign, error)
	TransitionStatus(ctx context.Context, id, workspaceID uuid.UUID, from, to string, stamps repository.TransitionStamps) (repository.Campaign, error)
	TransitionFacts(ctx context.Context, id, workspaceID uuid.UUID) (domain.CampaignTransitionFacts, error)

	AttachLeads(ctx context.Context, campaignID uuid.UUID, leadIDs []uuid.UUID) (repository.AttachResult, error)
	GetCampaignLead(ctx context.Context, id uuid.UUID) (repository.CampaignLead, error)
	ListCampaignLeads(ctx context.Context, campaignID uuid.UUID, status string) ([]repository.CampaignLead, error)
	SetEnrichment(ctx context.Context, id uuid.UUID, params repository.SetEnrichmentParams) (repository.CampaignLead, error)
	UpdateLeadStatusCAS(ctx context.Context, id uuid.UUID, from, to string) (repository.CampaignLead, error)
	ListDueLeads(ctx context.Context, now time.Time, limit int) ([]repository.DueLead, error)
	ListExhaustedLeads(ctx context.Context, quietPeriod time.Duration, limit int) ([]repository.CampaignLead, error)

	CreateSend(ctx context.Context, params repository.CreateSendParams) (repository.EmailSend, error)
	GetSend(ctx context.Context, id uuid.UUID) (repository.EmailSend, error)
	ListSendsForLead(ctx context.Context, campaignLeadID uuid.UUID) ([]repository.EmailSend, error)
	ListPendingApproval(ctx context.Context, campaignID uuid.UUID) ([]repository.EmailSend, error)
	UpdateSendStatusCAS(ctx context.Context, id uuid.UUID, from, to string, approvedBy *uuid.UUID) (repository.EmailSend, error)
	CancelPendingSends(ctx context.Context, campaignID uuid.UUID) (int64, error)
	MarkSent(ctx context.Context, id uuid.UUID, providerMessageID string, nextScheduledAt *time.Time) (repository.EmailSend, error)
	ApplyEngagement(ctx context.Context, providerMessageID, event string, payload json.RawMessage, bounceReason *string) (repository.EngagementResult, error)
	IncrementPositive(ctx context.Context, campaignID uuid.UUID) error
}

type Service struct {
	repo          Store
	bus           events.Bus
	logger        *logger.Logger
	policy        config.CampaignPolicyConfig
	sender        EmailSender
	composer      Composer
	classifier    ReplyClassifier
	leads         LeadDirectory
	dispatchQueue DispatchQueue
}

func New(
	repo Store,
	bus events.Bus,
	log *logger.Logger,
	policy config.CampaignPolicyConfig,
	sender EmailSender,
	composer Composer,
	classifier ReplyClassifier,
	leads LeadDirectory,
) *Service {
	return &Service{
		repo:       repo,
		bus:        bus,
		logger:     log,
		policy:     policy,
		sender:     sender,
		composer:   composer,
		classifier: classifier,
		leads:      leads,
	}
}

// SetDispatchQueue wires the optional scheduler client. Injected from main
// when Redis is configured.
func (s *Service) SetDispatchQueue(q DispatchQueue) {
	s.dispatchQueue = q
}

type CreateCampaignInput struct {
	Name                string
	TargetIndustries    []string
	TargetCompanySizes  []string
	TargetSeniorities   []string
	ValuePropositions   json.RawMessage
	TrustSignals        json.RawMessage
	SelectedTemplateIDs []uuid.UUID
	SequenceSteps       int
	DaysBetweenSteps    []int32
}

func (s *Service) Create(ctx context.Context, workspaceID uuid.UUID, input CreateCampaignInput) (repository.Campaign, error) {
	if input.SequenceSteps < 1 {
		input.SequenceSteps = 3
	}
	if len(input.DaysBetweenSteps) == 0 {
		input.DaysBetweenSteps = defaultDaysBetween(input.SequenceSteps)
	}
	if len(input.DaysBetweenSteps) != input.SequenceSteps-1 {
		return repository.Campaign{}, apperr.Validation("daysBetweenSteps must have one entry per gap between steps")
	}

	return s.repo.CreateCampaign(ctx, repository.CreateCampaignParams{
		WorkspaceID:         workspaceID,
		Name:                input.Name,
		TargetIndustries:    input.TargetIndustries,
		TargetCompanySizes:  input.TargetCompanySizes,
		TargetSeniorities:   input.TargetSeniorities,
		ValuePropositions:   input.ValuePropositions,
		TrustSignals:        input.TrustSignals,
		SelectedTemplateIDs: input.SelectedTemplateIDs,
		SequenceSteps:       input.SequenceSteps,
		DaysBetweenSteps:    input.DaysBetweenSteps,
	})
}

func defaultDaysBetween(steps int) []int32 {
	if steps <= 1 {
		return []int32{}
	}
	gaps := make([]int32, steps-1)
	for i := range gaps {
		gaps[i] = 3
	}
	return gaps
}

func (s *Service) Get(ctx context.Context, id, workspaceID uuid.UUID) (repository.Campaign, error) {
	c, err := s.repo.GetCampaign(ctx, id, workspaceID)
	if err != nil {
		if err == repository.ErrNotFound {
			return repository.Campaign{}, apperr.NotFound("campaign not found")
		}
		return repository.Campaign{}, err
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, workspaceID uuid.UUID, status string, limit, offset int) ([]repository.Campaign, int, error) {
	if status != "" && !domain.IsKnownCampaignStatus(status) {
		return nil, 0, apperr.Validation("unknown campaign status: " + status)
	}
	return s.repo.ListCampaigns(ctx, repository.ListCampaignsParams{
		WorkspaceID: workspaceID,
		Status:      status,
		Limit:       limit,
		Offset:      offset,
	})
}

type UpdateCampaignInput struct {
	Name                *string
	TargetIndustries    []string
	TargetCompanySizes  []string
	TargetSeniorities   []string
	ValuePropositions   json.RawMessage
	TrustSignals        json.RawMessage
	SelectedTemplateIDs []uuid.UUID
	SequenceSteps       *int
	DaysBetweenSteps    []int32
}

func (s *Service) Update(ctx context.Context, id, workspaceID uuid.UUID, input UpdateCampaignInput) (repository.Campaign, error) {
	if input.SequenceSteps != nil && *input.SequenceSteps < 1 {
		return repository.Campaign{}, apperr.Validation("sequenceSteps must be at least 1")
	}

	c, err := s.repo.UpdateCampaign(ctx, id, workspaceID, repository.UpdateCampaignParams{
		Name:                input.Name,
		TargetIndustries:    input.TargetIndustries,
		TargetCompanySizes:  input.TargetCompanySizes,
		TargetSeniorities:   input.TargetSeniorities,
		ValuePropositions:   input.ValuePropositions,
		TrustSignals:        input.TrustSignals,
		SelectedTemplateIDs: input.SelectedTemplateIDs,
		SequenceSteps:       input.SequenceSteps,
		DaysBetweenSteps:    input.DaysBetweenSteps,
	})
	if err != nil {
		if err == repository.ErrNotFound {
			// Either the campaign does not exist or it left draft.
			if _, getErr := s.repo.GetCampaign(ctx, id, workspaceID); getErr == nil {
				return repository.Campaign{}, apperr.Conflict("only draft campaigns can be edited")
			}
			return repository.Campaign{}, apperr.NotFound("campaign not found")
		}
		return repository.Campaign{}, err
	}
	return c, nil
}

type TransitionInput struct {
	To          string
	ActorID     uuid.UUID
	ReviewNotes string
}

// Transition moves the campaign through its lifecycle. The domain rules
// decide whether the arc and its preconditions hold; the repository's
// compare-and-set makes the move safe against concurrent transitions.
func (s *Service) Transition(ctx context.Context, id, workspaceID uuid.UUID, input TransitionInput) (repository.Campaign, error) {
	current, err := s.Get(ctx, id, workspaceID)
	if err != nil {
		return repository.Campaign{}, err
	}

	// A repeated transition is a conflict, not a silent no-op.
	if current.Status == input.To {
		return repository.Campaign{}, apperr.Conflict("campaign is already " + current.Status)
	}

	facts, err := s.repo.TransitionFacts(ctx, id, workspaceID)
	if err != nil {
		return repository.Campaign{}, err
	}
	if input.To == domain.CampaignStatusApproved {
		facts.HasReviewer = input.ActorID != uuid.Nil
	}

	if reason := domain.ValidateCampaignTransition(current.Status, input.To, facts); reason != "" {
		return repository.Campaign{}, apperr.Validation(reason)
	}

	stamps := repository.TransitionStamps{}
	switch input.To {
	case domain.CampaignStatusPendingReview:
		stamps.SubmittedForReview = true
	case domain.CampaignStatusApproved:
		stamps.ReviewedBy = &input.ActorID
		if input.ReviewNotes != "" {
			stamps.ReviewNotes = &input.ReviewNotes
		}
	case domain.CampaignStatusDraft:
		if input.ReviewNotes != "" {
			stamps.ReviewNotes = &input.ReviewNotes
		}
	}

	updated, err := s.repo.TransitionStatus(ctx, id, workspaceID, current.Status, input.To, stamps)
	if err != nil {
		if err == repository.ErrStaleStatus {
			return repository.Campaign{}, apperr.Conflict("campaign status changed, retry the transition")
		}
		if err == repository.ErrNotFound {
			return repository.Campaign{}, apperr.NotFound("campaign not found")
		}
		return repository.Campaign{}, err
	}

	s.applyTransitionEffects(ctx, updated, current.Status)

	s.logger.WithContext(ctx).CampaignTransition(updated.ID.String(), current.Status, updated.Status)
	s.bus.Publish(ctx, events.CampaignStatusChanged{
		BaseEvent:   events.NewBaseEvent(),
		CampaignID:  updated.ID,
		WorkspaceID: updated.WorkspaceID,
		OldStatus:   current.Status,
		NewStatus:   updated.Status,
	})

	return updated, nil
}

// applyTransitionEffects runs the side effects a transition implies. Under
// the cancel pause policy, pausing voids undispatched sends; archiving
// always does.
func (s *Service) applyTransitionEffects(ctx context.Context, c repository.Campaign, from string) {
	log := s.logger.WithContext(ctx)
	switch c.Status {
	case domain.CampaignStatusPaused:
		if s.policy.GetPausePolicy() == config.PausePolicyCancel {
			if n, err := s.repo.CancelPendingSends(ctx, c.ID); err != nil {
				log.DatabaseError("cancel pending sends", err)
			} else if n > 0 {
				log.Info("cancelled pending sends on pause", "campaignId", c.ID.String(), "count", n)
			}
		}
	case domain.CampaignStatusArchived:
		if _, err := s.repo.CancelPendingSends(ctx, c.ID); err != nil {
			log.DatabaseError("cancel pending sends", err)
		}
	}
}
