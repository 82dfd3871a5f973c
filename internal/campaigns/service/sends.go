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
)

// ComposeNextStep renders and stages the next sequence email for a campaign
// lead. The send is created pending approval unless auto-approval is on.
func (s *Service) ComposeNextStep(ctx context.Context, campaignID, workspaceID, campaignLeadID uuid.UUID) (repository.EmailSend, error) {
	c, err := s.Get(ctx, campaignID, workspaceID)
	if err != nil {
		return repository.EmailSend{}, err
	}

	cl, err := s.repo.GetCampaignLead(ctx, campaignLeadID)
	if err != nil {
		if err == repository.ErrNotFound {
			return repository.EmailSend{}, apperr.NotFound("campaign lead not found")
		}
		return repository.EmailSend{}, err
	}
	if cl.CampaignID != campaignID {
		return repository.EmailSend{}, apperr.NotFound("campaign lead not found")
	}

	if reason := domain.ValidateStepAdvance(cl.Status, cl.CurrentStep, c.SequenceSteps); reason != "" {
		return repository.EmailSend{}, apperr.Validation(reason)
	}
	step := cl.CurrentStep + 1

	contact, err := s.leads.Contact(ctx, cl.LeadID, workspaceID)
	if err != nil {
		return repository.EmailSend{}, err
	}

	composed, err := s.composeForLead(ctx, c, cl, contact, step)
	if err != nil {
		return repository.EmailSend{}, err
	}

	initialStatus := domain.SendStatusPendingApproval
	if s.policy.GetAutoApproveSends() {
		initialStatus = domain.SendStatusApproved
	}

	es, err := s.repo.CreateSend(ctx, repository.CreateSendParams{
		CampaignID:     campaignID,
		CampaignLeadID: campaignLeadID,
		SequenceStep:   step,
		Subject:        composed.Subject,
		BodyHTML:       composed.BodyHTML,
		BodyText:       composed.BodyText,
		InitialStatus:  initialStatus,
	})
	if err != nil {
		switch err {
		case repository.ErrCampaignNotActive:
			return repository.EmailSend{}, apperr.Conflict("campaign is not active")
		case repository.ErrStepOutOfRange:
			return repository.EmailSend{}, apperr.Validation("sequence exhausted")
		case repository.ErrNotFound:
			return repository.EmailSend{}, apperr.NotFound("campaign not found")
		}
		return repository.EmailSend{}, err
	}
	return es, nil
}

// valueProp is the authored offer shape stored in the campaign's
// value_propositions JSON.
type valueProp struct {
	ID       string `json:"id"`
	Headline string `json:"headline"`
	Body     string `json:"body"`
}

type trustSignal struct {
	Text string `json:"text"`
}

func (s *Service) composeForLead(ctx context.Context, c repository.Campaign, cl repository.CampaignLead, contact LeadContact, step int) (ComposedEmail, error) {
	input := ComposeInput{
		Step:        step,
		FirstName:   contact.FirstName,
		LastName:    contact.LastName,
		CompanyName: contact.CompanyName,
		JobTitle:    contact.JobTitle,
	}

	var props []valueProp
	if len(c.ValuePropositions) > 0 {
		if err := json.Unmarshal(c.ValuePropositions, &props); err != nil {
			return ComposedEmail{}, apperr.Validation("campaign value propositions are malformed")
		}
	}
	if cl.MatchedValuePropID != nil {
		input.MatchedValuePropID = *cl.MatchedValuePropID
		for _, p := range props {
			if p.ID == *cl.MatchedValuePropID {
				input.ValueProposition = p.Headline
				if p.Body != "" {
					input.ValueProposition = p.Headline + ": " + p.Body
				}
				break
			}
		}
	}
	if input.ValueProposition == "" && len(props) > 0 {
		input.ValueProposition = props[0].Headline
	}

	var signals []trustSignal
	if len(c.TrustSignals) > 0 {
		if err := json.Unmarshal(c.TrustSignals, &signals); err == nil && len(signals) > 0 {
			input.TrustSignal = signals[0].Text
		}
	}

	return s.composer.Compose(ctx, input)
}

// ApproveSend moves a staged send from pending approval to approved.
func (s *Service) ApproveSend(ctx context.Context, sendID, workspaceID, approverID uuid.UUID) (repository.EmailSend, error) {
	es, err := s.getWorkspaceSend(ctx, sendID, workspaceID)
	if err != nil {
		return repository.EmailSend{}, err
	}
	if reason := domain.ValidateSendTransition(es.Status, domain.SendStatusApproved); reason != "" {
		return repository.EmailSend{}, apperr.Conflict(reason)
	}

	updated, err := s.repo.UpdateSendStatusCAS(ctx, sendID, es.Status, domain.SendStatusApproved, &approverID)
	if err == repository.ErrStaleStatus {
		return repository.EmailSend{}, apperr.Conflict("send status changed, retry")
	}
	if err != nil {
		return repository.EmailSend{}, err
	}

	if s.dispatchQueue != nil {
		if qErr := s.dispatchQueue.ScheduleDispatch(ctx, sendID.String(), time.Now()); qErr != nil {
			// The sequence tick will pick the send up; approval itself stands.
			s.logger.WithContext(ctx).Warn("failed to queue dispatch after approval", "emailSendId", sendID, "error", qErr)
		}
	}
	return updated, nil
}

// CancelSend voids a send that has not yet been dispatched.
func (s *Service) CancelSend(ctx context.Context, sendID, workspaceID uuid.UUID) (repository.EmailSend, error) {
	es, err := s.getWorkspaceSend(ctx, sendID, workspaceID)
	if err != nil {
		return repository.EmailSend{}, err
	}
	if reason := domain.ValidateSendTransition(es.Status, domain.SendStatusCancelled); reason != "" {
		return repository.EmailSend{}, apperr.Conflict(reason)
	}

	updated, err := s.repo.UpdateSendStatusCAS(ctx, sendID, es.Status, domain.SendStatusCancelled, nil)
	if err == repository.ErrStaleStatus {
		return repository.EmailSend{}, apperr.Conflict("send status changed, retry")
	}
	return updated, err
}

func (s *Service) getWorkspaceSend(ctx context.Context, sendID, workspaceID uuid.UUID) (repository.EmailSend, error) {
	es, err := s.repo.GetSend(ctx, sendID)
	if err != nil {
		if err == repository.ErrNotFound {
			return repository.EmailSend{}, apperr.NotFound("send not found")
		}
		return repository.EmailSend{}, err
	}
	c, err := s.repo.GetCampaignByID(ctx, es.CampaignID)
	if err != nil {
		return repository.EmailSend{}, err
	}
	if c.WorkspaceID != workspaceID {
		return repository.EmailSend{}, apperr.NotFound("send not found")
	}
	return es, nil
}

// ListLeadSends returns the send history for one campaign lead, optionally
// filtered by send status.
func (s *Service) ListLeadSends(ctx context.Context, campaignID, workspaceID, campaignLeadID uuid.UUID, status string) ([]repository.EmailSend, error) {
	if status != "" && !domain.IsKnownSendStatus(status) {
		return nil, apperr.Validation("unknown send status: " + status)
	}
	if _, err := s.Get(ctx, campaignID, workspaceID); err != nil {
		return nil, err
	}

	cl, err := s.repo.GetCampaignLead(ctx, campaignLeadID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.NotFound("campaign lead not found")
		}
		return nil, err
	}
	if cl.CampaignID != campaignID {
		return nil, apperr.NotFound("campaign lead not found")
	}

	sends, err := s.repo.ListSendsForLead(ctx, campaignLeadID)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return sends, nil
	}
	filtered := make([]repository.EmailSend, 0, len(sends))
	for _, es := range sends {
		if es.Status == status {
			filtered = append(filtered, es)
		}
	}
	return filtered, nil
}

func (s *Service) ListPendingApproval(ctx context.Context, campaignID, workspaceID uuid.UUID) ([]repository.EmailSend, error) {
	if _, err := s.Get(ctx, campaignID, workspaceID); err != nil {
		return nil, err
	}
	return s.repo.ListPendingApproval(ctx, campaignID)
}

// DispatchSendForWorkspace scopes a dispatch request to the caller's
// workspace before handing off.
func (s *Service) DispatchSendForWorkspace(ctx context.Context, sendID, workspaceID uuid.UUID) (repository.EmailSend, error) {
	if _, err := s.getWorkspaceSend(ctx, sendID, workspaceID); err != nil {
		return repository.EmailSend{}, err
	}
	return s.DispatchSend(ctx, sendID)
}

// DispatchSend hands an approved send to the delivery provider and records
// the dispatch. The next step's due time comes from the campaign's
// days_between_steps gaps.
func (s *Service) DispatchSend(ctx context.Context, sendID uuid.UUID) (repository.EmailSend, error) {
	es, err := s.repo.GetSend(ctx, sendID)
	if err != nil {
		if err == repository.ErrNotFound {
			return repository.EmailSend{}, apperr.NotFound("send not found")
		}
		return repository.EmailSend{}, err
	}
	if reason := domain.ValidateSendTransition(es.Status, domain.SendStatusSent); reason != "" {
		return repository.EmailSend{}, apperr.Conflict(reason)
	}

	c, err := s.repo.GetCampaignByID(ctx, es.CampaignID)
	if err != nil {
		return repository.EmailSend{}, err
	}
	if !domain.CampaignAllowsSending(c.Status) {
		return repository.EmailSend{}, apperr.Conflict("campaign is not active")
	}

	cl, err := s.repo.GetCampaignLead(ctx, es.CampaignLeadID)
	if err != nil {
		return repository.EmailSend{}, err
	}
	if domain.IsTerminalLeadStatus(cl.Status) {
		return repository.EmailSend{}, apperr.Conflict("campaign lead has left the sequence")
	}
	contact, err := s.leads.Contact(ctx, cl.LeadID, c.WorkspaceID)
	if err != nil {
		return repository.EmailSend{}, err
	}

	providerMessageID, err := s.sender.Send(ctx, contact.Email, es.Subject, es.BodyHTML, es.BodyText)
	if err != nil {
		return repository.EmailSend{}, apperr.External("email provider dispatch failed", err)
	}

	updated, err := s.repo.MarkSent(ctx, sendID, providerMessageID, nextDue(c, es.SequenceStep))
	if err != nil {
		switch err {
		case repository.ErrStaleStatus:
			return repository.EmailSend{}, apperr.Conflict("send or lead status changed during dispatch")
		case repository.ErrCampaignNotActive:
			return repository.EmailSend{}, apperr.Conflict("campaign is not active")
		}
		return repository.EmailSend{}, err
	}

	s.bus.Publish(ctx, events.EmailSendDispatched{
		BaseEvent:         events.NewBaseEvent(),
		CampaignID:        updated.CampaignID,
		CampaignLeadID:    updated.CampaignLeadID,
		EmailSendID:       updated.ID,
		SequenceStep:      updated.SequenceStep,
		ProviderMessageID: providerMessageID,
	})

	return updated, nil
}

// nextDue computes when the following step becomes due, nil after the
// final step.
func nextDue(c repository.Campaign, sentStep int) *time.Time {
	if sentStep >= c.SequenceSteps {
		return nil
	}
	gapDays := int32(3)
	if idx := sentStep - 1; idx >= 0 && idx < len(c.DaysBetweenSteps) {
		gapDays = c.DaysBetweenSteps[idx]
	}
	due := time.Now().AddDate(0, 0, int(gapDays))
	return &due
}

type ProviderEventInput struct {
	ProviderMessageID string
	EventType         string
	Payload           json.RawMessage
	BounceReason      string
	ReplyBody         string
}

// HandleProviderEvent folds one delivery-provider webhook event into the
// send, the campaign lead, and the campaign counters. Replayed events are
// absorbed without effect.
func (s *Service) HandleProviderEvent(ctx context.Context, input ProviderEventInput) (repository.EngagementResult, error) {
	log := s.logger.WithContext(ctx)

	// Classify before the dedup row commits: a classifier outage must fail
	// the whole ingestion so the provider retries, otherwise the replay is
	// absorbed as a duplicate and the verdict is lost for good.
	verdict := "neutral"
	if input.EventType == domain.EngagementReplied && s.classifier != nil && input.ReplyBody != "" {
		v, err := s.classifier.ClassifyReply(ctx, input.ReplyBody)
		if err != nil {
			return repository.EngagementResult{}, apperr.External("reply classification failed", err)
		}
		verdict = v
	}

	var bounceReason *string
	if input.BounceReason != "" {
		bounceReason = &input.BounceReason
	}

	result, err := s.repo.ApplyEngagement(ctx, input.ProviderMessageID, input.EventType, input.Payload, bounceReason)
	if err != nil {
		if err == repository.ErrNotFound {
			return result, apperr.NotFound("no send recorded for provider message")
		}
		return result, err
	}
	log.ProviderEvent(input.EventType, input.ProviderMessageID, result.Duplicate)
	if result.Duplicate {
		return result, nil
	}

	switch input.EventType {
	case domain.EngagementBounced:
		if result.Applied {
			s.settleLeadFromSignal(ctx, result.Send, domain.LeadStatusBounced)
		}
	case domain.EngagementReplied:
		if result.Applied {
			s.handleReply(ctx, result.Send, input.ReplyBody, verdict)
		}
	case domain.EngagementUnsubscribed:
		// Not an engagement rank move, but the lead opts out regardless of
		// where the message stood.
		if _, err := s.MarkLeadUnsubscribed(ctx, result.Send.CampaignLeadID); err != nil {
			log.Warn("failed to mark lead unsubscribed", "campaignLeadId", result.Send.CampaignLeadID.String(), "error", err.Error())
		}
	}

	return result, nil
}

func (s *Service) handleReply(ctx context.Context, es repository.EmailSend, replyBody, verdict string) {
	log := s.logger.WithContext(ctx)

	s.bus.Publish(ctx, events.ReplyReceived{
		BaseEvent:      events.NewBaseEvent(),
		CampaignID:     es.CampaignID,
		CampaignLeadID: es.CampaignLeadID,
		EmailSendID:    es.ID,
		ReplyBody:      replyBody,
	})

	// A bounce that raced in ahead of this reply still wins.
	bounced := false
	if current, err := s.repo.GetSend(ctx, es.ID); err == nil {
		bounced = current.Status == domain.SendStatusBounced
	}

	var outcome string
	switch domain.ResolveSignalConflict(bounced, verdict) {
	case domain.LeadStatusBounced:
		outcome = domain.LeadStatusBounced
	case "positive":
		outcome = domain.LeadStatusPositive
	case "negative":
		outcome = domain.LeadStatusNegative
	default:
		return
	}

	settled := s.settleLeadFromSignal(ctx, es, outcome)

	if settled && outcome == domain.LeadStatusPositive {
		if err := s.repo.IncrementPositive(ctx, es.CampaignID); err != nil {
			log.DatabaseError("increment positive counter", err)
		}
	}
}

func (s *Service) settleLeadFromSignal(ctx context.Context, es repository.EmailSend, outcome string) bool {
	log := s.logger.WithContext(ctx)

	cl, err := s.repo.GetCampaignLead(ctx, es.CampaignLeadID)
	if err != nil {
		log.DatabaseError("load campaign lead for settle", err)
		return false
	}
	if domain.IsTerminalLeadStatus(cl.Status) {
		return false
	}
	if _, err := s.settleLead(ctx, cl, outcome); err != nil {
		log.Warn("failed to settle campaign lead", "campaignLeadId", cl.ID.String(), "outcome", outcome, "error", err.Error())
		return false
	}
	return true
}

// ProcessDueLeads composes the next step for every lead whose send is due.
// Under auto-approval the composed send dispatches immediately; otherwise it
// waits in the approval queue. Per-lead failures are logged and skipped so
// one bad lead cannot stall the tick.
func (s *Service) ProcessDueLeads(ctx context.Context, now time.Time, limit int) (composed, dispatched int, err error) {
	log := s.logger.WithContext(ctx)

	due, err := s.repo.ListDueLeads(ctx, now, limit)
	if err != nil {
		return 0, 0, err
	}

	for _, dl := range due {
		es, err := s.ComposeNextStep(ctx, dl.CampaignID, dl.WorkspaceID, dl.ID)
		if err != nil {
			if apperr.Is(err, apperr.KindConflict) || apperr.Is(err, apperr.KindValidation) {
				continue
			}
			log.Warn("failed to compose due send", "campaignLeadId", dl.ID.String(), "error", err.Error())
			continue
		}
		composed++

		if es.Status != domain.SendStatusApproved {
			continue
		}
		if _, err := s.DispatchSend(ctx, es.ID); err != nil {
			log.Warn("failed to dispatch due send", "emailSendId", es.ID.String(), "error", err.Error())
			continue
		}
		dispatched++
	}
	return composed, dispatched, nil
}

// SweepNoResponse settles leads whose sequence ran out without a reply.
func (s *Service) SweepNoResponse(ctx context.Context, quietPeriod time.Duration, limit int) (int, error) {
	leads, err := s.repo.ListExhaustedLeads(ctx, quietPeriod, limit)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, cl := range leads {
		if _, err := s.repo.UpdateLeadStatusCAS(ctx, cl.ID, domain.LeadStatusInSequence, domain.LeadStatusNoResponse); err != nil {
			if err == repository.ErrStaleStatus || err == repository.ErrNotFound {
				continue
			}
			return settled, err
		}
		settled++
	}
	return settled, nil
}
