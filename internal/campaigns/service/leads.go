package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"leadflow_backend/internal/campaigns/domain"
	"leadflow_backend/internal/campaigns/repository"
	"leadflow_backend/internal/events"
	"leadflow_backend/platform/apperr"
)

// AttachLeads adds leads to a campaign. Attaching is an authoring action,
// allowed until the campaign reaches a terminal state.
func (s *Service) AttachLeads(ctx context.Context, campaignID, workspaceID uuid.UUID, leadIDs []uuid.UUID) (repository.AttachResult, error) {
	if len(leadIDs) == 0 {
		return repository.AttachResult{}, apperr.Validation("leadIds is required")
	}

	c, err := s.Get(ctx, campaignID, workspaceID)
	if err != nil {
		return repository.AttachResult{}, err
	}
	switch c.Status {
	case domain.CampaignStatusCompleted, domain.CampaignStatusArchived:
		return repository.AttachResult{}, apperr.Conflict("campaign is " + c.Status)
	}

	return s.repo.AttachLeads(ctx, campaignID, leadIDs)
}

func (s *Service) ListCampaignLeads(ctx context.Context, campaignID, workspaceID uuid.UUID, status string) ([]repository.CampaignLead, error) {
	if _, err := s.Get(ctx, campaignID, workspaceID); err != nil {
		return nil, err
	}
	return s.repo.ListCampaignLeads(ctx, campaignID, status)
}

type EnrichmentInput struct {
	EnrichmentData     json.RawMessage
	MatchedValuePropID string
	MatchReasoning     string
}

// ApplyEnrichment records enrichment output against a campaign lead and
// promotes it to ready. Late results against a lead that already advanced
// are rejected as conflicts.
func (s *Service) ApplyEnrichment(ctx context.Context, campaignLeadID uuid.UUID, input EnrichmentInput) (repository.CampaignLead, error) {
	params := repository.SetEnrichmentParams{EnrichmentData: input.EnrichmentData}
	if input.MatchedValuePropID != "" {
		params.MatchedValuePropID = &input.MatchedValuePropID
	}
	if input.MatchReasoning != "" {
		params.MatchReasoning = &input.MatchReasoning
	}

	cl, err := s.repo.SetEnrichment(ctx, campaignLeadID, params)
	if err != nil {
		if err == repository.ErrStaleStatus {
			return repository.CampaignLead{}, apperr.Conflict("campaign lead is no longer awaiting enrichment")
		}
		if err == repository.ErrNotFound {
			return repository.CampaignLead{}, apperr.NotFound("campaign lead not found")
		}
		return repository.CampaignLead{}, err
	}

	workspaceID := uuid.Nil
	if c, err := s.repo.GetCampaignByID(ctx, cl.CampaignID); err == nil {
		workspaceID = c.WorkspaceID
	}
	s.bus.Publish(ctx, events.CampaignLeadEnriched{
		BaseEvent:      events.NewBaseEvent(),
		CampaignID:     cl.CampaignID,
		CampaignLeadID: cl.ID,
		WorkspaceID:    workspaceID,
	})

	return cl, nil
}

// MarkLeadUnsubscribed halts the sequence for a lead that opted out.
func (s *Service) MarkLeadUnsubscribed(ctx context.Context, campaignLeadID uuid.UUID) (repository.CampaignLead, error) {
	cl, err := s.repo.GetCampaignLead(ctx, campaignLeadID)
	if err != nil {
		if err == repository.ErrNotFound {
			return repository.CampaignLead{}, apperr.NotFound("campaign lead not found")
		}
		return repository.CampaignLead{}, err
	}
	if domain.IsTerminalLeadStatus(cl.Status) {
		return cl, nil
	}
	return s.settleLead(ctx, cl, domain.LeadStatusUnsubscribed)
}

// settleLead moves a lead to a terminal outcome with a compare-and-set on
// its current status. A concurrent settle wins and this call reloads the row.
func (s *Service) settleLead(ctx context.Context, cl repository.CampaignLead, outcome string) (repository.CampaignLead, error) {
	if !domain.CanTransitionLead(cl.Status, outcome) {
		return repository.CampaignLead{}, apperr.Conflict("cannot move campaign lead from " + cl.Status + " to " + outcome)
	}
	updated, err := s.repo.UpdateLeadStatusCAS(ctx, cl.ID, cl.Status, outcome)
	if err == repository.ErrStaleStatus {
		current, getErr := s.repo.GetCampaignLead(ctx, cl.ID)
		if getErr != nil {
			return repository.CampaignLead{}, getErr
		}
		if domain.IsTerminalLeadStatus(current.Status) {
			return current, nil
		}
		return repository.CampaignLead{}, apperr.Conflict("campaign lead status changed, retry")
	}
	return updated, err
}
