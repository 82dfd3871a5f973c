package enrichment

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	campaignsservice "leadflow_backend/internal/campaigns/service"
	leadsservice "leadflow_backend/internal/leads/service"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"
)

type Service struct {
	enricher  Enricher
	campaigns *campaignsservice.Service
	leads     *leadsservice.Service
	logger    *logger.Logger
}

func NewService(enricher Enricher, campaigns *campaignsservice.Service, leads *leadsservice.Service, log *logger.Logger) *Service {
	return &Service{enricher: enricher, campaigns: campaigns, leads: leads, logger: log}
}

type CampaignResult struct {
	Enriched int `json:"enriched"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// EnrichCampaign runs enrichment for every pending lead on a campaign.
// Per-lead failures are counted and skipped; a lead that advanced while we
// were enriching it counts as skipped.
func (s *Service) EnrichCampaign(ctx context.Context, campaignID, workspaceID uuid.UUID) (CampaignResult, error) {
	var result CampaignResult
	log := s.logger.WithContext(ctx)

	campaign, err := s.campaigns.Get(ctx, campaignID, workspaceID)
	if err != nil {
		return result, err
	}
	valuePropIDs := extractValuePropIDs(campaign.ValuePropositions)

	pending, err := s.campaigns.ListCampaignLeads(ctx, campaignID, workspaceID, "pending")
	if err != nil {
		return result, err
	}

	for _, cl := range pending {
		lead, err := s.leads.GetByID(ctx, cl.LeadID, workspaceID)
		if err != nil {
			result.Failed++
			continue
		}

		req := EnrichRequest{
			Email:        lead.Email,
			FirstName:    lead.FirstName,
			LastName:     lead.LastName,
			ValuePropIDs: valuePropIDs,
		}
		if lead.CompanyName != nil {
			req.CompanyName = *lead.CompanyName
		}
		if lead.JobTitle != nil {
			req.JobTitle = *lead.JobTitle
		}
		if lead.Industry != nil {
			req.Industry = *lead.Industry
		}

		resp, err := s.enricher.Enrich(ctx, req)
		if err != nil {
			log.Warn("enrichment failed for lead", "campaignLeadId", cl.ID.String(), "error", err.Error())
			s.stampLead(ctx, cl.LeadID, workspaceID, "failed")
			result.Failed++
			continue
		}

		_, err = s.campaigns.ApplyEnrichment(ctx, cl.ID, campaignsservice.EnrichmentInput{
			EnrichmentData:     resp.Data,
			MatchedValuePropID: resp.MatchedValuePropID,
			MatchReasoning:     resp.MatchReasoning,
		})
		if err != nil {
			if apperr.Is(err, apperr.KindConflict) {
				result.Skipped++
				continue
			}
			result.Failed++
			continue
		}
		s.stampLead(ctx, cl.LeadID, workspaceID, "enriched")
		result.Enriched++
	}

	return result, nil
}

func (s *Service) stampLead(ctx context.Context, leadID, workspaceID uuid.UUID, status string) {
	if err := s.leads.SetEnrichmentStatus(ctx, leadID, workspaceID, status); err != nil {
		s.logger.WithContext(ctx).Warn("failed to stamp lead enrichment status", "leadId", leadID.String(), "status", status, "error", err.Error())
	}
}

func extractValuePropIDs(raw json.RawMessage) []string {
	var props []struct {
		ID string `json:"id"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &props) != nil {
		return nil
	}
	ids := make([]string, 0, len(props))
	for _, p := range props {
		if p.ID != "" {
			ids = append(ids, p.ID)
		}
	}
	return ids
}
