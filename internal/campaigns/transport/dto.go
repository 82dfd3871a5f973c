package transport

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"leadflow_backend/internal/campaigns/repository"
)

type CreateCampaignRequest struct {
	Name                string          `json:"name" binding:"required,max=200"`
	TargetIndustries    []string        `json:"targetIndustries"`
	TargetCompanySizes  []string        `json:"targetCompanySizes"`
	TargetSeniorities   []string        `json:"targetSeniorities"`
	ValuePropositions   json.RawMessage `json:"valuePropositions"`
	TrustSignals        json.RawMessage `json:"trustSignals"`
	SelectedTemplateIDs []uuid.UUID     `json:"selectedTemplateIds"`
	SequenceSteps       int             `json:"sequenceSteps" binding:"omitempty,min=1,max=10"`
	DaysBetweenSteps    []int32         `json:"daysBetweenSteps"`
}

type UpdateCampaignRequest struct {
	Name                *string         `json:"name" binding:"omitempty,max=200"`
	TargetIndustries    []string        `json:"targetIndustries"`
	TargetCompanySizes  []string        `json:"targetCompanySizes"`
	TargetSeniorities   []string        `json:"targetSeniorities"`
	ValuePropositions   json.RawMessage `json:"valuePropositions"`
	TrustSignals        json.RawMessage `json:"trustSignals"`
	SelectedTemplateIDs []uuid.UUID     `json:"selectedTemplateIds"`
	SequenceSteps       *int            `json:"sequenceSteps" binding:"omitempty,min=1,max=10"`
	DaysBetweenSteps    []int32         `json:"daysBetweenSteps"`
}

type TransitionRequest struct {
	Status      string `json:"status" binding:"required"`
	ReviewNotes string `json:"reviewNotes" binding:"omitempty,max=2000"`
}

type AttachLeadsRequest struct {
	LeadIDs []uuid.UUID `json:"leadIds" binding:"required,min=1,max=500"`
}

type CampaignResponse struct {
	ID                   uuid.UUID       `json:"id"`
	WorkspaceID          uuid.UUID       `json:"workspaceId"`
	Name                 string          `json:"name"`
	Status               string          `json:"status"`
	TargetIndustries     []string        `json:"targetIndustries"`
	TargetCompanySizes   []string        `json:"targetCompanySizes"`
	TargetSeniorities    []string        `json:"targetSeniorities"`
	ValuePropositions    json.RawMessage `json:"valuePropositions"`
	TrustSignals         json.RawMessage `json:"trustSignals"`
	SelectedTemplateIDs  []uuid.UUID     `json:"selectedTemplateIds"`
	SequenceSteps        int             `json:"sequenceSteps"`
	DaysBetweenSteps     []int32         `json:"daysBetweenSteps"`
	SubmittedForReviewAt *time.Time      `json:"submittedForReviewAt,omitempty"`
	ReviewedBy           *uuid.UUID      `json:"reviewedBy,omitempty"`
	ReviewedAt           *time.Time      `json:"reviewedAt,omitempty"`
	ReviewNotes          *string         `json:"reviewNotes,omitempty"`
	TotalLeads           int             `json:"totalLeads"`
	TotalSent            int             `json:"totalSent"`
	TotalReplied         int             `json:"totalReplied"`
	TotalPositive        int             `json:"totalPositive"`
	TotalBounced         int             `json:"totalBounced"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

func ToCampaignResponse(c repository.Campaign) CampaignResponse {
	return CampaignResponse{
		ID:                   c.ID,
		WorkspaceID:          c.WorkspaceID,
		Name:                 c.Name,
		Status:               c.Status,
		TargetIndustries:     c.TargetIndustries,
		TargetCompanySizes:   c.TargetCompanySizes,
		TargetSeniorities:    c.TargetSeniorities,
		ValuePropositions:    c.ValuePropositions,
		TrustSignals:         c.TrustSignals,
		SelectedTemplateIDs:  c.SelectedTemplateIDs,
		SequenceSteps:        c.SequenceSteps,
		DaysBetweenSteps:     c.DaysBetweenSteps,
		SubmittedForReviewAt: c.SubmittedForReviewAt,
		ReviewedBy:           c.ReviewedBy,
		ReviewedAt:           c.ReviewedAt,
		ReviewNotes:          c.ReviewNotes,
		TotalLeads:           c.TotalLeads,
		TotalSent:            c.TotalSent,
		TotalReplied:         c.TotalReplied,
		TotalPositive:        c.TotalPositive,
		TotalBounced:         c.TotalBounced,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}
}

type CampaignListResponse struct {
	Items []CampaignResponse `json:"items"`
	Total int                `json:"total"`
}

func ToCampaignListResponse(items []repository.Campaign, total int) CampaignListResponse {
	out := CampaignListResponse{Items: make([]CampaignResponse, 0, len(items)), Total: total}
	for _, c := range items {
		out.Items = append(out.Items, ToCampaignResponse(c))
	}
	return out
}

type CampaignLeadResponse struct {
	ID                   uuid.UUID       `json:"id"`
	CampaignID           uuid.UUID       `json:"campaignId"`
	LeadID               uuid.UUID       `json:"leadId"`
	Status               string          `json:"status"`
	CurrentStep          int             `json:"currentStep"`
	EnrichmentData       json.RawMessage `json:"enrichmentData,omitempty"`
	EnrichedAt           *time.Time      `json:"enrichedAt,omitempty"`
	MatchedValuePropID   *string         `json:"matchedValuePropId,omitempty"`
	MatchReasoning       *string         `json:"matchReasoning,omitempty"`
	LastEmailSentAt      *time.Time      `json:"lastEmailSentAt,omitempty"`
	NextEmailScheduledAt *time.Time      `json:"nextEmailScheduledAt,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

func ToCampaignLeadResponse(cl repository.CampaignLead) CampaignLeadResponse {
	return CampaignLeadResponse{
		ID:                   cl.ID,
		CampaignID:           cl.CampaignID,
		LeadID:               cl.LeadID,
		Status:               cl.Status,
		CurrentStep:          cl.CurrentStep,
		EnrichmentData:       cl.EnrichmentData,
		EnrichedAt:           cl.EnrichedAt,
		MatchedValuePropID:   cl.MatchedValuePropID,
		MatchReasoning:       cl.MatchReasoning,
		LastEmailSentAt:      cl.LastEmailSentAt,
		NextEmailScheduledAt: cl.NextEmailScheduledAt,
		CreatedAt:            cl.CreatedAt,
		UpdatedAt:            cl.UpdatedAt,
	}
}

type AttachLeadsResponse struct {
	Attached  []CampaignLeadResponse `json:"attached"`
	Duplicate []uuid.UUID            `json:"duplicate,omitempty"`
}

func ToAttachLeadsResponse(result repository.AttachResult) AttachLeadsResponse {
	out := AttachLeadsResponse{
		Attached:  make([]CampaignLeadResponse, 0, len(result.Attached)),
		Duplicate: result.Duplicate,
	}
	for _, cl := range result.Attached {
		out.Attached = append(out.Attached, ToCampaignLeadResponse(cl))
	}
	return out
}

type EmailSendResponse struct {
	ID                uuid.UUID  `json:"id"`
	CampaignID        uuid.UUID  `json:"campaignId"`
	CampaignLeadID    uuid.UUID  `json:"campaignLeadId"`
	SequenceStep      int        `json:"sequenceStep"`
	Status            string     `json:"status"`
	Subject           string     `json:"subject"`
	BodyHTML          string     `json:"bodyHtml"`
	BodyText          string     `json:"bodyText"`
	ProviderMessageID *string    `json:"providerMessageId,omitempty"`
	ApprovedBy        *uuid.UUID `json:"approvedBy,omitempty"`
	SentAt            *time.Time `json:"sentAt,omitempty"`
	DeliveredAt       *time.Time `json:"deliveredAt,omitempty"`
	OpenedAt          *time.Time `json:"openedAt,omitempty"`
	ClickedAt         *time.Time `json:"clickedAt,omitempty"`
	RepliedAt         *time.Time `json:"repliedAt,omitempty"`
	BouncedAt         *time.Time `json:"bouncedAt,omitempty"`
	BounceReason      *string    `json:"bounceReason,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

func ToEmailSendResponse(es repository.EmailSend) EmailSendResponse {
	return EmailSendResponse{
		ID:                es.ID,
		CampaignID:        es.CampaignID,
		CampaignLeadID:    es.CampaignLeadID,
		SequenceStep:      es.SequenceStep,
		Status:            es.Status,
		Subject:           es.Subject,
		BodyHTML:          es.BodyHTML,
		BodyText:          es.BodyText,
		ProviderMessageID: es.ProviderMessageID,
		ApprovedBy:        es.ApprovedBy,
		SentAt:            es.SentAt,
		DeliveredAt:       es.DeliveredAt,
		OpenedAt:          es.OpenedAt,
		ClickedAt:         es.ClickedAt,
		RepliedAt:         es.RepliedAt,
		BouncedAt:         es.BouncedAt,
		BounceReason:      es.BounceReason,
		CreatedAt:         es.CreatedAt,
	}
}

func ToEmailSendListResponse(items []repository.EmailSend) []EmailSendResponse {
	out := make([]EmailSendResponse, 0, len(items))
	for _, es := range items {
		out = append(out, ToEmailSendResponse(es))
	}
	return out
}
