// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"leadflow_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadCreated is published when a new lead is ingested.
type LeadCreated struct {
	BaseEvent
	LeadID      uuid.UUID `json:"leadId"`
	WorkspaceID uuid.UUID `json:"workspaceId"`
	Email       string    `json:"email"`
	Source      string    `json:"source,omitempty"`
}

func (e LeadCreated) EventName() string { return "leads.created" }

// LeadRouted is published by the controlled workspace reassignment operation.
type LeadRouted struct {
	BaseEvent
	LeadID        uuid.UUID `json:"leadId"`
	FromWorkspace uuid.UUID `json:"fromWorkspace"`
	ToWorkspace   uuid.UUID `json:"toWorkspace"`
	Reason        string    `json:"reason,omitempty"`
}

func (e LeadRouted) EventName() string { return "leads.routed" }

// =============================================================================
// Campaign Domain Events
// =============================================================================

// CampaignStatusChanged is published on every campaign state machine transition.
type CampaignStatusChanged struct {
	BaseEvent
	CampaignID  uuid.UUID `json:"campaignId"`
	WorkspaceID uuid.UUID `json:"workspaceId"`
	OldStatus   string    `json:"oldStatus"`
	NewStatus   string    `json:"newStatus"`
}

func (e CampaignStatusChanged) EventName() string { return "campaigns.status.changed" }

// CampaignLeadEnriched is published when enrichment data lands on a campaign lead.
type CampaignLeadEnriched struct {
	BaseEvent
	CampaignID     uuid.UUID `json:"campaignId"`
	CampaignLeadID uuid.UUID `json:"campaignLeadId"`
	WorkspaceID    uuid.UUID `json:"workspaceId"`
}

func (e CampaignLeadEnriched) EventName() string { return "campaigns.lead.enriched" }

// EmailSendDispatched is published when a message is handed to the delivery provider.
type EmailSendDispatched struct {
	BaseEvent
	CampaignID        uuid.UUID `json:"campaignId"`
	CampaignLeadID    uuid.UUID `json:"campaignLeadId"`
	EmailSendID       uuid.UUID `json:"emailSendId"`
	SequenceStep      int       `json:"sequenceStep"`
	ProviderMessageID string    `json:"providerMessageId"`
}

func (e EmailSendDispatched) EventName() string { return "campaigns.send.dispatched" }

// ReplyReceived is published when a reply webhook event lands, before
// classification has run.
type ReplyReceived struct {
	BaseEvent
	CampaignID     uuid.UUID `json:"campaignId"`
	CampaignLeadID uuid.UUID `json:"campaignLeadId"`
	EmailSendID    uuid.UUID `json:"emailSendId"`
	ReplyBody      string    `json:"replyBody,omitempty"`
}

func (e ReplyReceived) EventName() string { return "campaigns.reply.received" }

// =============================================================================
// Partner Domain Events
// =============================================================================

// PartnerCredited is published when a commission is credited for a lead sale.
type PartnerCredited struct {
	BaseEvent
	PartnerID      uuid.UUID `json:"partnerId"`
	LeadPurchaseID uuid.UUID `json:"leadPurchaseId"`
	Amount         string    `json:"amount"`
}

func (e PartnerCredited) EventName() string { return "partners.credited" }
