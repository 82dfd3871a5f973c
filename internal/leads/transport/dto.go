package transport

import (
	"time"

	"github.com/google/uuid"

	"leadflow_backend/internal/leads/repository"
)

type CreateLeadRequest struct {
	FirstName           string     `json:"firstName" binding:"omitempty,max=100"`
	LastName            string     `json:"lastName" binding:"omitempty,max=100"`
	Email               string     `json:"email" binding:"required,email"`
	Phone               string     `json:"phone" binding:"omitempty,max=32"`
	PhoneRegion         string     `json:"phoneRegion" binding:"omitempty,len=2"`
	LinkedInURL         string     `json:"linkedinUrl" binding:"omitempty,url"`
	JobTitle            string     `json:"jobTitle" binding:"omitempty,max=150"`
	CompanyName         string     `json:"companyName" binding:"omitempty,max=200"`
	Industry            string     `json:"industry" binding:"omitempty,max=100"`
	CompanySize         string     `json:"companySize" binding:"omitempty,max=50"`
	RevenueRange        string     `json:"revenueRange" binding:"omitempty,max=50"`
	Location            string     `json:"location" binding:"omitempty,max=200"`
	Source              string     `json:"source" binding:"omitempty,max=100"`
	UploadSource        string     `json:"uploadSource" binding:"omitempty,max=100"`
	UploadedByPartnerID *uuid.UUID `json:"uploadedByPartnerId"`
}

type RouteLeadRequest struct {
	ToWorkspaceID uuid.UUID `json:"toWorkspaceId" binding:"required"`
}

type LeadResponse struct {
	ID                  uuid.UUID  `json:"id"`
	WorkspaceID         uuid.UUID  `json:"workspaceId"`
	FirstName           string     `json:"firstName"`
	LastName            string     `json:"lastName"`
	Email               string     `json:"email"`
	Phone               *string    `json:"phone,omitempty"`
	LinkedInURL         *string    `json:"linkedinUrl,omitempty"`
	JobTitle            *string    `json:"jobTitle,omitempty"`
	CompanyName         *string    `json:"companyName,omitempty"`
	Industry            *string    `json:"industry,omitempty"`
	CompanySize         *string    `json:"companySize,omitempty"`
	RevenueRange        *string    `json:"revenueRange,omitempty"`
	Location            *string    `json:"location,omitempty"`
	Source              *string    `json:"source,omitempty"`
	UploadSource        *string    `json:"uploadSource,omitempty"`
	UploadedByPartnerID *uuid.UUID `json:"uploadedByPartnerId,omitempty"`
	EnrichmentStatus    string     `json:"enrichmentStatus"`
	DeliveryStatus      string     `json:"deliveryStatus"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

type LeadListResponse struct {
	Items []LeadResponse `json:"items"`
	Total int            `json:"total"`
}

func ToLeadResponse(lead repository.Lead) LeadResponse {
	return LeadResponse{
		ID:                  lead.ID,
		WorkspaceID:         lead.WorkspaceID,
		FirstName:           lead.FirstName,
		LastName:            lead.LastName,
		Email:               lead.Email,
		Phone:               lead.Phone,
		LinkedInURL:         lead.LinkedInURL,
		JobTitle:            lead.JobTitle,
		CompanyName:         lead.CompanyName,
		Industry:            lead.Industry,
		CompanySize:         lead.CompanySize,
		RevenueRange:        lead.RevenueRange,
		Location:            lead.Location,
		Source:              lead.Source,
		UploadSource:        lead.UploadSource,
		UploadedByPartnerID: lead.UploadedByPartnerID,
		EnrichmentStatus:    lead.EnrichmentStatus,
		DeliveryStatus:      lead.DeliveryStatus,
		CreatedAt:           lead.CreatedAt,
		UpdatedAt:           lead.UpdatedAt,
	}
}

func ToLeadListResponse(items []repository.Lead, total int) LeadListResponse {
	out := LeadListResponse{Items: make([]LeadResponse, 0, len(items)), Total: total}
	for _, lead := range items {
		out.Items = append(out.Items, ToLeadResponse(lead))
	}
	return out
}
