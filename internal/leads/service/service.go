package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"
)

type Service struct {
	repo      *repository.Repository
	bus       events.Bus
	logger    *logger.Logger
	validator *validator.Validator
}

func New(repo *repository.Repository, bus events.Bus, log *logger.Logger, val *validator.Validator) *Service {
	return &Service{repo: repo, bus: bus, logger: log, validator: val}
}

type CreateLeadInput struct {
	FirstName           string
	LastName            string
	Email               string
	Phone               string
	PhoneRegion         string
	LinkedInURL         string
	JobTitle            string
	CompanyName         string
	Industry            string
	CompanySize         string
	RevenueRange        string
	Location            string
	Source              string
	UploadSource        string
	UploadedByPartnerID *uuid.UUID
}

// NormalizePhone parses a raw phone number and returns it in E.164 form.
// Region is the ISO country hint used when the number has no + prefix.
func NormalizePhone(raw, region string) (string, error) {
	if region == "" {
		region = "US"
	}
	parsed, err := phonenumbers.Parse(raw, strings.ToUpper(region))
	if err != nil {
		return "", err
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", errors.New("number is not valid for region")
	}
	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}

func (s *Service) Create(ctx context.Context, workspaceID uuid.UUID, input CreateLeadInput) (repository.Lead, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if err := s.validator.Var(email, "required,email"); err != nil {
		return repository.Lead{}, apperr.Validation("a valid email address is required")
	}

	if _, err := s.repo.GetByEmail(ctx, email, workspaceID); err == nil {
		return repository.Lead{}, apperr.Conflict("a lead with this email already exists")
	} else if err != repository.ErrNotFound {
		return repository.Lead{}, err
	}

	params := repository.CreateLeadParams{
		WorkspaceID:         workspaceID,
		FirstName:           strings.TrimSpace(input.FirstName),
		LastName:            strings.TrimSpace(input.LastName),
		Email:               email,
		LinkedInURL:         optional(input.LinkedInURL),
		JobTitle:            optional(input.JobTitle),
		CompanyName:         optional(input.CompanyName),
		Industry:            optional(input.Industry),
		CompanySize:         optional(input.CompanySize),
		RevenueRange:        optional(input.RevenueRange),
		Location:            optional(input.Location),
		Source:              optional(input.Source),
		UploadSource:        optional(input.UploadSource),
		UploadedByPartnerID: input.UploadedByPartnerID,
	}

	if input.Phone != "" {
		normalized, err := NormalizePhone(input.Phone, input.PhoneRegion)
		if err != nil {
			return repository.Lead{}, apperr.Validation("invalid phone number: "+err.Error())
		}
		params.Phone = &normalized
	}

	lead, err := s.repo.Create(ctx, params)
	if err != nil {
		return repository.Lead{}, err
	}

	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      lead.ID,
		WorkspaceID: lead.WorkspaceID,
		Email:       lead.Email,
	})

	return lead, nil
}

func (s *Service) GetByID(ctx context.Context, id, workspaceID uuid.UUID) (repository.Lead, error) {
	lead, err := s.repo.GetByID(ctx, id, workspaceID)
	if err != nil {
		if err == repository.ErrNotFound {
			return repository.Lead{}, apperr.NotFound("lead not found")
		}
		return repository.Lead{}, err
	}
	return lead, nil
}

type ListInput struct {
	Search   string
	Industry string
	Source   string
	Limit    int
	Offset   int
}

func (s *Service) List(ctx context.Context, workspaceID uuid.UUID, input ListInput) ([]repository.Lead, int, error) {
	items, total, err := s.repo.List(ctx, repository.ListParams{
		WorkspaceID: workspaceID,
		Search:      input.Search,
		Industry:    input.Industry,
		Source:      input.Source,
		Limit:       input.Limit,
		Offset:      input.Offset,
	})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// RouteToWorkspace moves a lead into another workspace, typically when a
// partner-sourced lead is sold to a buyer workspace.
func (s *Service) RouteToWorkspace(ctx context.Context, leadID, fromWorkspace, toWorkspace uuid.UUID) (repository.Lead, error) {
	if fromWorkspace == toWorkspace {
		return repository.Lead{}, apperr.Validation("lead is already in the target workspace")
	}

	lead, err := s.repo.RouteToWorkspace(ctx, leadID, fromWorkspace, toWorkspace)
	if err != nil {
		if err == repository.ErrNotFound {
			return repository.Lead{}, apperr.NotFound("lead not found")
		}
		return repository.Lead{}, err
	}

	s.bus.Publish(ctx, events.LeadRouted{
		BaseEvent:     events.NewBaseEvent(),
		LeadID:        lead.ID,
		FromWorkspace: fromWorkspace,
		ToWorkspace:   toWorkspace,
	})

	return lead, nil
}

// SetEnrichmentStatus stamps the lead record's enrichment outcome. Called by
// the enrichment pipeline after each attempt.
func (s *Service) SetEnrichmentStatus(ctx context.Context, id, workspaceID uuid.UUID, status string) error {
	if status != "enriched" && status != "failed" && status != "none" {
		return apperr.Validation("unknown enrichment status: " + status)
	}
	if err := s.repo.SetEnrichmentStatus(ctx, id, workspaceID, status); err != nil {
		if err == repository.ErrNotFound {
			return apperr.NotFound("lead not found")
		}
		return err
	}
	return nil
}

// Delete soft-deletes a lead; it drops out of listings and lookups but the
// row stays for send history.
func (s *Service) Delete(ctx context.Context, id, workspaceID uuid.UUID) error {
	if err := s.repo.SoftDelete(ctx, id, workspaceID); err != nil {
		if err == repository.ErrNotFound {
			return apperr.NotFound("lead not found")
		}
		return err
	}
	return nil
}

func optional(s string) *string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
