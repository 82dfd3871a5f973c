// Package campaigns owns the outreach engine: campaign lifecycle, per-lead
// sequence tracking, and email send dispatch and engagement.
package campaigns

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"leadflow_backend/internal/campaigns/handler"
	"leadflow_backend/internal/campaigns/repository"
	"leadflow_backend/internal/campaigns/service"
	"leadflow_backend/internal/events"
	apphttp "leadflow_backend/internal/http"
	leadsservice "leadflow_backend/internal/leads/service"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"
)

type Module struct {
	Service *service.Service
	handler *handler.Handler
}

type Deps struct {
	Pool       *pgxpool.Pool
	Bus        events.Bus
	Logger     *logger.Logger
	Policy     config.CampaignPolicyConfig
	Sender     service.EmailSender
	Composer   service.Composer
	Classifier service.ReplyClassifier
	Leads      *leadsservice.Service
}

func NewModule(deps Deps) *Module {
	repo := repository.New(deps.Pool)
	svc := service.New(
		repo,
		deps.Bus,
		deps.Logger,
		deps.Policy,
		deps.Sender,
		deps.Composer,
		deps.Classifier,
		&leadDirectory{leads: deps.Leads},
	)
	return &Module{
		Service: svc,
		handler: handler.New(svc),
	}
}

func (m *Module) Name() string { return "campaigns" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)
}

// leadDirectory narrows the leads service to the contact lookup the
// campaign engine needs.
type leadDirectory struct {
	leads *leadsservice.Service
}

func (d *leadDirectory) Contact(ctx context.Context, leadID, workspaceID uuid.UUID) (service.LeadContact, error) {
	lead, err := d.leads.GetByID(ctx, leadID, workspaceID)
	if err != nil {
		return service.LeadContact{}, err
	}
	contact := service.LeadContact{
		Email:     lead.Email,
		FirstName: lead.FirstName,
		LastName:  lead.LastName,
	}
	if lead.CompanyName != nil {
		contact.CompanyName = *lead.CompanyName
	}
	if lead.JobTitle != nil {
		contact.JobTitle = *lead.JobTitle
	}
	return contact, nil
}
