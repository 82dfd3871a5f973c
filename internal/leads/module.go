// Package leads owns lead ingestion, lookup, and the controlled
// workspace routing operation.
package leads

import (
	"github.com/jackc/pgx/v5/pgxpool"

	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/leads/handler"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/leads/service"
	"leadflow_backend/platform/events"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"
)

type Module struct {
	Service *service.Service
	handler *handler.Handler
}

func NewModule(pool *pgxpool.Pool, bus events.Bus, log *logger.Logger, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, bus, log, val)
	return &Module{
		Service: svc,
		handler: handler.New(svc),
	}
}

func (m *Module) Name() string { return "leads" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)
}
