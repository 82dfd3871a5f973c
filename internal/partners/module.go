// Package partners owns the partner directory and the commission ledger.
package partners

import (
	"github.com/jackc/pgx/v5/pgxpool"

	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/partners/handler"
	"leadflow_backend/internal/partners/repository"
	"leadflow_backend/internal/partners/service"
	"leadflow_backend/platform/events"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/logger"
)

type Module struct {
	Service *service.Service
	handler *handler.Handler
}

func NewModule(pool *pgxpool.Pool, bus events.Bus, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, bus, log)
	return &Module{
		Service: svc,
		handler: handler.New(svc),
	}
}

func (m *Module) Name() string { return "partners" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("")
	group.Use(httpkit.RequireRole("admin"))
	m.handler.RegisterRoutes(group)
}
