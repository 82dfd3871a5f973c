package enrichment

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/platform/httpkit"
)

type Module struct {
	Service *Service
}

func NewModule(svc *Service) *Module {
	return &Module{Service: svc}
}

func (m *Module) Name() string { return "enrichment" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.POST("/campaigns/:id/enrich", m.enrichCampaign)
}

func (m *Module) enrichCampaign(c *gin.Context) {
	workspaceID, ok := httpkit.MustGetWorkspaceID(c)
	if !ok {
		return
	}
	campaignID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid campaign id", nil)
		return
	}

	result, err := m.Service.EnrichCampaign(c.Request.Context(), campaignID, workspaceID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
