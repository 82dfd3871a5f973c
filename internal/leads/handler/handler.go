package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leadflow_backend/internal/leads/service"
	"leadflow_backend/internal/leads/transport"
	"leadflow_backend/platform/httpkit"
)

type Handler struct {
	service *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	leads := group.Group("/leads")
	{
		leads.POST("", h.Create)
		leads.GET("", h.List)
		leads.GET("/:id", h.GetByID)
		leads.DELETE("/:id", h.Delete)
		leads.POST("/:id/route", h.Route)
	}
}

func (h *Handler) Create(c *gin.Context) {
	workspaceID, ok := httpkit.MustGetWorkspaceID(c)
	if !ok {
		return
	}

	var req transport.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	lead, err := h.service.Create(c.Request.Context(), workspaceID, service.CreateLeadInput{
		FirstName:           req.FirstName,
		LastName:            req.LastName,
		Email:               req.Email,
		Phone:               req.Phone,
		PhoneRegion:         req.PhoneRegion,
		LinkedInURL:         req.LinkedInURL,
		JobTitle:            req.JobTitle,
		CompanyName:         req.CompanyName,
		Industry:            req.Industry,
		CompanySize:         req.CompanySize,
		RevenueRange:        req.RevenueRange,
		Location:            req.Location,
		Source:              req.Source,
		UploadSource:        req.UploadSource,
		UploadedByPartnerID: req.UploadedByPartnerID,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, transport.ToLeadResponse(lead))
}

func (h *Handler) GetByID(c *gin.Context) {
	workspaceID, ok := httpkit.MustGetWorkspaceID(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}

	lead, err := h.service.GetByID(c.Request.Context(), id, workspaceID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func (h *Handler) List(c *gin.Context) {
	workspaceID, ok := httpkit.MustGetWorkspaceID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, total, err := h.service.List(c.Request.Context(), workspaceID, service.ListInput{
		Search:   c.Query("search"),
		Industry: c.Query("industry"),
		Source:   c.Query("source"),
		Limit:    limit,
		Offset:   offset,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToLeadListResponse(items, total))
}

func (h *Handler) Delete(c *gin.Context) {
	workspaceID, ok := httpkit.MustGetWorkspaceID(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}

	if httpkit.HandleError(c, h.service.Delete(c.Request.Context(), id, workspaceID)) {
		return
	}

	httpkit.OK(c, gin.H{"status": "deleted"})
}

func (h *Handler) Route(c *gin.Context) {
	workspaceID, ok := httpkit.MustGetWorkspaceID(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}

	var req transport.RouteLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	lead, err := h.service.RouteToWorkspace(c.Request.Context(), id, workspaceID, req.ToWorkspaceID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToLeadResponse(lead))
}
