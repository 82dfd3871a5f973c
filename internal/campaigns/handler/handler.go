package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leadflow_backend/internal/campaigns/service"
	"leadflow_backend/internal/campaigns/transport"
	"leadflow_backend/platform/httpkit"
)

type Handler struct {
	service *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	campaigns := group.Group("/campaigns")
	{
		campaigns.POST("", h.Create)
		campaigns.GET("", h.List)
		campaigns.GET("/:id", h.GetByID)
		campaigns.PATCH("/:id", h.Update)
		campaigns.POST("/:id/transition", h.Transition)
		campaigns.POST("/:id/leads", h.AttachLeads)
		campaigns.GET("/:id/leads", h.ListLeads)
		campaigns.POST("/:id/leads/:leadId/compose", h.ComposeNextStep)
		campaigns.GET("/:id/leads/:leadId/sends", h.ListLeadSends)
		campaigns.GET("/:id/sends/pending", h.ListPendingApproval)
	}
	sends := group.Group("/sends")
	{
		sends.POST("/:id/approve", h.ApproveSend)
		sends.POST("/:id/cancel", h.CancelSend)
		sends.POST("/:id/dispatch", h.DispatchSend)
	}
}

func (h *Handler) Create(c *gin.Context) {
	workspaceID, ok := httpkit.MustGetWorkspaceID(c)
	if !ok {
		return
	}

	var req transport.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	campaign, err := h.service.Create(c.Request.Context(), workspaceID, service.CreateCampaignInput{
		Name:                req.Name,
		TargetIndustries:    req.TargetIndustries,
		TargetCompanySizes:  req.TargetCompanySizes,
		TargetSeniorities:   req.TargetSeniorities,
		ValuePropositions:   req.ValuePropositions,
		TrustSignals:        req.TrustSignals,
		SelectedTemplateIDs: req.SelectedTemplateIDs,
		SequenceSteps:       req.SequenceSteps,
		DaysBetweenSteps:    req.DaysBetweenSteps,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, transport.ToCampaignResponse(campaign))
}

func (h *Handler) GetByID(c *gin.Context) {
	workspaceID, ok := httpkit.MustGetWorkspaceID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid campaign id", nil)
		return
	}

	campaign, err := h.service.Get(c.Request.Context(), id, workspaceID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToCampaignResponse(campaign))
}

func (h *Handler) List(c *gin.Context) {
	workspaceID, ok := httpkit.MustGetWorkspaceID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "25"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, total, err := h.service.List(c.Request.Context(), workspaceID, c.Query("status"), limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToCampaignListResponse(items, total))
}

func (h *Handler) Update(c *gin.Context) {
	workspaceID, ok := httpkit.MustGetWorkspaceID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid campaign id", nil)
		return
	}

	var req transport.UpdateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	campaign, err := h.service.Update(c.Request.Context(), id, workspaceID, service.UpdateCampaignInput{
		Name:                req.Name,
		TargetIndustries:    req.TargetIndustries,
		TargetCompanySizes:  req.TargetCompanySizes,
		TargetSeniorities:   req.TargetSeniorities,
		ValuePropositions:   req.ValuePropositions,
		TrustSignals:        req.TrustSignals,
		SelectedTemplateIDs: req.SelectedTemplateIDs,
		SequenceSteps:       req.SequenceSteps,
		DaysBetweenSteps:    req.DaysBetweenSteps,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToCampaignResponse(campaign))
}

func (h *Handler) Transition(c *gin.Context) {
	workspaceID, ok := httpkit.MustGetWorkspaceID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid campaign id", nil)
		return
	}

	var req transport.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	campaign, err := h.service.Transition(c.Request.Context(), id, workspaceID, service.TransitionInput{
		To:          req.Status,
		ActorID:     identity.UserID(),
		ReviewNotes: req.ReviewNotes,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToCampaignResponse(campaign))
}

func (h *Handler) AttachLeads(c *gin.Context) {
	workspaceID, ok := httpkit.MustGetWorkspaceID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid campaign id", nil)
		return
	}

	var req transport.AttachLeadsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.service.AttachLeads(c.Request.Context(), id, workspaceID, req.LeadIDs)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToAttachLeadsResponse(result))
}

func (h *Handler) ListLeads(c *gin.Context) {
	workspaceID, ok := httpkit.MustGetWorkspaceID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid campaign id", nil)
		return
	}

	items, err := h.service.ListCampaignLeads(c.Request.Context(), id, workspaceID, c.Query("status"))
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]transport.CampaignLeadResponse, 0, len(items))
	for _, cl := range items {
		out = append(out, transport.ToCampaignLeadResponse(cl))
	}
	httpkit.OK(c, out)
}

func (h *Handler) ComposeNextStep(c *gin.Context) {
	workspaceID, ok := httpkit.MustGetWorkspaceID(c)
	if !ok {
		return
	}
	campaignID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid campaign id", nil)
		return
	}
	campaignLeadID, err := uuid.Parse(c.Param("leadId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid campaign lead id", nil)
		return
	}

	send, err := h.service.ComposeNextStep(c.Request.Context(), campaignID, workspaceID, campaignLeadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.ToEmailSendResponse(send))
}

func (h *Handler) ListLeadSends(c *gin.Context) {
	workspaceID, ok := httpkit.MustGetWorkspaceID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid campaign id", nil)
		return
	}
	leadID, err := uuid.Parse(c.Param("leadId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid campaign lead id", nil)
		return
	}

	items, err := h.service.ListLeadSends(c.Request.Context(), id, workspaceID, leadID, c.Query("status"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToEmailSendListResponse(items))
}

func (h *Handler) ListPendingApproval(c *gin.Context) {
	workspaceID, ok := httpkit.MustGetWorkspaceID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid campaign id", nil)
		return
	}

	items, err := h.service.ListPendingApproval(c.Request.Context(), id, workspaceID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToEmailSendListResponse(items))
}

func (h *Handler) ApproveSend(c *gin.Context) {
	workspaceID, ok := httpkit.MustGetWorkspaceID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid send id", nil)
		return
	}

	identity := httpkit.MustGetIdentity(c)
	send, err := h.service.ApproveSend(c.Request.Context(), id, workspaceID, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToEmailSendResponse(send))
}

func (h *Handler) CancelSend(c *gin.Context) {
	workspaceID, ok := httpkit.MustGetWorkspaceID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid send id", nil)
		return
	}

	send, err := h.service.CancelSend(c.Request.Context(), id, workspaceID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToEmailSendResponse(send))
}

func (h *Handler) DispatchSend(c *gin.Context) {
	workspaceID, ok := httpkit.MustGetWorkspaceID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid send id", nil)
		return
	}

	send, err := h.service.DispatchSendForWorkspace(c.Request.Context(), id, workspaceID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToEmailSendResponse(send))
}
