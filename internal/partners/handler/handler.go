package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leadflow_backend/internal/partners/service"
	"leadflow_backend/internal/partners/transport"
	"leadflow_backend/platform/httpkit"
)

type Handler struct {
	service *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	partners := group.Group("/partners")
	{
		partners.POST("", h.Create)
		partners.GET("/:id", h.GetByID)
		partners.GET("/:id/transactions", h.ListTransactions)
		partners.GET("/:id/ledger", h.Ledger)
		partners.POST("/:id/sales", h.RecordSale)
		partners.POST("/:id/payouts", h.RequestPayout)
		partners.POST("/:id/payouts/complete", h.CompletePayout)
		partners.POST("/:id/adjustments", h.Adjust)
	}
}

func (h *Handler) Create(c *gin.Context) {
	var req transport.CreatePartnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	partner, err := h.service.CreatePartner(c.Request.Context(), service.CreatePartnerInput{
		BusinessName: req.BusinessName,
		ContactName:  req.ContactName,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	_, credits, err := h.service.GetPartner(c.Request.Context(), partner.ID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.ToPartnerResponse(partner, credits))
}

func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid partner id", nil)
		return
	}

	partner, credits, err := h.service.GetPartner(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToPartnerResponse(partner, credits))
}

func (h *Handler) ListTransactions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid partner id", nil)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, err := h.service.ListTransactions(c.Request.Context(), id, limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]transport.TransactionResponse, 0, len(items))
	for _, t := range items {
		out = append(out, transport.ToTransactionResponse(t))
	}
	httpkit.OK(c, out)
}

func (h *Handler) Ledger(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid partner id", nil)
		return
	}

	snapshot, err := h.service.ReconcileLedger(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLedgerResponse(snapshot))
}

func (h *Handler) RecordSale(c *gin.Context) {
	partnerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid partner id", nil)
		return
	}

	var req transport.RecordSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	purchase, tx, err := h.service.RecordSale(c.Request.Context(), service.RecordSaleInput{
		LeadID:      req.LeadID,
		WorkspaceID: req.WorkspaceID,
		PartnerID:   partnerID,
		SaleAmount:  req.SaleAmount,
		Commission:  req.Commission,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, transport.RecordSaleResponse{
		PurchaseID:  purchase.ID,
		Transaction: transport.ToTransactionResponse(tx),
	})
}

func (h *Handler) RequestPayout(c *gin.Context) {
	partnerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid partner id", nil)
		return
	}

	var req transport.PayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	tx, err := h.service.RequestPayout(c.Request.Context(), partnerID, req.Amount)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.ToTransactionResponse(tx))
}

func (h *Handler) CompletePayout(c *gin.Context) {
	partnerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid partner id", nil)
		return
	}

	var req transport.CompletePayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	tx, err := h.service.CompletePayout(c.Request.Context(), partnerID, req.PayoutRequestID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToTransactionResponse(tx))
}

func (h *Handler) Adjust(c *gin.Context) {
	partnerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid partner id", nil)
		return
	}

	var req transport.AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	tx, err := h.service.Adjust(c.Request.Context(), partnerID, req.Amount, req.Description)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.ToTransactionResponse(tx))
}
