// Package webhook ingests delivery-provider callbacks. The endpoint is
// API-key authenticated and replay-safe: the same provider event delivered
// twice changes nothing.
package webhook

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"leadflow_backend/internal/campaigns/domain"
	campaignsservice "leadflow_backend/internal/campaigns/service"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/logger"
)

type Module struct {
	campaigns *campaignsservice.Service
	cfg       config.WebhookConfig
	logger    *logger.Logger
}

func NewModule(campaigns *campaignsservice.Service, cfg config.WebhookConfig, log *logger.Logger) *Module {
	return &Module{campaigns: campaigns, cfg: cfg, logger: log}
}

func (m *Module) Name() string { return "webhook" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/webhooks")
	group.Use(ctx.WebhookRateLimiter.RateLimit())
	group.POST("/email", m.requireAPIKey, m.ingestEmailEvent)
}

func (m *Module) requireAPIKey(c *gin.Context) {
	expected := m.cfg.GetWebhookAPIKey()
	provided := c.GetHeader("X-Api-Key")
	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) != 1 {
		httpkit.Error(c, http.StatusUnauthorized, "invalid webhook credentials", nil)
		c.Abort()
		return
	}
	c.Next()
}

// emailEventRequest is the provider's webhook payload shape.
type emailEventRequest struct {
	MessageID    string          `json:"messageId" binding:"required"`
	Event        string          `json:"event" binding:"required"`
	Timestamp    *time.Time      `json:"timestamp"`
	BounceReason string          `json:"bounceReason"`
	ReplyBody    string          `json:"replyBody"`
	Raw          json.RawMessage `json:"raw"`
}

var knownEvents = map[string]bool{
	domain.EngagementDelivered:    true,
	domain.EngagementOpened:       true,
	domain.EngagementClicked:      true,
	domain.EngagementReplied:      true,
	domain.EngagementBounced:      true,
	domain.EngagementUnsubscribed: true,
}

func (m *Module) ingestEmailEvent(c *gin.Context) {
	var req emailEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid webhook payload", err.Error())
		return
	}
	if !knownEvents[req.Event] {
		httpkit.Error(c, http.StatusBadRequest, "unknown event type: "+req.Event, nil)
		return
	}

	payload := req.Raw
	if payload == nil {
		payload, _ = json.Marshal(req)
	}

	result, err := m.campaigns.HandleProviderEvent(c.Request.Context(), campaignsservice.ProviderEventInput{
		ProviderMessageID: req.MessageID,
		EventType:         req.Event,
		Payload:           payload,
		BounceReason:      req.BounceReason,
		ReplyBody:         req.ReplyBody,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	status := "applied"
	if result.Duplicate {
		status = "duplicate"
	} else if !result.Applied {
		status = "ignored"
	}
	httpkit.OK(c, gin.H{"status": status, "sendStatus": result.Send.Status})
}
