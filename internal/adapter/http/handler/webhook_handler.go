package handler

import (
	"errors"

	"ride-ledger/internal/core/ports"
	"ride-ledger/pkg/apperror"
	"ride-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// HeaderGatewaySignature carries "t=<unix>,v1=<hex hmac>" on gateway callbacks.
const HeaderGatewaySignature = "Gateway-Signature"

// WebhookHandler receives payment and payout rail callbacks. The signature is
// the only authentication on this route.
type WebhookHandler struct {
	eventSvc ports.GatewayEventService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(eventSvc ports.GatewayEventService) *WebhookHandler {
	return &WebhookHandler{eventSvc: eventSvc}
}

// Receive handles POST /api/v1/webhooks/gateway.
func (h *WebhookHandler) Receive(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		response.Error(c, apperror.Validation("cannot read request body"))
		return
	}

	err = h.eventSvc.HandleEvent(c.Request.Context(), payload, c.GetHeader(HeaderGatewaySignature))
	if errors.Is(err, apperror.ErrAlreadyProcessed()) {
		response.OK(c, gin.H{"received": true, "duplicate": true})
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"received": true})
}
