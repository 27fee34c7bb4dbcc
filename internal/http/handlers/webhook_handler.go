// README: Payment provider webhook intake.
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cookroute/internal/modules/order"
	"cookroute/internal/modules/payment"
)

// webhookBodyLimit bounds the raw payload read; provider events are small.
const webhookBodyLimit = 64 << 10

type WebhookHandler struct {
	payments *payment.Service
	log      *zap.Logger
}

func NewWebhookHandler(svc *payment.Service, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{payments: svc, log: log}
}

// Stripe receives provider events. The signature is checked over the raw
// body before anything is parsed.
func (h *WebhookHandler) Stripe(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, webhookBodyLimit))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	orderID, err := h.payments.HandleWebhook(c.Request.Context(), body, c.GetHeader("Stripe-Signature"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"received": true, "orderId": orderID})
	case errors.Is(err, payment.ErrBadSignature),
		errors.Is(err, payment.ErrUnknownEvent),
		errors.Is(err, payment.ErrOrderMissing):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, order.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.log.Error("webhook processing failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
