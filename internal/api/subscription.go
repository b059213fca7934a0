package api

import (
	"github.com/gofiber/fiber/v3"

	"github.com/goalguild/core-service/internal/apierrors"
	"github.com/goalguild/core-service/internal/httputil"
	"github.com/goalguild/core-service/internal/subscription"
)

// SubscriptionHandler serves the Subscription Service (C10) webhook endpoint.
type SubscriptionHandler struct {
	subscriptions *subscription.Service
}

func NewSubscriptionHandler(subscriptions *subscription.Service) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions}
}

// HandleWebhook handles POST /api/v1/subscriptions/webhook. The signature rides in X-Webhook-Signature as a
// hex-encoded HMAC-SHA256 digest of the raw request body.
func (h *SubscriptionHandler) HandleWebhook(c fiber.Ctx) error {
	signature := c.Get("X-Webhook-Signature")
	if signature == "" {
		return httputil.Fail(c, fiber.StatusUnauthorized, apierrors.AuthSignature, "missing webhook signature")
	}

	if err := h.subscriptions.HandleWebhook(c.Context(), c.Body(), signature); err != nil {
		return httputil.HandleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
