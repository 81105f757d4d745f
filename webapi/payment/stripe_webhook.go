package payment

import (
	"context"
	"errors"
	"log/slog"

	"github.com/amirasaad/giftfund/pkg/provider/connect"
	custodialsvc "github.com/amirasaad/giftfund/pkg/service/custodial"
	"github.com/amirasaad/giftfund/webapi/common"
	"github.com/gofiber/fiber/v2"
)

// maxBodyBytes caps webhook payloads.
const maxBodyBytes = 65536

// WebhookProcessor verifies and applies a signed Stripe delivery.
type WebhookProcessor interface {
	HandleStripeWebhook(ctx context.Context, payload []byte, signature string) (string, custodialsvc.WebhookOutcome, error)
}

// WebhookObserver records one metric sample per delivery.
type WebhookObserver interface {
	ObserveWebhook(eventType, result string)
}

// StripeWebhookHandler handles incoming Stripe webhook events.
// @Summary Stripe webhook receiver
// @Description Verifies the Stripe-Signature header and applies account.updated and capability.updated events. Processing failures return 500 so Stripe retries.
// @Tags webhooks
// @Accept json
// @Produce json
// @Success 200 {object} map[string]bool
// @Failure 400 {object} common.ProblemDetails
// @Failure 500 {object} common.ProblemDetails
// @Router /v1/webhooks/stripe [post]
func StripeWebhookHandler(processor WebhookProcessor, observer WebhookObserver, logger *slog.Logger) fiber.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	observe := func(eventType, result string) {
		if observer != nil {
			observer.ObserveWebhook(eventType, result)
		}
	}
	return func(c *fiber.Ctx) error {
		signature := c.Get("Stripe-Signature")
		if signature == "" {
			observe("unknown", "rejected")
			return common.ProblemDetailsJSON(c, "Bad Request", errors.New("missing Stripe-Signature header"), fiber.StatusBadRequest)
		}

		payload := c.Body()
		if len(payload) == 0 {
			observe("unknown", "rejected")
			return common.ProblemDetailsJSON(c, "Bad Request", errors.New("empty request body"), fiber.StatusBadRequest)
		}
		if len(payload) > maxBodyBytes {
			observe("unknown", "rejected")
			return common.ProblemDetailsJSON(c, "Payload Too Large", errors.New("webhook payload too large"), fiber.StatusRequestEntityTooLarge)
		}

		eventType, outcome, err := processor.HandleStripeWebhook(c.UserContext(), payload, signature)
		if err != nil {
			if errors.Is(err, connect.ErrInvalidSignature) {
				observe("unknown", "rejected")
				logger.Warn("🚫 Rejected webhook with invalid signature")
				return common.ProblemDetailsJSON(c, "Bad Request", err, fiber.StatusBadRequest)
			}
			observe(eventType, "failed")
			logger.Error("❌ Webhook processing failed", "type", eventType, "error", err)
			return common.ProblemDetailsJSON(c, "Webhook processing failed", err, fiber.StatusInternalServerError)
		}

		observe(eventType, string(outcome))
		logger.Debug("📨 Webhook handled", "type", eventType, "outcome", outcome)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
	}
}

// StripeWebhookRoutes registers the unauthenticated webhook receiver.
func StripeWebhookRoutes(app *fiber.App, processor WebhookProcessor, observer WebhookObserver, logger *slog.Logger) {
	app.Post("/v1/webhooks/stripe", StripeWebhookHandler(processor, observer, logger))
}
