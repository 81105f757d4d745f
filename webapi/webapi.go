// Package webapi wires the HTTP surface of the gift fund service:
// - custodial: custodial account and card issuing endpoints
// - payment: the Stripe webhook receiver
// - common: response helpers shared by the handlers
package webapi

import (
	"errors"
	"strings"

	"github.com/amirasaad/giftfund/pkg/app"
	"github.com/amirasaad/giftfund/webapi/common"
	custodialweb "github.com/amirasaad/giftfund/webapi/custodial"
	"github.com/amirasaad/giftfund/webapi/payment"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
)

// SetupApp Initialize Fiber with custom configuration
func SetupApp(app *app.App) *fiber.App {
	fiberApp := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return common.ProblemDetailsJSON(c, "Internal Server Error", err)
		},
	})
	fiberApp.Get("/swagger/*", swagger.New(swagger.Config{
		TryItOutEnabled:      true,
		PersistAuthorization: true,
	}))

	if rl := app.Config.RateLimit; rl != nil && rl.MaxRequests > 0 {
		fiberApp.Use(limiter.New(limiter.Config{
			Max:          rl.MaxRequests,
			Expiration:   rl.Window,
			KeyGenerator: clientKey,
			// Stripe retries are not throttled.
			Next: func(c *fiber.Ctx) bool {
				return c.Path() == "/v1/webhooks/stripe"
			},
			LimitReached: func(c *fiber.Ctx) error {
				return common.ProblemDetailsJSON(
					c,
					"Too Many Requests",
					errors.New("rate limit exceeded"),
					fiber.StatusTooManyRequests,
				)
			},
		}))
	}
	fiberApp.Use(recover.New())
	fiberApp.Use(logger.New())

	// Health check endpoint
	fiberApp.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("GiftFund API is running! 🎁")
	})

	if app.Deps.Metrics != nil {
		fiberApp.Get("/metrics", adaptor.HTTPHandler(app.Deps.Metrics.Handler()))
	}

	var observer payment.WebhookObserver
	if app.Deps.Metrics != nil {
		observer = app.Deps.Metrics
	}
	payment.StripeWebhookRoutes(fiberApp, app.CustodialService, observer, app.Deps.Logger)
	custodialweb.Routes(fiberApp, app.CustodialService, app.Config)
	return fiberApp
}

// clientKey uses X-Forwarded-For when behind a proxy, then X-Real-IP, then
// the direct peer address.
func clientKey(c *fiber.Ctx) string {
	if forwardedFor := c.Get("X-Forwarded-For"); forwardedFor != "" {
		if commaIndex := strings.Index(forwardedFor, ","); commaIndex != -1 {
			return strings.TrimSpace(forwardedFor[:commaIndex])
		}
		return strings.TrimSpace(forwardedFor)
	}
	if realIP := c.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return c.IP()
}
