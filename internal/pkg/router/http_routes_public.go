package router

import (
	"github.com/vigilohq/vigilo/app/controllers"
	"github.com/vigilohq/vigilo/internal/pkg/middleware"
	"github.com/gofiber/fiber/v2"
	gothfiber "github.com/shareed2k/goth_fiber"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	app.Get("/healthz", controllers.HandleHealth)

	// Public status pages
	app.Get("/status/:slug", controllers.HandlePublicStatus)

	// Auth
	app.Post("/logout", middleware.RequireAuth, controllers.HandleAuthLogout)

	// Workspace install OAuth (Slack / Discord)
	app.Get("/auth/:provider", middleware.RequireAuth, gothfiber.BeginAuthHandler)
	app.Get("/auth/:provider/callback", controllers.HandleIntegrationCallback)

	// Billing provider webhooks (no CSRF, signature-verified in controller)
	app.Post("/webhooks/stripe", controllers.HandleStripeWebhook)
}
