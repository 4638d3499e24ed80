package router

import (
	"strings"
	"time"

	"github.com/vigilohq/vigilo/app/controllers"
	"github.com/vigilohq/vigilo/internal/pkg/env"
	"github.com/vigilohq/vigilo/internal/pkg/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/csrf"
)

func (h HttpRouter) registerCSRFProtectedRoutes(app *fiber.App) {
	csrfConf := csrf.Config{
		KeyLookup:      "form:_csrf",
		ContextKey:     "csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		Expiration:     1 * time.Hour,
		CookieSecure:   !env.IsDev(),
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/")
		},
	}

	group := app.Group("", cors.New(), csrf.New(csrfConf))
	group.Get("/", controllers.HandleStart)
	group.Post("/login", controllers.HandleAuthLogin)
	group.Post("/register", controllers.HandleAuthRegister)
	group.Get("/activate", controllers.HandleAuthActivate)

	// Account settings
	group.Get("/user/settings", middleware.RequireAuth, controllers.HandleUserSettings)
	group.Post("/user/settings/api-key", middleware.RequireAuth, controllers.HandleUserAPIKeyGenerate)
	group.Post("/user/settings/api-key/revoke", middleware.RequireAuth, controllers.HandleUserAPIKeyRevoke)

	// Monitors
	group.Get("/monitors", middleware.RequireAuth, controllers.HandleMonitorList)
	group.Post("/monitors", middleware.RequireAuth, controllers.HandleMonitorCreate)
	group.Get("/monitors/:id", middleware.RequireAuth, controllers.HandleMonitorShow)
	group.Post("/monitors/:id", middleware.RequireAuth, controllers.HandleMonitorUpdate)
	group.Post("/monitors/:id/delete", middleware.RequireAuth, controllers.HandleMonitorDelete)
	group.Post("/monitors/:id/pause", middleware.RequireAuth, controllers.HandleMonitorPause)
	group.Post("/monitors/:id/resume", middleware.RequireAuth, controllers.HandleMonitorResume)

	// Alerts
	group.Get("/alerts", middleware.RequireAuth, controllers.HandleAlertList)
	group.Post("/alerts", middleware.RequireAuth, controllers.HandleAlertCreate)
	group.Post("/alerts/:id", middleware.RequireAuth, controllers.HandleAlertUpdate)
	group.Post("/alerts/:id/delete", middleware.RequireAuth, controllers.HandleAlertDelete)

	// Integrations
	group.Get("/integrations", middleware.RequireAuth, controllers.HandleIntegrationList)
	group.Post("/integrations", middleware.RequireAuth, controllers.HandleIntegrationCreate)
	group.Post("/integrations/:id/uninstall", middleware.RequireAuth, controllers.HandleIntegrationUninstall)

	// Billing
	group.Get("/billing", middleware.RequireAuth, controllers.HandleBillingOverview)
	group.Post("/billing/resync", middleware.RequireAuth, controllers.HandleBillingResync)
}
