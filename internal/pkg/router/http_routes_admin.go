package router

import (
	"github.com/vigilohq/vigilo/app/controllers"
	"github.com/vigilohq/vigilo/internal/pkg/middleware"
	"github.com/gofiber/fiber/v2"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	admin := app.Group("/admin", middleware.RequireAdmin)
	admin.Get("/users", controllers.HandleAdminUsers)
	admin.Get("/webhooks", controllers.HandleAdminWebhookEvents)
}
