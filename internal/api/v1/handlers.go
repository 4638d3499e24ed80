package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to existing controllers to keep behavior consistent
	"github.com/vigilohq/vigilo/app/controllers"
	"github.com/vigilohq/vigilo/internal/pkg/usercontext"
)

// APIServer implements the v1 JSON API surface.
type APIServer struct{}

// NewAPIServer creates a new API server instance
func NewAPIServer() *APIServer {
	return &APIServer{}
}

// RegisterHandlers attaches the v1 routes. The supplied middlewares run
// before every route except ping, which stays open for uptime probes of the
// API itself.
func RegisterHandlers(router fiber.Router, s *APIServer, middlewares ...fiber.Handler) {
	router.Get("/ping", s.GetPing)

	for _, mw := range middlewares {
		router.Use(mw)
	}
	router.Get("/account", s.GetAccount)
	router.Get("/monitors", s.GetMonitors)
	router.Post("/monitors", s.PostMonitor)
	router.Get("/monitors/:id", s.GetMonitor)
	router.Post("/monitors/:id", s.UpdateMonitor)
	router.Delete("/monitors/:id", s.DeleteMonitor)
	router.Get("/alerts", s.GetAlerts)
	router.Post("/alerts", s.PostAlert)
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ping": "pong"})
}

// GetAccount returns account information for the authenticated API key.
func (s *APIServer) GetAccount(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	return c.JSON(fiber.Map{
		"user_id":  userCtx.UserID,
		"username": userCtx.Username,
		"plan":     userCtx.Plan,
	})
}

func (s *APIServer) GetMonitors(c *fiber.Ctx) error {
	return controllers.HandleMonitorList(c)
}

func (s *APIServer) PostMonitor(c *fiber.Ctx) error {
	return controllers.HandleMonitorCreate(c)
}

func (s *APIServer) GetMonitor(c *fiber.Ctx) error {
	return controllers.HandleMonitorShow(c)
}

func (s *APIServer) UpdateMonitor(c *fiber.Ctx) error {
	return controllers.HandleMonitorUpdate(c)
}

func (s *APIServer) DeleteMonitor(c *fiber.Ctx) error {
	return controllers.HandleMonitorDelete(c)
}

func (s *APIServer) GetAlerts(c *fiber.Ctx) error {
	return controllers.HandleAlertList(c)
}

func (s *APIServer) PostAlert(c *fiber.Ctx) error {
	return controllers.HandleAlertCreate(c)
}
