package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/vigilohq/vigilo/app/models"
	"github.com/vigilohq/vigilo/internal/pkg/database"
	"github.com/vigilohq/vigilo/internal/pkg/statistics"
	"github.com/vigilohq/vigilo/internal/pkg/usercontext"
)

func HandleStart(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	stats := statistics.GetStatisticsData()
	return c.JSON(fiber.Map{
		"service":      "vigilo",
		"is_logged_in": userCtx.IsLoggedIn,
		"plan":         userCtx.Plan,
		"fleet": fiber.Map{
			"monitors_total": stats.TotalMonitors,
			"monitors_down":  stats.DownMonitors,
			"users_total":    stats.TotalUsers,
		},
	})
}

func HandleHealth(c *fiber.Ctx) error {
	sqlDB, err := database.GetDB().DB()
	if err != nil || sqlDB.Ping() != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// HandlePublicStatus serves the unauthenticated status page for a monitor.
func HandlePublicStatus(c *fiber.Ctx) error {
	slug := c.Params("slug")
	var monitor models.Monitor
	err := database.GetDB().Where("slug = ?", slug).First(&monitor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	return c.JSON(fiber.Map{
		"name":            monitor.Name,
		"status":          monitor.Status,
		"last_checked_at": monitor.LastCheckedAt,
	})
}
