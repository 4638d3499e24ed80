package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vigilohq/vigilo/app/models"
	"github.com/vigilohq/vigilo/internal/pkg/database"
)

// HandleAdminUsers lists registered users for operators.
func HandleAdminUsers(c *fiber.Ctx) error {
	var users []models.User
	err := database.GetDB().
		Order("created_at DESC").
		Limit(200).
		Find(&users).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	return c.JSON(fiber.Map{"users": users})
}

// HandleAdminWebhookEvents lists recent billing webhook deliveries, most
// recent first, for debugging entitlement sync issues.
func HandleAdminWebhookEvents(c *fiber.Ctx) error {
	var events []models.BillingWebhookEvent
	err := database.GetDB().
		Order("created_at DESC").
		Limit(100).
		Find(&events).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	return c.JSON(fiber.Map{"events": events})
}
