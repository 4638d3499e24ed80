package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/vigilohq/vigilo/app/models"
	"github.com/vigilohq/vigilo/internal/pkg/database"
	"github.com/vigilohq/vigilo/internal/pkg/entitlements"
	"github.com/vigilohq/vigilo/internal/pkg/usercontext"
)

// HandleUserSettings returns the account summary including the effective
// entitlement and the limits derived from it.
func HandleUserSettings(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var user models.User
	if err := database.GetDB().First(&user, userCtx.UserID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	ent := entitlements.Resolve(&user)
	plan := entitlements.EffectivePlan(&user)

	return c.JSON(fiber.Map{
		"name":  user.Name,
		"email": user.Email,
		"entitlement": fiber.Map{
			"product_id": ent.ProductID,
			"is_valid":   ent.IsValid,
		},
		"limits": fiber.Map{
			"monitors":           entitlements.MonitorLimit(plan),
			"alert_recipients":   entitlements.AlertRecipientLimit(plan),
			"min_check_interval": entitlements.MinCheckInterval(plan),
			"api_access":         entitlements.AllowsAPIAccess(plan),
		},
		"api_key_prefix": user.APIKeyPrefix,
		"has_api_key":    user.HasActiveAPIKey(),
	})
}

// HandleUserAPIKeyGenerate issues a fresh API key. The raw secret is shown
// exactly once in the response; only its hash is stored.
func HandleUserAPIKeyGenerate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var user models.User
	if err := database.GetDB().First(&user, userCtx.UserID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	plan := entitlements.EffectivePlan(&user)
	if !entitlements.AllowsAPIAccess(plan) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "forbidden",
			"message": "API access requires a paid plan",
		})
	}

	rawKey, err := user.IssueAPIKey()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	err = database.GetDB().Model(&user).Updates(map[string]interface{}{
		"api_key_hash":   user.APIKeyHash,
		"api_key_prefix": user.APIKeyPrefix,
	}).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	return c.JSON(fiber.Map{
		"api_key":        rawKey,
		"api_key_prefix": user.APIKeyPrefix,
	})
}

// HandleUserAPIKeyRevoke removes the stored API key.
func HandleUserAPIKeyRevoke(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var user models.User
	if err := database.GetDB().First(&user, userCtx.UserID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	if !user.HasActiveAPIKey() {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "no API key configured"}).Redirect("/user/settings")
	}

	user.RevokeAPIKey()
	err := database.GetDB().Model(&user).Updates(map[string]interface{}{
		"api_key_hash":   "",
		"api_key_prefix": "",
	}).Error
	if err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "could not revoke API key"}).Redirect("/user/settings")
	}

	return flash.WithSuccess(c, fiber.Map{"type": "success", "message": "API key revoked"}).Redirect("/user/settings")
}

func mustCurrentUser(c *fiber.Ctx) (*models.User, error) {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return nil, errors.New("not logged in")
	}
	var user models.User
	if err := database.GetDB().First(&user, userCtx.UserID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
