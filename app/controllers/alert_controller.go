package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/vigilohq/vigilo/app/models"
	"github.com/vigilohq/vigilo/internal/pkg/database"
	"github.com/vigilohq/vigilo/internal/pkg/entitlements"
	"github.com/vigilohq/vigilo/internal/pkg/integrations"
)

type alertRequest struct {
	Name       string              `json:"name" form:"name"`
	Channels   []string            `json:"channels"`
	Recipients map[string][]string `json:"recipients"`
}

func HandleAlertList(c *fiber.Ctx) error {
	ref, _, err := resolveOwner(c)
	if err != nil {
		return ownerError(c, err)
	}

	var alerts []models.Alert
	err = database.GetDB().
		Where("owner_kind = ? AND owner_id = ?", ref.Kind, ref.ID).
		Order("created_at ASC").
		Find(&alerts).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	return c.JSON(fiber.Map{"alerts": alerts})
}

func HandleAlertCreate(c *fiber.Ctx) error {
	ref, owner, err := resolveOwner(c)
	if err != nil {
		return ownerError(c, err)
	}

	var req alertRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid payload"})
	}
	if err := validateAlertRequest(ref, &req, entitlements.EffectivePlan(owner)); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	alert := models.Alert{
		OwnerKind: ref.Kind,
		OwnerID:   ref.ID,
		Name:      strings.TrimSpace(req.Name),
	}
	if err := alert.SetChannels(req.Channels); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	if err := alert.SetRecipients(req.Recipients); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	if err := database.GetDB().Create(&alert).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	return c.Status(fiber.StatusCreated).JSON(alert)
}

func HandleAlertUpdate(c *fiber.Ctx) error {
	ref, owner, err := resolveOwner(c)
	if err != nil {
		return ownerError(c, err)
	}
	id, err := parseIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid id"})
	}

	var alert models.Alert
	err = database.GetDB().
		Where("id = ? AND owner_kind = ? AND owner_id = ?", id, ref.Kind, ref.ID).
		First(&alert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	var req alertRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid payload"})
	}
	if err := validateAlertRequest(ref, &req, entitlements.EffectivePlan(owner)); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	alert.Name = strings.TrimSpace(req.Name)
	if err := alert.SetChannels(req.Channels); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	if err := alert.SetRecipients(req.Recipients); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	if err := database.GetDB().Save(&alert).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	return c.JSON(alert)
}

func HandleAlertDelete(c *fiber.Ctx) error {
	ref, _, err := resolveOwner(c)
	if err != nil {
		return ownerError(c, err)
	}
	id, err := parseIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid id"})
	}

	var alert models.Alert
	err = database.GetDB().
		Where("id = ? AND owner_kind = ? AND owner_id = ?", id, ref.Kind, ref.ID).
		First(&alert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	// Detach from monitors that reference this alert before deleting it.
	err = database.GetDB().Model(&models.Monitor{}).
		Where("alert_id = ?", alert.ID).
		Update("alert_id", nil).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	if err := database.GetDB().Delete(&alert).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	return c.JSON(fiber.Map{"ok": true})
}

// validateAlertRequest enforces the channel set, the per-channel recipient
// limit, and recipient shape. Slack and Discord recipients are compound
// channel keys and must match an installed integration.
func validateAlertRequest(ref models.OwnerRef, req *alertRequest, plan entitlements.Plan) error {
	if strings.TrimSpace(req.Name) == "" {
		return errors.New("name is required")
	}
	if req.Recipients == nil {
		req.Recipients = map[string][]string{}
	}

	limit := entitlements.AlertRecipientLimit(plan)
	repo := integrations.NewRepository(database.GetDB())

	for _, ch := range req.Channels {
		switch ch {
		case models.AlertChannelEmail:
			for _, addr := range req.Recipients[ch] {
				if !strings.Contains(addr, "@") {
					return errors.New("invalid email recipient: " + addr)
				}
			}
		case models.AlertChannelSlack, models.AlertChannelDiscord:
			for _, raw := range req.Recipients[ch] {
				key, err := integrations.ParseChannelKey(raw)
				if err != nil {
					return err
				}
				if _, err := repo.GetIntegration(ref, key.String()); err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return errors.New("no installed integration for channel " + key.String())
					}
					return err
				}
			}
		default:
			return errors.New("unknown channel type: " + ch)
		}
		if len(req.Recipients[ch]) > limit {
			return errors.New("recipient limit for plan " + string(plan) + " exceeded on channel " + ch)
		}
	}
	return nil
}
