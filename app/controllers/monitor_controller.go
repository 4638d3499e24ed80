package controllers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/vigilohq/vigilo/app/models"
	"github.com/vigilohq/vigilo/internal/pkg/database"
	"github.com/vigilohq/vigilo/internal/pkg/entitlements"
)

const monitorSlugLength = 12

func HandleMonitorList(c *fiber.Ctx) error {
	ref, _, err := resolveOwner(c)
	if err != nil {
		return ownerError(c, err)
	}

	var monitors []models.Monitor
	err = database.GetDB().
		Where("owner_kind = ? AND owner_id = ?", ref.Kind, ref.ID).
		Order("created_at ASC").
		Find(&monitors).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	return c.JSON(fiber.Map{"monitors": monitors})
}

func HandleMonitorCreate(c *fiber.Ctx) error {
	ref, owner, err := resolveOwner(c)
	if err != nil {
		return ownerError(c, err)
	}
	plan := entitlements.EffectivePlan(owner)

	var count int64
	err = database.GetDB().Model(&models.Monitor{}).
		Where("owner_kind = ? AND owner_id = ?", ref.Kind, ref.ID).
		Count(&count).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	if int(count) >= entitlements.MonitorLimit(plan) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "monitor_limit_reached",
			"message": "monitor limit for plan " + string(plan) + " reached",
		})
	}

	interval, err := parseInterval(c.FormValue("interval_seconds"), plan)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	slug, err := models.GenerateSlug(monitorSlugLength)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	monitor := models.Monitor{
		OwnerKind:       ref.Kind,
		OwnerID:         ref.ID,
		Name:            strings.TrimSpace(c.FormValue("name")),
		URL:             strings.TrimSpace(c.FormValue("url")),
		IntervalSeconds: interval,
		Status:          models.MonitorStatusPending,
		Slug:            slug,
	}
	if alertID := alertIDFromForm(c, ref); alertID != nil {
		monitor.AlertID = alertID
	}
	if err := monitor.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}
	if err := database.GetDB().Create(&monitor).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	return c.Status(fiber.StatusCreated).JSON(monitor)
}

func HandleMonitorShow(c *fiber.Ctx) error {
	monitor, status := loadOwnedMonitor(c)
	if monitor == nil {
		return status
	}
	return c.JSON(monitor)
}

func HandleMonitorUpdate(c *fiber.Ctx) error {
	ref, owner, err := resolveOwner(c)
	if err != nil {
		return ownerError(c, err)
	}
	monitor, status := loadOwnedMonitorFor(c, ref)
	if monitor == nil {
		return status
	}

	if name := strings.TrimSpace(c.FormValue("name")); name != "" {
		monitor.Name = name
	}
	if rawURL := strings.TrimSpace(c.FormValue("url")); rawURL != "" {
		monitor.URL = rawURL
	}
	if raw := strings.TrimSpace(c.FormValue("interval_seconds")); raw != "" {
		interval, err := parseInterval(raw, entitlements.EffectivePlan(owner))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
		}
		monitor.IntervalSeconds = interval
	}
	if c.FormValue("alert_id") != "" {
		monitor.AlertID = alertIDFromForm(c, ref)
	}

	if err := monitor.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}
	if err := database.GetDB().Save(monitor).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	return c.JSON(monitor)
}

func HandleMonitorDelete(c *fiber.Ctx) error {
	monitor, status := loadOwnedMonitor(c)
	if monitor == nil {
		return status
	}
	if err := database.GetDB().Delete(monitor).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	return c.JSON(fiber.Map{"ok": true})
}

func HandleMonitorPause(c *fiber.Ctx) error {
	return setMonitorStatus(c, models.MonitorStatusPaused)
}

func HandleMonitorResume(c *fiber.Ctx) error {
	return setMonitorStatus(c, models.MonitorStatusPending)
}

func setMonitorStatus(c *fiber.Ctx, status string) error {
	monitor, errResp := loadOwnedMonitor(c)
	if monitor == nil {
		return errResp
	}
	if err := database.GetDB().Model(monitor).Update("status", status).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	monitor.Status = status
	return c.JSON(monitor)
}

func loadOwnedMonitor(c *fiber.Ctx) (*models.Monitor, error) {
	ref, _, err := resolveOwner(c)
	if err != nil {
		return nil, ownerError(c, err)
	}
	return loadOwnedMonitorFor(c, ref)
}

func loadOwnedMonitorFor(c *fiber.Ctx, ref models.OwnerRef) (*models.Monitor, error) {
	id, err := parseIDParam(c)
	if err != nil {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid id"})
	}

	var monitor models.Monitor
	err = database.GetDB().
		Where("id = ? AND owner_kind = ? AND owner_id = ?", id, ref.Kind, ref.ID).
		First(&monitor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
		}
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	return &monitor, nil
}

// alertIDFromForm resolves an optional alert_id form value, ignoring alerts
// that do not belong to the owner.
func alertIDFromForm(c *fiber.Ctx, ref models.OwnerRef) *uint {
	raw := strings.TrimSpace(c.FormValue("alert_id"))
	if raw == "" || raw == "0" {
		return nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil
	}
	var alert models.Alert
	err = database.GetDB().
		Where("id = ? AND owner_kind = ? AND owner_id = ?", uint(id), ref.Kind, ref.ID).
		First(&alert).Error
	if err != nil {
		return nil
	}
	return &alert.ID
}

func parseInterval(raw string, plan entitlements.Plan) (int, error) {
	interval := 300
	if strings.TrimSpace(raw) != "" {
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return 0, errors.New("interval_seconds must be a number")
		}
		interval = v
	}
	if min := entitlements.MinCheckInterval(plan); interval < min {
		return 0, errors.New("interval below plan minimum of " + strconv.Itoa(min) + "s")
	}
	return interval, nil
}

func ownerError(c *fiber.Ctx, err error) error {
	if errors.Is(err, errNotTeamMember) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": err.Error()})
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
}
