package controllers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	gothfiber "github.com/shareed2k/goth_fiber"
	"github.com/sujit-baniya/flash"
	"gorm.io/gorm"

	"github.com/vigilohq/vigilo/app/models"
	"github.com/vigilohq/vigilo/internal/pkg/database"
	"github.com/vigilohq/vigilo/internal/pkg/integrations"
	"github.com/vigilohq/vigilo/internal/pkg/session"
	"github.com/vigilohq/vigilo/internal/pkg/usercontext"
)

const pendingTokenSessionKeyPrefix = "pending_integration_token_"

func HandleIntegrationList(c *fiber.Ctx) error {
	ref, _, err := resolveOwner(c)
	if err != nil {
		return ownerError(c, err)
	}

	repo := integrations.NewRepository(database.GetDB())
	list, err := repo.ListIntegrations(ref)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	return c.JSON(fiber.Map{"integrations": list})
}

// HandleIntegrationCallback completes the workspace-install OAuth flow and
// parks the granted token in the session until the user picks a channel.
func HandleIntegrationCallback(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Redirect("/", fiber.StatusSeeOther)
	}

	u, err := gothfiber.CompleteUserAuth(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString(fmt.Sprintf("OAuth failed: %v", err))
	}

	provider := strings.ToLower(u.Provider)
	if provider != models.IntegrationTypeSlack && provider != models.IntegrationTypeDiscord {
		return c.Status(fiber.StatusBadRequest).SendString("unsupported provider: " + u.Provider)
	}

	if err := session.SetSessionValue(c, pendingTokenSessionKeyPrefix+provider, u.AccessToken); err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "could not store install token"}).Redirect("/integrations")
	}

	fm := fiber.Map{
		"type":    "success",
		"message": "Workspace connected, pick a channel to finish the install",
	}
	return flash.WithSuccess(c, fm).Redirect("/integrations")
}

// HandleIntegrationCreate binds a connected workspace to a concrete channel.
// Channel metadata is resolved through the provider API so the stored
// compound key always reflects provider truth.
func HandleIntegrationCreate(c *fiber.Ctx) error {
	ref, _, err := resolveOwner(c)
	if err != nil {
		return ownerError(c, err)
	}

	provider := strings.ToLower(strings.TrimSpace(c.FormValue("provider")))
	channelID := strings.TrimSpace(c.FormValue("channel_id"))
	if channelID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "channel_id is required"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	integration := models.Integration{
		OwnerKind: ref.Kind,
		OwnerID:   ref.ID,
		Type:      provider,
		ChannelID: channelID,
	}

	switch provider {
	case models.IntegrationTypeSlack:
		token := session.GetSessionValue(c, pendingTokenSessionKeyPrefix+provider)
		if token == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "no connected Slack workspace, run the install flow first"})
		}
		info, err := integrations.NewSlackClient(token).GetChannelInfo(ctx, channelID)
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "provider_error", "message": err.Error()})
		}
		integration.WorkspaceID = info.TeamID
		integration.ChannelName = info.ChannelName
		integration.AccessTokenEnc = token
	case models.IntegrationTypeDiscord:
		info, err := integrations.NewDiscordClientFromEnv().GetChannelInfo(ctx, channelID)
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "provider_error", "message": err.Error()})
		}
		integration.WorkspaceID = info.GuildID
		integration.ChannelName = info.ChannelName
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "unknown provider: " + provider})
	}

	if integration.WorkspaceID == "" {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "provider_error", "message": "provider did not return a workspace id"})
	}
	integration.ChannelKey = integrations.FormatChannelKey(integration.WorkspaceID, integration.ChannelID)

	repo := integrations.NewRepository(database.GetDB())
	if err := repo.UpsertIntegration(&integration); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	return c.Status(fiber.StatusCreated).JSON(integration)
}

// HandleIntegrationUninstall runs the detachment coordinator for the
// addressed integration. A conflict leaves the record installed and asks the
// user to retry.
func HandleIntegrationUninstall(c *fiber.Ctx) error {
	ref, _, err := resolveOwner(c)
	if err != nil {
		return ownerError(c, err)
	}
	id, err := parseIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid id"})
	}

	var integration models.Integration
	err = database.GetDB().
		Where("id = ? AND owner_kind = ? AND owner_id = ?", id, ref.Kind, ref.ID).
		First(&integration).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uninstallResult(c, integrations.DetachNotFound, nil)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	coordinator := integrations.NewCoordinatorFromDB(database.GetDB())
	outcome, err := coordinator.DetachAndDelete(ctx, ref, integration.ChannelKey)
	return uninstallResult(c, outcome, err)
}

func uninstallResult(c *fiber.Ctx, outcome integrations.DetachOutcome, err error) error {
	switch outcome {
	case integrations.DetachOK:
		if wantsJSON(c) {
			return c.JSON(fiber.Map{"ok": true})
		}
		return flash.WithSuccess(c, fiber.Map{"type": "success", "message": "Integration removed"}).Redirect("/integrations")
	case integrations.DetachNotFound:
		if wantsJSON(c) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
		}
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Integration not found"}).Redirect("/integrations")
	default:
		if errors.Is(err, integrations.ErrMalformedChannelKey) {
			if wantsJSON(c) {
				return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "malformed_channel_key"})
			}
			return flash.WithError(c, fiber.Map{"type": "error", "message": "Stored channel data is corrupt, contact support"}).Redirect("/integrations")
		}
		if wantsJSON(c) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "detach_conflict", "message": "could not fully remove integration, try again"})
		}
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Could not fully remove integration, try again"}).Redirect("/integrations")
	}
}
