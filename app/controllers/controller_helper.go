package controllers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/vigilohq/vigilo/app/models"
	"github.com/vigilohq/vigilo/internal/pkg/database"
	"github.com/vigilohq/vigilo/internal/pkg/usercontext"
)

var errNotTeamMember = errors.New("user is not a member of this team")

// resolveOwner determines which owner a request acts for. With a team_id
// form value or query parameter the target is the team (membership is
// verified); otherwise it is the logged-in user.
func resolveOwner(c *fiber.Ctx) (models.OwnerRef, models.Owner, error) {
	userCtx := usercontext.GetUserContext(c)
	db := database.GetDB()

	teamParam := strings.TrimSpace(c.FormValue("team_id", c.Query("team_id")))
	if teamParam != "" {
		teamID, err := strconv.ParseUint(teamParam, 10, 32)
		if err != nil {
			return models.OwnerRef{}, nil, errors.New("invalid team_id")
		}

		var membership models.TeamMember
		err = db.Where("team_id = ? AND user_id = ?", uint(teamID), userCtx.UserID).First(&membership).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.OwnerRef{}, nil, errNotTeamMember
			}
			return models.OwnerRef{}, nil, err
		}

		var team models.Team
		if err := db.First(&team, uint(teamID)).Error; err != nil {
			return models.OwnerRef{}, nil, err
		}
		return team.OwnerRef(), &team, nil
	}

	var user models.User
	if err := db.First(&user, userCtx.UserID).Error; err != nil {
		return models.OwnerRef{}, nil, err
	}
	return user.OwnerRef(), &user, nil
}

// parseIDParam reads a numeric :id route parameter.
func parseIDParam(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}

// wantsJSON reports whether the client asked for a JSON response instead of
// the flash-and-redirect web flow.
func wantsJSON(c *fiber.Ctx) bool {
	accept := c.Get(fiber.HeaderAccept)
	return strings.Contains(accept, fiber.MIMEApplicationJSON) || c.Is("json")
}
