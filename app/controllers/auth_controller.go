package controllers

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/vigilohq/vigilo/app/models"
	"github.com/vigilohq/vigilo/internal/pkg/database"
	"github.com/vigilohq/vigilo/internal/pkg/entitlements"
	"github.com/vigilohq/vigilo/internal/pkg/env"
	"github.com/vigilohq/vigilo/internal/pkg/mail"
	"github.com/vigilohq/vigilo/internal/pkg/session"
	"github.com/vigilohq/vigilo/internal/pkg/statistics"
	"github.com/vigilohq/vigilo/internal/pkg/usercontext"
)

func HandleAuthLogin(c *fiber.Ctx) error {
	var user models.User
	fm := fiber.Map{
		"type": "error",
	}

	// notice: in production you should not inform the user
	// with detailed messages about login failures
	result := database.GetDB().Where("email = ?", c.FormValue("email")).First(&user)
	if result.Error != nil {
		fm["message"] = "There is a problem with the login process"

		return flash.WithError(c, fm).Redirect("/")
	}

	if !models.CheckPasswordHash(c.FormValue("password"), user.Password) {
		fm["message"] = "There is a problem with the login process"

		return flash.WithError(c, fm).Redirect("/")
	}

	if user.Status != models.STATUS_ACTIVE {
		fm["message"] = "Account is not activated yet"

		return flash.WithError(c, fm).Redirect("/")
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		fm["message"] = fmt.Sprintf("something went wrong: %s", err)

		return flash.WithError(c, fm).Redirect("/")
	}

	sess.Set(usercontext.AuthKey, true)
	sess.Set(usercontext.KeyUserID, user.ID)
	sess.Set(usercontext.KeyUsername, user.Name)
	sess.Set(usercontext.KeyIsAdmin, user.Role == models.ROLE_ADMIN)

	if err := sess.Save(); err != nil {
		fm["message"] = fmt.Sprintf("something went wrong: %s", err)

		return flash.WithError(c, fm).Redirect("/")
	}

	// Cache the plan so the middleware skips a user lookup per request.
	_ = session.SetSessionValue(c, usercontext.KeyUserPlan, string(entitlements.EffectivePlan(&user)))

	database.GetDB().Model(&user).Update("last_login_at", time.Now())

	fm = fiber.Map{
		"type":    "success",
		"message": "Welcome back!",
	}

	return flash.WithSuccess(c, fm).Redirect("/monitors")
}

func HandleAuthLogout(c *fiber.Ctx) error {
	fm := fiber.Map{
		"type": "error",
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		fm["message"] = "logged out (no sess)"

		return flash.WithError(c, fm).Redirect("/")
	}

	if err := sess.Destroy(); err != nil {
		fm["message"] = fmt.Sprintf("something went wrong: %s", err)

		return flash.WithError(c, fm).Redirect("/")
	}

	fm = fiber.Map{
		"type":    "success",
		"message": "Bye bye!",
	}

	c.Locals(usercontext.KeyFromProtected, false)

	return flash.WithSuccess(c, fm).Redirect("/")
}

func HandleAuthRegister(c *fiber.Ctx) error {
	user, err := models.CreateUser(c.FormValue("username"), c.FormValue("email"), c.FormValue("password"))
	if err != nil {
		fm := fiber.Map{
			"type":    "error",
			"message": fmt.Sprintf("something went wrong: %s", err),
		}

		return flash.WithError(c, fm).Redirect("/")
	}

	if err := user.GenerateActivationToken(); err != nil {
		fm := fiber.Map{
			"type":    "error",
			"message": "could not prepare account activation",
		}

		return flash.WithError(c, fm).Redirect("/")
	}

	if err := database.GetDB().Create(user).Error; err != nil {
		fm := fiber.Map{
			"type":    "error",
			"message": fmt.Sprintf("something went wrong: %s", err),
		}

		return flash.WithError(c, fm).Redirect("/")
	}

	// Update statistics after registration
	go statistics.UpdateStatisticsCache()

	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	activationLink := fmt.Sprintf("%s/activate?token=%s", base, user.ActivationToken)
	go func() {
		_ = mail.SendMail(user.Email, "Activate your account",
			fmt.Sprintf("<p>Welcome! Confirm your address:</p><p><a href=%q>%s</a></p>", activationLink, activationLink))
	}()

	fm := fiber.Map{
		"type":    "success",
		"message": "Registration successful, check your inbox for the activation link",
	}

	return flash.WithSuccess(c, fm).Redirect("/")
}

func HandleAuthActivate(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Query("token"))
	fm := fiber.Map{
		"type": "error",
	}
	if token == "" {
		fm["message"] = "activation token missing"

		return flash.WithError(c, fm).Redirect("/")
	}

	var user models.User
	if err := database.GetDB().Where("activation_token = ?", token).First(&user).Error; err != nil {
		fm["message"] = "invalid activation token"

		return flash.WithError(c, fm).Redirect("/")
	}

	err := database.GetDB().Model(&user).Updates(map[string]interface{}{
		"status":           models.STATUS_ACTIVE,
		"activation_token": "",
	}).Error
	if err != nil {
		fm["message"] = "activation failed, please try again"

		return flash.WithError(c, fm).Redirect("/")
	}

	fm = fiber.Map{
		"type":    "success",
		"message": "Account activated, you can log in now",
	}

	return flash.WithSuccess(c, fm).Redirect("/")
}
