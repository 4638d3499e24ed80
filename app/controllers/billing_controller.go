package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/vigilohq/vigilo/app/models"
	"github.com/vigilohq/vigilo/internal/pkg/billing"
	"github.com/vigilohq/vigilo/internal/pkg/database"
	"github.com/vigilohq/vigilo/internal/pkg/entitlements"
	"github.com/vigilohq/vigilo/internal/pkg/env"
	"github.com/vigilohq/vigilo/internal/pkg/session"
	"github.com/vigilohq/vigilo/internal/pkg/usercontext"
)

// HandleStripeWebhook ingests provider webhook deliveries. Every payload is
// persisted before processing; only a redelivery of an event that already
// processed cleanly is acknowledged as a duplicate, a redelivery of a failed
// attempt runs the transition again. An unknown customer yields a non-2xx
// status so the provider redelivers once checkout linking has landed.
func HandleStripeWebhook(c *fiber.Ctx) error {
	return handleStripeWebhook(c, billing.NewServiceFromDB(database.GetDB()))
}

func handleStripeWebhook(c *fiber.Ctx, svc *billing.Service) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("Stripe-Signature"))
	secret := env.GetEnv("STRIPE_WEBHOOK_SECRET", "")

	var envelope struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	_ = json.Unmarshal(rawBody, &envelope)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	signatureValid := billing.VerifyStripeWebhookSignature(rawBody, signature, secret)
	created, stored, err := svc.RecordWebhookEvent(ctx, billing.WebhookEventInput{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: envelope.ID,
		EventType:       envelope.Type,
		PayloadJSON:     string(rawBody),
		SignatureValid:  signatureValid,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	// Redelivery is the provider's retry mechanism: only short-circuit when
	// the recorded attempt succeeded, otherwise run the transition again.
	// Reprocessing is safe because every transition is an idempotent
	// overwrite from a fresh snapshot.
	if !created && stored.ProcessedOK() {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}
	if !signatureValid {
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, errors.New("invalid webhook signature"))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}

	event, err := billing.ParseStripeEvent(rawBody)
	if err != nil {
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	processErr := svc.ProcessEvent(ctx, event)
	_ = svc.MarkWebhookProcessed(ctx, stored.ID, processErr)
	if processErr != nil {
		if errors.Is(processErr, billing.ErrUnknownCustomer) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "unknown_customer"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "event_processing_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// HandleBillingOverview exposes the derived entitlement for the owner.
func HandleBillingOverview(c *fiber.Ctx) error {
	_, owner, err := resolveOwner(c)
	if err != nil {
		return ownerError(c, err)
	}

	ent := entitlements.Resolve(owner)
	stored := owner.GetEntitlement()
	return c.JSON(fiber.Map{
		"entitlement": fiber.Map{
			"product_id": ent.ProductID,
			"is_valid":   ent.IsValid,
		},
		"subscription_status": stored.SubscriptionStatus,
		"period_end":          stored.PeriodEnd,
	})
}

// HandleBillingResync re-provisions the owner's entitlement from the
// provider's current subscription snapshot.
func HandleBillingResync(c *fiber.Ctx) error {
	ref, owner, err := resolveOwner(c)
	if err != nil {
		return ownerError(c, err)
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := svc.ResyncOwner(ctx, ref, owner.GetEntitlement().SubscriptionID); err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "plan resync failed"}).Redirect("/billing")
	}

	// Reload and refresh the cached session plan for user owners.
	if ref.Kind == models.OwnerKindUser {
		var user models.User
		if err := database.GetDB().First(&user, ref.ID).Error; err == nil {
			_ = session.SetSessionValue(c, usercontext.KeyUserPlan, string(entitlements.EffectivePlan(&user)))
		}
	}

	return flash.WithSuccess(c, fiber.Map{"type": "success", "message": "plan recalculated"}).Redirect("/billing")
}
