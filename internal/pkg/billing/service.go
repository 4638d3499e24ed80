package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/vigilohq/vigilo/app/models"
	"github.com/vigilohq/vigilo/internal/pkg/entitlements"
	"gorm.io/gorm"
)

// Extra validity granted past the provider's period end so renewals that
// land a little late do not bounce paying customers off their plan.
const periodEndGraceBuffer = 24 * time.Hour

// ErrUnknownCustomer marks events whose customer has no linked local owner.
// The handler must surface this as a non-success so the provider redelivers.
var ErrUnknownCustomer = errors.New("no owner linked to provider customer")

// SubscriptionFetcher returns the authoritative subscription snapshot used
// by every provisioning transition.
type SubscriptionFetcher interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*StripeSubscription, error)
}

// Service translates provider webhook events into owner entitlement
// transitions, idempotently: every transition is a full overwrite from a
// freshly fetched subscription snapshot, so replaying an event yields the
// same final state.
type Service struct {
	repo Repository
	subs SubscriptionFetcher
}

// NewService creates a billing service from injected collaborators.
func NewService(repo Repository, subs SubscriptionFetcher) *Service {
	return &Service{repo: repo, subs: subs}
}

// NewServiceFromDB creates a billing service from a GORM DB handle with the
// real Stripe client.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db), NewStripeClientFromEnv())
}

// LinkCustomer records the provider customer to owner mapping created when
// an owner starts checkout.
func (s *Service) LinkCustomer(ctx context.Context, ref models.OwnerRef, providerCustomerID, email string) error {
	_ = ctx
	customerID := strings.TrimSpace(providerCustomerID)
	if ref.ID == 0 || customerID == "" {
		return errors.New("owner and provider_customer_id are required")
	}
	return s.repo.UpsertCustomer(&models.BillingCustomer{
		Provider:           models.BillingProviderStripe,
		ProviderCustomerID: customerID,
		OwnerKind:          ref.Kind,
		OwnerID:            ref.ID,
		Email:              strings.TrimSpace(email),
	})
}

// ProcessEvent applies one webhook event to the transition table. Events
// outside the table are acknowledged without touching any state.
func (s *Service) ProcessEvent(ctx context.Context, event Event) error {
	switch e := event.(type) {
	case CheckoutCompleted:
		return s.provision(ctx, e.CustomerID, e.SubscriptionID)
	case InvoicePaid:
		return s.provision(ctx, e.CustomerID, e.SubscriptionID)
	case SubscriptionUpdated:
		return s.provision(ctx, e.CustomerID, e.SubscriptionID)
	case SubscriptionDeleted:
		return s.downgrade(ctx, e.CustomerID)
	case InvoicePaymentFailed:
		// Dunning is the provider's job; no local state change.
		log.Infof("billing: payment failed for customer %s, leaving entitlement untouched", e.CustomerID)
		return nil
	case UnknownEvent:
		log.Infof("billing: ignoring unhandled webhook event type %s (%s)", e.Type, e.EventID)
		return nil
	default:
		return fmt.Errorf("unhandled billing event variant %T", event)
	}
}

// provision re-fetches the subscription and overwrites the owner's
// entitlement fields from the snapshot. Checkout, renewal and update events
// all share this path, which is what makes out-of-order delivery safe:
// a stale event still provisions from current truth.
func (s *Service) provision(ctx context.Context, customerID, subscriptionID string) error {
	ref, err := s.resolveOwner(customerID)
	if err != nil {
		return err
	}

	sub, err := s.subs.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("subscription fetch failed: %w", err)
	}

	productID, err := s.resolveProduct(sub.PriceRefs)
	if err != nil {
		return err
	}

	ent := models.Entitlement{
		ProductID:          productID,
		SubscriptionID:     sub.ID,
		SubscriptionStatus: normalizeStatus(sub.Status),
	}
	if sub.CurrentPeriodEnd != nil {
		periodEnd := sub.CurrentPeriodEnd.Add(periodEndGraceBuffer)
		ent.PeriodEnd = &periodEnd
	}
	return s.repo.SaveOwnerEntitlement(ref, ent)
}

// ResyncOwner re-runs the provisioning overwrite for an owner's stored
// subscription, outside of any webhook delivery. Owners without a
// subscription are reset to the free baseline.
func (s *Service) ResyncOwner(ctx context.Context, ref models.OwnerRef, subscriptionID string) error {
	id := strings.TrimSpace(subscriptionID)
	if id == "" {
		return s.repo.SaveOwnerEntitlement(ref, models.Entitlement{
			ProductID:          string(entitlements.PlanFree),
			SubscriptionID:     "",
			SubscriptionStatus: models.SubscriptionStatusNone,
			PeriodEnd:          nil,
		})
	}

	sub, err := s.subs.GetSubscription(ctx, id)
	if err != nil {
		return fmt.Errorf("subscription fetch failed: %w", err)
	}
	productID, err := s.resolveProduct(sub.PriceRefs)
	if err != nil {
		return err
	}

	ent := models.Entitlement{
		ProductID:          productID,
		SubscriptionID:     sub.ID,
		SubscriptionStatus: normalizeStatus(sub.Status),
	}
	if sub.CurrentPeriodEnd != nil {
		periodEnd := sub.CurrentPeriodEnd.Add(periodEndGraceBuffer)
		ent.PeriodEnd = &periodEnd
	}
	return s.repo.SaveOwnerEntitlement(ref, ent)
}

// downgrade resets the owner to the free plan and clears the paid fields.
func (s *Service) downgrade(ctx context.Context, customerID string) error {
	_ = ctx
	ref, err := s.resolveOwner(customerID)
	if err != nil {
		return err
	}
	return s.repo.SaveOwnerEntitlement(ref, models.Entitlement{
		ProductID:          string(entitlements.PlanFree),
		SubscriptionID:     "",
		SubscriptionStatus: models.SubscriptionStatusNone,
		PeriodEnd:          nil,
	})
}

func (s *Service) resolveOwner(customerID string) (models.OwnerRef, error) {
	id := strings.TrimSpace(customerID)
	if id == "" {
		return models.OwnerRef{}, fmt.Errorf("%w: empty customer id", ErrUnknownCustomer)
	}
	customer, err := s.repo.GetCustomerByProviderID(models.BillingProviderStripe, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.OwnerRef{}, fmt.Errorf("%w: %s", ErrUnknownCustomer, id)
		}
		return models.OwnerRef{}, err
	}
	return models.OwnerRef{Kind: customer.OwnerKind, ID: customer.OwnerID}, nil
}

// resolveProduct picks the best mapped plan across the subscription's price
// refs. Unmapped prices fall back to free rather than failing the event.
func (s *Service) resolveProduct(priceRefs []string) (string, error) {
	best := string(entitlements.PlanFree)
	for _, raw := range priceRefs {
		ref := strings.TrimSpace(raw)
		if ref == "" {
			continue
		}
		m, err := s.repo.FindActivePlanMapping(models.BillingProviderStripe, ref)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Warnf("billing: no plan mapping for price ref %s", ref)
				continue
			}
			return "", err
		}
		if candidate := normalizePlan(m.ProductID); planRank(candidate) > planRank(best) {
			best = candidate
		}
	}
	return best, nil
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.BillingWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}
