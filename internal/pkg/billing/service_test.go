package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vigilohq/vigilo/app/models"
	"gorm.io/gorm"
)

type fakeRepository struct {
	customers    map[string]*models.BillingCustomer
	mappings     map[string]string
	entitlements map[models.OwnerRef]models.Entitlement
	saveErr      error
	saveCalls    int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		customers:    map[string]*models.BillingCustomer{},
		mappings:     map[string]string{},
		entitlements: map[models.OwnerRef]models.Entitlement{},
	}
}

func (r *fakeRepository) GetCustomerByProviderID(provider, providerCustomerID string) (*models.BillingCustomer, error) {
	customer, ok := r.customers[providerCustomerID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return customer, nil
}

func (r *fakeRepository) UpsertCustomer(customer *models.BillingCustomer) error {
	r.customers[customer.ProviderCustomerID] = customer
	return nil
}

func (r *fakeRepository) FindActivePlanMapping(provider, providerPriceRef string) (*models.BillingPlanMapping, error) {
	productID, ok := r.mappings[providerPriceRef]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.BillingPlanMapping{
		Provider:         provider,
		ProviderPriceRef: providerPriceRef,
		ProductID:        productID,
		IsActive:         true,
	}, nil
}

func (r *fakeRepository) SaveOwnerEntitlement(ref models.OwnerRef, e models.Entitlement) error {
	r.saveCalls++
	if r.saveErr != nil {
		return r.saveErr
	}
	r.entitlements[ref] = e
	return nil
}

func (r *fakeRepository) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	return true, event, nil
}

func (r *fakeRepository) MarkWebhookProcessed(id uint, processingError string) error {
	return nil
}

type fakeFetcher struct {
	subs map[string]*StripeSubscription
	err  error
}

func (f *fakeFetcher) GetSubscription(ctx context.Context, subscriptionID string) (*StripeSubscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	sub, ok := f.subs[subscriptionID]
	if !ok {
		return nil, errors.New("no such subscription")
	}
	return sub, nil
}

func proSubscription(periodEnd time.Time) *StripeSubscription {
	return &StripeSubscription{
		ID:               "sub_1",
		CustomerID:       "cus_1",
		Status:           "active",
		CurrentPeriodEnd: &periodEnd,
		PriceRefs:        []string{"price_pro_month"},
	}
}

func linkedRepo() *fakeRepository {
	repo := newFakeRepository()
	repo.customers["cus_1"] = &models.BillingCustomer{
		Provider:           models.BillingProviderStripe,
		ProviderCustomerID: "cus_1",
		OwnerKind:          models.OwnerKindUser,
		OwnerID:            7,
	}
	repo.mappings["price_pro_month"] = "pro"
	repo.mappings["price_business_month"] = "business"
	return repo
}

func TestProcessEvent_CheckoutProvisionsEntitlement(t *testing.T) {
	repo := linkedRepo()
	periodEnd := time.Date(2026, 9, 30, 12, 0, 0, 0, time.UTC)
	svc := NewService(repo, &fakeFetcher{subs: map[string]*StripeSubscription{"sub_1": proSubscription(periodEnd)}})

	err := svc.ProcessEvent(context.Background(), CheckoutCompleted{EventID: "evt_1", CustomerID: "cus_1", SubscriptionID: "sub_1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ent := repo.entitlements[models.OwnerRef{Kind: models.OwnerKindUser, ID: 7}]
	if ent.ProductID != "pro" || ent.SubscriptionID != "sub_1" || ent.SubscriptionStatus != "active" {
		t.Fatalf("unexpected entitlement: %+v", ent)
	}
	if ent.PeriodEnd == nil || !ent.PeriodEnd.Equal(periodEnd.Add(periodEndGraceBuffer)) {
		t.Fatalf("expected period end with grace buffer, got %v", ent.PeriodEnd)
	}
}

func TestProcessEvent_IdempotentReplay(t *testing.T) {
	repo := linkedRepo()
	periodEnd := time.Date(2026, 9, 30, 12, 0, 0, 0, time.UTC)
	svc := NewService(repo, &fakeFetcher{subs: map[string]*StripeSubscription{"sub_1": proSubscription(periodEnd)}})
	ref := models.OwnerRef{Kind: models.OwnerKindUser, ID: 7}

	event := SubscriptionUpdated{EventID: "evt_1", CustomerID: "cus_1", SubscriptionID: "sub_1"}
	if err := svc.ProcessEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first := repo.entitlements[ref]

	if err := svc.ProcessEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error on replay: %v", err)
	}
	second := repo.entitlements[ref]

	if first.ProductID != second.ProductID ||
		first.SubscriptionID != second.SubscriptionID ||
		first.SubscriptionStatus != second.SubscriptionStatus ||
		!first.PeriodEnd.Equal(*second.PeriodEnd) {
		t.Fatalf("replay diverged: first=%+v second=%+v", first, second)
	}
}

func TestProcessEvent_DowngradeClearsPaidFields(t *testing.T) {
	repo := linkedRepo()
	ref := models.OwnerRef{Kind: models.OwnerKindUser, ID: 7}
	periodEnd := time.Now().Add(30 * 24 * time.Hour)
	repo.entitlements[ref] = models.Entitlement{
		ProductID:          "pro",
		SubscriptionID:     "sub_1",
		SubscriptionStatus: "active",
		PeriodEnd:          &periodEnd,
	}
	svc := NewService(repo, &fakeFetcher{})

	err := svc.ProcessEvent(context.Background(), SubscriptionDeleted{EventID: "evt_9", CustomerID: "cus_1", SubscriptionID: "sub_1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ent := repo.entitlements[ref]
	if ent.ProductID != "free" || ent.SubscriptionID != "" || ent.SubscriptionStatus != models.SubscriptionStatusNone || ent.PeriodEnd != nil {
		t.Fatalf("expected cleared entitlement, got %+v", ent)
	}
}

func TestProcessEvent_UnknownCustomer(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, &fakeFetcher{})

	err := svc.ProcessEvent(context.Background(), InvoicePaid{EventID: "evt_1", CustomerID: "cus_missing", SubscriptionID: "sub_1"})
	if !errors.Is(err, ErrUnknownCustomer) {
		t.Fatalf("expected ErrUnknownCustomer, got %v", err)
	}
	if repo.saveCalls != 0 {
		t.Fatalf("expected no entitlement writes, got %d", repo.saveCalls)
	}
}

func TestProcessEvent_NoopEvents(t *testing.T) {
	repo := linkedRepo()
	svc := NewService(repo, &fakeFetcher{})

	if err := svc.ProcessEvent(context.Background(), InvoicePaymentFailed{EventID: "evt_1", CustomerID: "cus_1"}); err != nil {
		t.Fatalf("expected payment failed to be a no-op, got %v", err)
	}
	if err := svc.ProcessEvent(context.Background(), UnknownEvent{EventID: "evt_2", Type: "charge.refunded"}); err != nil {
		t.Fatalf("expected unknown event to be a no-op, got %v", err)
	}
	if repo.saveCalls != 0 {
		t.Fatalf("expected no entitlement writes, got %d", repo.saveCalls)
	}
}

func TestProcessEvent_StoreWriteFailureSurfaces(t *testing.T) {
	repo := linkedRepo()
	repo.saveErr = errors.New("store unavailable")
	periodEnd := time.Now().Add(30 * 24 * time.Hour)
	svc := NewService(repo, &fakeFetcher{subs: map[string]*StripeSubscription{"sub_1": proSubscription(periodEnd)}})

	err := svc.ProcessEvent(context.Background(), InvoicePaid{EventID: "evt_1", CustomerID: "cus_1", SubscriptionID: "sub_1"})
	if err == nil {
		t.Fatalf("expected store failure to surface")
	}
}

func TestProcessEvent_BestMappedPlanWins(t *testing.T) {
	repo := linkedRepo()
	periodEnd := time.Now().Add(30 * 24 * time.Hour)
	sub := proSubscription(periodEnd)
	sub.PriceRefs = []string{"price_pro_month", "price_business_month", "price_unmapped"}
	svc := NewService(repo, &fakeFetcher{subs: map[string]*StripeSubscription{"sub_1": sub}})

	err := svc.ProcessEvent(context.Background(), SubscriptionUpdated{EventID: "evt_1", CustomerID: "cus_1", SubscriptionID: "sub_1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ent := repo.entitlements[models.OwnerRef{Kind: models.OwnerKindUser, ID: 7}]
	if ent.ProductID != "business" {
		t.Fatalf("expected best mapped plan business, got %q", ent.ProductID)
	}
}
