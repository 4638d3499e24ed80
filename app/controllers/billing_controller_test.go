package controllers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/vigilohq/vigilo/app/models"
	"github.com/vigilohq/vigilo/internal/pkg/billing"
)

const webhookTestSecret = "whsec_test"

type webhookRepository struct {
	customers    map[string]*models.BillingCustomer
	mappings     map[string]string
	entitlements map[models.OwnerRef]models.Entitlement
	events       map[string]*models.BillingWebhookEvent
	nextEventID  uint
	saveCalls    int
}

func newWebhookRepository() *webhookRepository {
	return &webhookRepository{
		customers:    map[string]*models.BillingCustomer{},
		mappings:     map[string]string{},
		entitlements: map[models.OwnerRef]models.Entitlement{},
		events:       map[string]*models.BillingWebhookEvent{},
	}
}

func (r *webhookRepository) GetCustomerByProviderID(provider, providerCustomerID string) (*models.BillingCustomer, error) {
	customer, ok := r.customers[providerCustomerID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return customer, nil
}

func (r *webhookRepository) UpsertCustomer(customer *models.BillingCustomer) error {
	r.customers[customer.ProviderCustomerID] = customer
	return nil
}

func (r *webhookRepository) FindActivePlanMapping(provider, providerPriceRef string) (*models.BillingPlanMapping, error) {
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

func (r *webhookRepository) SaveOwnerEntitlement(ref models.OwnerRef, e models.Entitlement) error {
	r.saveCalls++
	r.entitlements[ref] = e
	return nil
}

func (r *webhookRepository) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	key := event.Provider + "/" + event.ProviderEventID
	if stored, ok := r.events[key]; ok {
		copied := *stored
		return false, &copied, nil
	}
	r.nextEventID++
	event.ID = r.nextEventID
	stored := *event
	r.events[key] = &stored
	copied := stored
	return true, &copied, nil
}

func (r *webhookRepository) MarkWebhookProcessed(id uint, processingError string) error {
	for _, stored := range r.events {
		if stored.ID == id {
			now := time.Now()
			stored.ProcessedAt = &now
			stored.ProcessingError = processingError
			return nil
		}
	}
	return errors.New("no such webhook event")
}

func linkCustomer(r *webhookRepository) {
	r.customers["cus_1"] = &models.BillingCustomer{
		Provider:           models.BillingProviderStripe,
		ProviderCustomerID: "cus_1",
		OwnerKind:          models.OwnerKindUser,
		OwnerID:            7,
	}
}

type webhookFetcher struct {
	subs  map[string]*billing.StripeSubscription
	calls int
}

func (f *webhookFetcher) GetSubscription(ctx context.Context, subscriptionID string) (*billing.StripeSubscription, error) {
	f.calls++
	sub, ok := f.subs[subscriptionID]
	if !ok {
		return nil, errors.New("no such subscription")
	}
	return sub, nil
}

func newWebhookFetcher() *webhookFetcher {
	periodEnd := time.Now().Add(30 * 24 * time.Hour)
	return &webhookFetcher{subs: map[string]*billing.StripeSubscription{
		"sub_1": {
			ID:               "sub_1",
			CustomerID:       "cus_1",
			Status:           "active",
			CurrentPeriodEnd: &periodEnd,
			PriceRefs:        []string{"price_pro_month"},
		},
	}}
}

func newWebhookApp(svc *billing.Service) *fiber.App {
	app := fiber.New()
	app.Post("/webhooks/stripe", func(c *fiber.Ctx) error {
		return handleStripeWebhook(c, svc)
	})
	return app
}

func invoicePaidPayload(eventID string) []byte {
	return []byte(fmt.Sprintf(
		`{"id":%q,"type":"invoice.paid","data":{"object":{"id":"in_1","customer":"cus_1","subscription":"sub_1"}}}`,
		eventID))
}

func webhookRequest(payload []byte, signatureHeader string) *http.Request {
	req := httptest.NewRequest(fiber.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signatureHeader)
	return req
}

func signedWebhookRequest(payload []byte) *http.Request {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(webhookTestSecret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	header := fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
	return webhookRequest(payload, header)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading response body: %v", err)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decoding response body %q: %v", raw, err)
	}
	return body
}

func TestHandleStripeWebhook_InvalidSignature(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", webhookTestSecret)
	repo := newWebhookRepository()
	linkCustomer(repo)
	fetcher := newWebhookFetcher()
	app := newWebhookApp(billing.NewService(repo, fetcher))

	payload := invoicePaidPayload("evt_bad_sig")
	resp, err := app.Test(webhookRequest(payload, "t=1,v1=deadbeef"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if fetcher.calls != 0 || repo.saveCalls != 0 {
		t.Fatalf("rejected delivery must not reach the transition table: fetches=%d saves=%d", fetcher.calls, repo.saveCalls)
	}
	stored := repo.events[models.BillingProviderStripe+"/evt_bad_sig"]
	if stored == nil || stored.ProcessedOK() {
		t.Fatalf("expected event recorded with a processing error, got %+v", stored)
	}
}

func TestHandleStripeWebhook_RedeliveryAfterFailureReprocesses(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", webhookTestSecret)
	repo := newWebhookRepository()
	repo.mappings["price_pro_month"] = "pro"
	fetcher := newWebhookFetcher()
	app := newWebhookApp(billing.NewService(repo, fetcher))
	payload := invoicePaidPayload("evt_1")

	// First delivery arrives before checkout linking has landed.
	resp, err := app.Test(signedWebhookRequest(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("expected 409 for unknown customer, got %d", resp.StatusCode)
	}

	linkCustomer(repo)

	resp, err = app.Test(signedWebhookRequest(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected redelivery of a failed event to process, got %d", resp.StatusCode)
	}
	ent := repo.entitlements[models.OwnerRef{Kind: models.OwnerKindUser, ID: 7}]
	if ent.ProductID != "pro" || ent.SubscriptionID != "sub_1" {
		t.Fatalf("expected redelivery to provision the entitlement, got %+v", ent)
	}
}

func TestHandleStripeWebhook_RejectedSignatureThenValidRedelivery(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", webhookTestSecret)
	repo := newWebhookRepository()
	repo.mappings["price_pro_month"] = "pro"
	linkCustomer(repo)
	fetcher := newWebhookFetcher()
	app := newWebhookApp(billing.NewService(repo, fetcher))
	payload := invoicePaidPayload("evt_2")

	resp, err := app.Test(webhookRequest(payload, "t=1,v1=deadbeef"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	resp, err = app.Test(signedWebhookRequest(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected correctly signed redelivery to process, got %d", resp.StatusCode)
	}
	if repo.saveCalls != 1 {
		t.Fatalf("expected exactly one entitlement write, got %d", repo.saveCalls)
	}
}

func TestHandleStripeWebhook_DuplicateOfProcessedEvent(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", webhookTestSecret)
	repo := newWebhookRepository()
	repo.mappings["price_pro_month"] = "pro"
	linkCustomer(repo)
	fetcher := newWebhookFetcher()
	app := newWebhookApp(billing.NewService(repo, fetcher))
	payload := invoicePaidPayload("evt_3")

	resp, err := app.Test(signedWebhookRequest(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if repo.saveCalls != 1 {
		t.Fatalf("expected one entitlement write, got %d", repo.saveCalls)
	}

	resp, err = app.Test(signedWebhookRequest(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 for duplicate, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["duplicate"] != true {
		t.Fatalf("expected duplicate acknowledgement, got %v", body)
	}
	if repo.saveCalls != 1 {
		t.Fatalf("duplicate must not write the entitlement again, got %d writes", repo.saveCalls)
	}
}
