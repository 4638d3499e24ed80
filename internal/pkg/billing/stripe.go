package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vigilohq/vigilo/internal/pkg/env"
)

const defaultStripeAPIBaseURL = "https://api.stripe.com/v1"

type StripeClient struct {
	SecretKey  string
	APIBaseURL string

	HTTPClient *http.Client
}

// StripeSubscription is the snapshot of a provider subscription the
// synchronizer provisions from. Every transition re-fetches this instead of
// trusting fields embedded in the webhook payload.
type StripeSubscription struct {
	ID                string
	CustomerID        string
	Status            string
	CancelAtPeriodEnd bool
	CurrentPeriodEnd  *time.Time
	PriceRefs         []string
}

func NewStripeClientFromEnv() *StripeClient {
	return &StripeClient{
		SecretKey:  strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		APIBaseURL: strings.TrimSpace(env.GetEnv("STRIPE_API_BASE_URL", defaultStripeAPIBaseURL)),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// GetSubscription fetches the current subscription snapshot from Stripe.
func (c *StripeClient) GetSubscription(ctx context.Context, subscriptionID string) (*StripeSubscription, error) {
	subID := strings.TrimSpace(subscriptionID)
	if subID == "" {
		return nil, errors.New("subscription id is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return nil, errors.New("STRIPE_SECRET_KEY is not configured")
	}

	url := strings.TrimRight(c.APIBaseURL, "/") + "/subscriptions/" + subID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("stripe subscription request failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	type rawResponse struct {
		ID                string `json:"id"`
		Customer          string `json:"customer"`
		Status            string `json:"status"`
		CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
		CurrentPeriodEnd  int64  `json:"current_period_end"`
		Items             struct {
			Data []struct {
				Price struct {
					ID string `json:"id"`
				} `json:"price"`
			} `json:"data"`
		} `json:"items"`
	}

	var raw rawResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw.ID) == "" {
		return nil, errors.New("stripe subscription response missing id")
	}

	out := &StripeSubscription{
		ID:                strings.TrimSpace(raw.ID),
		CustomerID:        strings.TrimSpace(raw.Customer),
		Status:            strings.TrimSpace(raw.Status),
		CancelAtPeriodEnd: raw.CancelAtPeriodEnd,
	}
	if raw.CurrentPeriodEnd > 0 {
		t := time.Unix(raw.CurrentPeriodEnd, 0).UTC()
		out.CurrentPeriodEnd = &t
	}
	for _, item := range raw.Items.Data {
		if ref := strings.TrimSpace(item.Price.ID); ref != "" {
			out.PriceRefs = append(out.PriceRefs, ref)
		}
	}
	return out, nil
}

// ParseStripeEvent maps a raw webhook payload onto the closed event sum.
// Types outside the transition table come back as UnknownEvent, not errors.
func ParseStripeEvent(payload []byte) (Event, error) {
	type rawEvent struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID           string `json:"id"`
				Customer     string `json:"customer"`
				Subscription string `json:"subscription"`
			} `json:"object"`
		} `json:"data"`
	}

	var raw rawEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}

	eventID := strings.TrimSpace(raw.ID)
	customerID := strings.TrimSpace(raw.Data.Object.Customer)
	object := raw.Data.Object

	switch raw.Type {
	case "checkout.session.completed":
		if customerID == "" || strings.TrimSpace(object.Subscription) == "" {
			return nil, errors.New("checkout event missing customer or subscription")
		}
		return CheckoutCompleted{
			EventID:        eventID,
			CustomerID:     customerID,
			SubscriptionID: strings.TrimSpace(object.Subscription),
		}, nil
	case "invoice.paid":
		if customerID == "" || strings.TrimSpace(object.Subscription) == "" {
			return nil, errors.New("invoice event missing customer or subscription")
		}
		return InvoicePaid{
			EventID:        eventID,
			CustomerID:     customerID,
			SubscriptionID: strings.TrimSpace(object.Subscription),
		}, nil
	case "customer.subscription.updated":
		if customerID == "" || strings.TrimSpace(object.ID) == "" {
			return nil, errors.New("subscription event missing customer or id")
		}
		return SubscriptionUpdated{
			EventID:        eventID,
			CustomerID:     customerID,
			SubscriptionID: strings.TrimSpace(object.ID),
		}, nil
	case "customer.subscription.deleted":
		if customerID == "" || strings.TrimSpace(object.ID) == "" {
			return nil, errors.New("subscription event missing customer or id")
		}
		return SubscriptionDeleted{
			EventID:        eventID,
			CustomerID:     customerID,
			SubscriptionID: strings.TrimSpace(object.ID),
		}, nil
	case "invoice.payment_failed":
		return InvoicePaymentFailed{EventID: eventID, CustomerID: customerID}, nil
	default:
		return UnknownEvent{EventID: eventID, Type: raw.Type}, nil
	}
}
