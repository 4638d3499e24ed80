package billing

// Event is the closed set of provider webhook events the synchronizer
// understands. Modeling them as a sealed sum instead of a string switch
// keeps unhandled types visible at compile time.
type Event interface {
	eventID() string
}

// CheckoutCompleted fires when a customer finishes checkout for a new
// subscription.
type CheckoutCompleted struct {
	EventID        string
	CustomerID     string
	SubscriptionID string
}

// InvoicePaid fires on every successful renewal charge.
type InvoicePaid struct {
	EventID        string
	CustomerID     string
	SubscriptionID string
}

// SubscriptionUpdated fires on plan swaps, trial conversions and status
// changes.
type SubscriptionUpdated struct {
	EventID        string
	CustomerID     string
	SubscriptionID string
}

// SubscriptionDeleted fires when a subscription ends for good.
type SubscriptionDeleted struct {
	EventID        string
	CustomerID     string
	SubscriptionID string
}

// InvoicePaymentFailed is acknowledged but not acted on; the provider's own
// dunning flow handles payment recovery.
type InvoicePaymentFailed struct {
	EventID    string
	CustomerID string
}

// UnknownEvent covers event types outside the transition table.
type UnknownEvent struct {
	EventID string
	Type    string
}

func (e CheckoutCompleted) eventID() string    { return e.EventID }
func (e InvoicePaid) eventID() string          { return e.EventID }
func (e SubscriptionUpdated) eventID() string  { return e.EventID }
func (e SubscriptionDeleted) eventID() string  { return e.EventID }
func (e InvoicePaymentFailed) eventID() string { return e.EventID }
func (e UnknownEvent) eventID() string         { return e.EventID }

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}
