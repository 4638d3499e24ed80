package models

import "time"

// Billing provider constants used across billing-related models.
const (
	BillingProviderStripe = "stripe"
)

// BillingCustomer maps a payment-provider customer to the local owner it
// pays for. Webhook events resolve through this record.
type BillingCustomer struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Provider           string    `gorm:"type:varchar(20);not null;index:ux_billing_customers_provider_customer,unique,priority:1" json:"provider"`
	ProviderCustomerID string    `gorm:"type:varchar(191);not null;index:ux_billing_customers_provider_customer,unique,priority:2" json:"provider_customer_id"`
	OwnerKind          string    `gorm:"type:varchar(10);not null;default:'user';index:ux_billing_customers_owner,unique,priority:1" json:"owner_kind"`
	OwnerID            uint      `gorm:"not null;index:ux_billing_customers_owner,unique,priority:2" json:"owner_id"`
	Email              string    `gorm:"type:varchar(200);default:''" json:"email"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
