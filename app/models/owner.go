package models

import "time"

// Owner kinds used wherever a record can belong to either a user or a team.
const (
	OwnerKindUser = "user"
	OwnerKindTeam = "team"
)

// Subscription status constants mirrored from the payment provider.
const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusTrialing = "trialing"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusNone     = "none"
)

// OwnerRef identifies a user or team without loading the full record.
type OwnerRef struct {
	Kind string
	ID   uint
}

// Entitlement holds the paid-plan state embedded in User and Team records.
// These fields are written exclusively by the billing synchronizer.
type Entitlement struct {
	ProductID          string     `gorm:"type:varchar(50);not null;default:'free';index" json:"product_id"`
	SubscriptionID     string     `gorm:"type:varchar(191);default:''" json:"subscription_id"`
	SubscriptionStatus string     `gorm:"type:varchar(32);not null;default:'none'" json:"subscription_status"`
	PeriodEnd          *time.Time `gorm:"type:timestamp;default:null" json:"period_end,omitempty"`
}

// Owner is the capability shared by User and Team: billing entitlement plus
// installed integrations hang off an owner.
type Owner interface {
	OwnerRef() OwnerRef
	GetEntitlement() Entitlement
	SetEntitlement(e Entitlement)
}
