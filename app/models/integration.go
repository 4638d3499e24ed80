package models

import "time"

// Integration types match the alert channel types they feed.
const (
	IntegrationTypeSlack   = "slack"
	IntegrationTypeDiscord = "discord"
)

// Integration stores an installed Slack or Discord channel for an owner.
// ChannelKey is the compound "<workspace_or_guild_id>#<channel_id>" identity
// that alert recipients are correlated against; it is unique per owner.
// Deletion only ever happens through the detachment coordinator.
type Integration struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	OwnerKind      string     `gorm:"type:varchar(10);not null;default:'user';index:ux_integrations_owner_key,unique,priority:1" json:"owner_kind"`
	OwnerID        uint       `gorm:"not null;index:ux_integrations_owner_key,unique,priority:2" json:"owner_id"`
	Type           string     `gorm:"type:varchar(20);not null;index" json:"type"`
	ChannelKey     string     `gorm:"type:varchar(191);not null;index:ux_integrations_owner_key,unique,priority:3" json:"channel_key"`
	WorkspaceID    string     `gorm:"type:varchar(100);not null" json:"workspace_id"`
	ChannelID      string     `gorm:"type:varchar(100);not null" json:"channel_id"`
	ChannelName    string     `gorm:"type:varchar(150);default:''" json:"channel_name"`
	WorkspaceName  string     `gorm:"type:varchar(150);default:''" json:"workspace_name"`
	AccessTokenEnc string     `gorm:"type:text" json:"-"`
	WebhookURL     string     `gorm:"type:varchar(2048);default:''" json:"-"`
	TokenExpiresAt *time.Time `gorm:"type:timestamp;default:null" json:"token_expires_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
