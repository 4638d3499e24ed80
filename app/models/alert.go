package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Alert channel types. Slack and Discord recipients are compound channel
// keys correlated against integration records; email recipients are plain
// addresses.
const (
	AlertChannelSlack   = "slack"
	AlertChannelDiscord = "discord"
	AlertChannelEmail   = "email"
)

// Alert describes where notifications go when a monitor changes state.
// Channels holds the enabled channel types, Recipients maps each channel
// type to its recipient identifiers.
type Alert struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	OwnerKind  string         `gorm:"type:varchar(10);not null;default:'user';index:idx_alerts_owner,priority:1" json:"owner_kind"`
	OwnerID    uint           `gorm:"not null;index:idx_alerts_owner,priority:2" json:"owner_id"`
	Name       string         `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=1,max=150"`
	Channels   datatypes.JSON `gorm:"type:json" json:"channels"`
	Recipients datatypes.JSON `gorm:"type:json" json:"recipients"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// ChannelList decodes the enabled channel types. A missing or empty column
// decodes to an empty list.
func (a *Alert) ChannelList() ([]string, error) {
	if len(a.Channels) == 0 {
		return nil, nil
	}
	var channels []string
	if err := json.Unmarshal(a.Channels, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

// RecipientMap decodes the channel-type to recipients mapping.
func (a *Alert) RecipientMap() (map[string][]string, error) {
	if len(a.Recipients) == 0 {
		return map[string][]string{}, nil
	}
	var recipients map[string][]string
	if err := json.Unmarshal(a.Recipients, &recipients); err != nil {
		return nil, err
	}
	return recipients, nil
}

// HasChannel reports whether the given channel type is enabled.
func (a *Alert) HasChannel(channelType string) (bool, error) {
	channels, err := a.ChannelList()
	if err != nil {
		return false, err
	}
	for _, ch := range channels {
		if ch == channelType {
			return true, nil
		}
	}
	return false, nil
}

// RecipientsFor returns the recipient identifiers for a channel type.
func (a *Alert) RecipientsFor(channelType string) ([]string, error) {
	recipients, err := a.RecipientMap()
	if err != nil {
		return nil, err
	}
	return recipients[channelType], nil
}

// SetChannels encodes and stores the enabled channel types.
func (a *Alert) SetChannels(channels []string) error {
	encoded, err := json.Marshal(channels)
	if err != nil {
		return err
	}
	a.Channels = encoded
	return nil
}

// SetRecipients encodes and stores the recipients mapping.
func (a *Alert) SetRecipients(recipients map[string][]string) error {
	encoded, err := json.Marshal(recipients)
	if err != nil {
		return err
	}
	a.Recipients = encoded
	return nil
}

// WithoutChannel derives a copy of the alert with the given channel type
// removed and its recipient list cleared. The receiver is not mutated, so
// the caller persists the returned snapshot explicitly.
func (a *Alert) WithoutChannel(channelType string) (*Alert, error) {
	channels, err := a.ChannelList()
	if err != nil {
		return nil, err
	}
	recipients, err := a.RecipientMap()
	if err != nil {
		return nil, err
	}

	remaining := make([]string, 0, len(channels))
	for _, ch := range channels {
		if ch != channelType {
			remaining = append(remaining, ch)
		}
	}
	updatedRecipients := make(map[string][]string, len(recipients))
	for ch, list := range recipients {
		if ch == channelType {
			updatedRecipients[ch] = []string{}
			continue
		}
		updatedRecipients[ch] = append([]string(nil), list...)
	}

	updated := *a
	if err := updated.SetChannels(remaining); err != nil {
		return nil, err
	}
	if err := updated.SetRecipients(updatedRecipients); err != nil {
		return nil, err
	}
	return &updated, nil
}
