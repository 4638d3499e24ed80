package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlertWithoutChannelDerivesCopy(t *testing.T) {
	alert := &Alert{ID: 7, OwnerKind: OwnerKindUser, OwnerID: 1, Name: "prod"}
	require.NoError(t, alert.SetChannels([]string{AlertChannelSlack, AlertChannelEmail}))
	require.NoError(t, alert.SetRecipients(map[string][]string{
		AlertChannelSlack: {"T042#C999"},
		AlertChannelEmail: {"ops@example.com"},
	}))

	updated, err := alert.WithoutChannel(AlertChannelSlack)
	require.NoError(t, err)

	// Original stays untouched.
	originalChannels, err := alert.ChannelList()
	require.NoError(t, err)
	assert.Equal(t, []string{AlertChannelSlack, AlertChannelEmail}, originalChannels)

	updatedChannels, err := updated.ChannelList()
	require.NoError(t, err)
	assert.Equal(t, []string{AlertChannelEmail}, updatedChannels)

	updatedRecipients, err := updated.RecipientMap()
	require.NoError(t, err)
	assert.Equal(t, []string{}, updatedRecipients[AlertChannelSlack])
	assert.Equal(t, []string{"ops@example.com"}, updatedRecipients[AlertChannelEmail])
}

func TestAlertWithoutChannelAbsentChannel(t *testing.T) {
	alert := &Alert{ID: 8, Name: "prod"}
	require.NoError(t, alert.SetChannels([]string{AlertChannelEmail}))
	require.NoError(t, alert.SetRecipients(map[string][]string{
		AlertChannelEmail: {"ops@example.com"},
	}))

	updated, err := alert.WithoutChannel(AlertChannelDiscord)
	require.NoError(t, err)

	channels, err := updated.ChannelList()
	require.NoError(t, err)
	assert.Equal(t, []string{AlertChannelEmail}, channels)
}

func TestAlertCorruptChannelsSurface(t *testing.T) {
	alert := &Alert{ID: 9, Channels: []byte("{not json")}

	_, err := alert.ChannelList()
	assert.Error(t, err)

	_, err = alert.WithoutChannel(AlertChannelSlack)
	assert.Error(t, err)
}

func TestAlertHasChannelAndRecipients(t *testing.T) {
	alert := &Alert{ID: 10}
	require.NoError(t, alert.SetChannels([]string{AlertChannelDiscord}))
	require.NoError(t, alert.SetRecipients(map[string][]string{
		AlertChannelDiscord: {"G1#C1", "G1#C2"},
	}))

	has, err := alert.HasChannel(AlertChannelDiscord)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = alert.HasChannel(AlertChannelSlack)
	require.NoError(t, err)
	assert.False(t, has)

	recipients, err := alert.RecipientsFor(AlertChannelDiscord)
	require.NoError(t, err)
	assert.Len(t, recipients, 2)
}
