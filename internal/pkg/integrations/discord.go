package integrations

import (
	"bytes"
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

const defaultDiscordAPIBaseURL = "https://discord.com/api/v10"

// DiscordClient talks to the Discord REST API with the application's bot
// token. Unlike Slack, one bot token covers every guild the bot was added
// to, so the client is configured from the environment.
type DiscordClient struct {
	BotToken   string
	APIBaseURL string

	HTTPClient *http.Client
}

// DiscordChannelInfo describes a channel resolved via the Discord API.
type DiscordChannelInfo struct {
	ChannelID   string
	ChannelName string
	GuildID     string
}

func NewDiscordClientFromEnv() *DiscordClient {
	return &DiscordClient{
		BotToken:   strings.TrimSpace(env.GetEnv("DISCORD_BOT_TOKEN", "")),
		APIBaseURL: strings.TrimSpace(env.GetEnv("DISCORD_API_BASE_URL", defaultDiscordAPIBaseURL)),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// GetChannelInfo resolves channel metadata for an installed channel.
func (c *DiscordClient) GetChannelInfo(ctx context.Context, channelID string) (*DiscordChannelInfo, error) {
	id := strings.TrimSpace(channelID)
	if id == "" {
		return nil, errors.New("channel id is required")
	}

	body, err := c.do(ctx, http.MethodGet, strings.TrimRight(c.APIBaseURL, "/")+"/channels/"+id, nil)
	if err != nil {
		return nil, err
	}

	var raw struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		GuildID string `json:"guild_id"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw.ID) == "" {
		return nil, errors.New("discord channel response missing id")
	}
	return &DiscordChannelInfo{
		ChannelID:   strings.TrimSpace(raw.ID),
		ChannelName: strings.TrimSpace(raw.Name),
		GuildID:     strings.TrimSpace(raw.GuildID),
	}, nil
}

// PostMessage sends a plain-text message into the channel.
func (c *DiscordClient) PostMessage(ctx context.Context, channelID, content string) error {
	id := strings.TrimSpace(channelID)
	if id == "" {
		return errors.New("channel id is required")
	}

	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return err
	}

	_, err = c.do(ctx, http.MethodPost, strings.TrimRight(c.APIBaseURL, "/")+"/channels/"+id+"/messages", payload)
	return err
}

func (c *DiscordClient) do(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	if strings.TrimSpace(c.BotToken) == "" {
		return nil, errors.New("DISCORD_BOT_TOKEN is not configured")
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bot "+c.BotToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("discord request failed: status=%d body=%s", resp.StatusCode, string(body))
	}
	return body, nil
}
