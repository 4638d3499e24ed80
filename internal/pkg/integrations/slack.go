package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultSlackAPIBaseURL = "https://slack.com/api"

// SlackClient posts to a workspace using the bot token captured at install
// time.
type SlackClient struct {
	Token      string
	APIBaseURL string

	HTTPClient *http.Client
}

// SlackChannelInfo describes a channel resolved via the Slack API.
type SlackChannelInfo struct {
	ChannelID   string
	ChannelName string
	TeamID      string
}

func NewSlackClient(token string) *SlackClient {
	return &SlackClient{
		Token:      strings.TrimSpace(token),
		APIBaseURL: defaultSlackAPIBaseURL,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// GetChannelInfo resolves channel metadata for an installed channel.
func (c *SlackClient) GetChannelInfo(ctx context.Context, channelID string) (*SlackChannelInfo, error) {
	id := strings.TrimSpace(channelID)
	if id == "" {
		return nil, errors.New("channel id is required")
	}

	u, err := url.Parse(strings.TrimRight(c.APIBaseURL, "/") + "/conversations.info")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("channel", id)
	u.RawQuery = q.Encode()

	body, err := c.do(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	var raw struct {
		OK      bool   `json:"ok"`
		Error   string `json:"error"`
		Channel struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			// shared_team_ids is omitted; context_team_id covers our use.
			ContextTeamID string `json:"context_team_id"`
		} `json:"channel"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if !raw.OK {
		return nil, fmt.Errorf("slack conversations.info failed: %s", raw.Error)
	}
	return &SlackChannelInfo{
		ChannelID:   strings.TrimSpace(raw.Channel.ID),
		ChannelName: strings.TrimSpace(raw.Channel.Name),
		TeamID:      strings.TrimSpace(raw.Channel.ContextTeamID),
	}, nil
}

// PostMessage sends a plain-text message into the channel.
func (c *SlackClient) PostMessage(ctx context.Context, channelID, text string) error {
	if strings.TrimSpace(channelID) == "" {
		return errors.New("channel id is required")
	}

	payload, err := json.Marshal(map[string]string{
		"channel": strings.TrimSpace(channelID),
		"text":    text,
	})
	if err != nil {
		return err
	}

	body, err := c.do(ctx, http.MethodPost, strings.TrimRight(c.APIBaseURL, "/")+"/chat.postMessage", payload)
	if err != nil {
		return err
	}

	var raw struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return err
	}
	if !raw.OK {
		return fmt.Errorf("slack chat.postMessage failed: %s", raw.Error)
	}
	return nil
}

func (c *SlackClient) do(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	if strings.TrimSpace(c.Token) == "" {
		return nil, errors.New("slack token is required")
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("slack request failed: status=%d body=%s", resp.StatusCode, string(body))
	}
	return body, nil
}
