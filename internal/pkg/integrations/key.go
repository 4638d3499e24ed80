package integrations

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedChannelKey marks a compound channel key that does not split
// into exactly two non-empty segments. When it comes from a stored record it
// is a data-integrity problem, not a user-input validation failure, and
// callers must surface it instead of silently dropping the reference.
var ErrMalformedChannelKey = errors.New("malformed channel key")

// ChannelKey is the parsed "<workspace_or_guild_id>#<channel_id>" identity
// correlating alert recipients with integration records.
type ChannelKey struct {
	WorkspaceID string
	ChannelID   string
}

// ParseChannelKey splits a compound key on the first '#'. Both segments must
// be non-empty.
func ParseChannelKey(raw string) (ChannelKey, error) {
	workspace, channel, found := strings.Cut(raw, "#")
	if !found || workspace == "" || channel == "" {
		return ChannelKey{}, fmt.Errorf("%w: %q", ErrMalformedChannelKey, raw)
	}
	return ChannelKey{WorkspaceID: workspace, ChannelID: channel}, nil
}

// FormatChannelKey builds the compound key from its parts.
func FormatChannelKey(workspaceID, channelID string) string {
	return workspaceID + "#" + channelID
}

func (k ChannelKey) String() string {
	return FormatChannelKey(k.WorkspaceID, k.ChannelID)
}
