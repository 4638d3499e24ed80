package integrations

import (
	"errors"
	"testing"
)

func TestParseChannelKey(t *testing.T) {
	key, err := ParseChannelKey("T1#C1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.WorkspaceID != "T1" || key.ChannelID != "C1" {
		t.Fatalf("unexpected key: %+v", key)
	}
	if key.String() != "T1#C1" {
		t.Fatalf("round trip failed: %q", key.String())
	}
}

func TestParseChannelKey_SplitsOnFirstSeparator(t *testing.T) {
	key, err := ParseChannelKey("T1#C1#extra")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.WorkspaceID != "T1" || key.ChannelID != "C1#extra" {
		t.Fatalf("expected split on first '#', got %+v", key)
	}
}

func TestParseChannelKey_Malformed(t *testing.T) {
	for _, raw := range []string{"", "T1C1", "#C1", "T1#", "#"} {
		_, err := ParseChannelKey(raw)
		if !errors.Is(err, ErrMalformedChannelKey) {
			t.Fatalf("expected ErrMalformedChannelKey for %q, got %v", raw, err)
		}
	}
}
