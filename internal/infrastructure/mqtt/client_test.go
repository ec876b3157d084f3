package mqtt

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"device state", topics.DeviceState("alice@example.com", "lamp-1"), "marswave/state/alice%40example.com/lamp-1"},
		{"user states pattern", topics.UserStates("alice@example.com"), "marswave/state/alice%40example.com/+"},
		{"all states pattern", topics.AllStates(), "marswave/state/+/+"},
		{"system status", topics.SystemStatus(), "marswave/system/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestSanitizeSegment(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"user+tag@example.com", "user%2Btag%40example.com"},
		{"a/b", "a%2Fb"},
		{"odd#id", "odd%23id"},
	}

	for _, tt := range tests {
		if got := sanitizeSegment(tt.in); got != tt.want {
			t.Errorf("sanitizeSegment(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizedTopicHasNoWildcards(t *testing.T) {
	topic := Topics{}.DeviceState("user+alias@example.com", "dev/1")
	if strings.ContainsAny(topic, "+#") {
		t.Errorf("topic %q contains wildcard characters", topic)
	}
}

func TestStatusPayloads(t *testing.T) {
	var online statusPayload
	if err := json.Unmarshal([]byte(buildOnlinePayload("marswave-fulfillment")), &online); err != nil {
		t.Fatalf("online payload is not valid JSON: %v", err)
	}
	if online.Status != "online" {
		t.Errorf("online status = %q, want %q", online.Status, "online")
	}
	if online.ClientID != "marswave-fulfillment" {
		t.Errorf("online client_id = %q, want %q", online.ClientID, "marswave-fulfillment")
	}
	if online.Reason != "" {
		t.Errorf("online payload should carry no reason, got %q", online.Reason)
	}

	var offline statusPayload
	if err := json.Unmarshal([]byte(buildOfflinePayload("marswave-fulfillment")), &offline); err != nil {
		t.Fatalf("offline payload is not valid JSON: %v", err)
	}
	if offline.Status != "offline" || offline.Reason != "graceful_shutdown" {
		t.Errorf("offline payload = %+v, want offline/graceful_shutdown", offline)
	}
	if offline.Timestamp == "" {
		t.Error("offline payload missing timestamp")
	}
}

func TestPublishValidation(t *testing.T) {
	c := &Client{}

	if err := c.Publish("", []byte("{}"), 0, false); err != ErrInvalidTopic {
		t.Errorf("expected ErrInvalidTopic for empty topic, got %v", err)
	}
	if err := c.Publish("marswave/state/a/b", []byte("{}"), 3, false); err != ErrInvalidQoS {
		t.Errorf("expected ErrInvalidQoS for qos 3, got %v", err)
	}

	oversized := make([]byte, maxPayloadSize+1)
	if err := c.Publish("marswave/state/a/b", oversized, 0, false); err == nil {
		t.Error("expected error for oversized payload")
	}
}
