package report

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Sanjeet990/MarswaveHome/internal/device"
	"github.com/Sanjeet990/MarswaveHome/internal/infrastructure/mqtt"
)

// publisher is the slice of the MQTT client the broadcaster needs.
type publisher interface {
	PublishRetained(topic string, payload []byte) error
}

// Broadcast publishes resulting device state as retained MQTT messages,
// one per device, on marswave/state/{user}/{device}.
type Broadcast struct {
	pub publisher
}

// NewBroadcast creates a broadcaster over the given MQTT client.
func NewBroadcast(pub publisher) *Broadcast {
	return &Broadcast{pub: pub}
}

// ReportState publishes each device's state fragment to its topic.
// Publishing continues past individual failures; the first error is
// returned after all devices are attempted.
func (b *Broadcast) ReportState(ctx context.Context, agentUserID string, states map[string]device.State) error {
	topics := mqtt.Topics{}
	var firstErr error
	for deviceID, state := range states {
		payload, err := json.Marshal(state)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("marshalling state for %s: %w", deviceID, err)
			}
			continue
		}
		if err := b.pub.PublishRetained(topics.DeviceState(agentUserID, deviceID), payload); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("publishing state for %s: %w", deviceID, err)
			}
		}
	}
	return firstErr
}
