package mqtt

import "fmt"

// Topic prefixes for the broker hierarchy.
//
// State topics use the scheme: marswave/state/{user}/{device}
// where {user} is the sanitized user key and {device} the device id.
const (
	// TopicPrefix is the base for all topics published by this service.
	TopicPrefix = "marswave"

	// TopicPrefixState is the base for per-device state topics.
	TopicPrefixState = "marswave/state"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "marswave/system"
)

// Topics provides builders for broker topics.
// Using these helpers ensures consistent topic naming across the codebase.
type Topics struct{}

// DeviceState returns the retained state topic for a user's device.
//
// Example: marswave/state/alice%40example.com/lamp-1
func (Topics) DeviceState(userKey, deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixState, sanitizeSegment(userKey), sanitizeSegment(deviceID))
}

// UserStates returns a pattern matching all state topics for one user.
//
// Pattern: marswave/state/alice%40example.com/+
func (Topics) UserStates(userKey string) string {
	return fmt.Sprintf("%s/%s/+", TopicPrefixState, sanitizeSegment(userKey))
}

// AllStates returns a pattern matching every device state topic.
//
// Pattern: marswave/state/+/+
func (Topics) AllStates() string {
	return TopicPrefixState + "/+/+"
}

// SystemStatus returns the system status topic.
//
// Example: marswave/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// sanitizeSegment escapes characters that carry meaning in topic filters.
// User keys are email addresses, so '+' (sub-addressing) and '#' must not
// leak into the topic as wildcards; '/' would add a level.
func sanitizeSegment(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '+':
			out = append(out, "%2B"...)
		case '#':
			out = append(out, "%23"...)
		case '/':
			out = append(out, "%2F"...)
		case '@':
			out = append(out, "%40"...)
		default:
			out = append(out, c)
		}
	}
	return string(out)
}
