package device

import "time"

// Record represents a single device owned by a user.
//
// Descriptive fields (type, traits, naming, device info) are immutable from
// this service's perspective; provisioning manages them. Only States is
// mutated here, and only through partial merges.
type Record struct {
	// Identity
	ID   string `json:"id"`
	Type string `json:"type"`

	// Traits determine which commands are legal for this device.
	Traits []string `json:"traits"`

	// Naming
	Name         string   `json:"name"`
	DefaultNames []string `json:"default_names"`
	Nicknames    []string `json:"nicknames"`

	// Device info
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	HWVersion    string `json:"hw_version,omitempty"`
	SWVersion    string `json:"sw_version,omitempty"`

	// Attributes holds trait-specific capabilities declared at provisioning
	// time (e.g. openDirection for multi-direction openers, availableModes).
	Attributes Attributes `json:"attributes,omitempty"`

	// CustomData is passed through to the platform verbatim on discovery.
	CustomData map[string]any `json:"custom_data,omitempty"`

	// States is the authoritative runtime state mapping.
	States         State      `json:"states"`
	StateUpdatedAt *time.Time `json:"state_updated_at,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Attributes holds trait-specific device capabilities as a JSON map.
type Attributes map[string]any

// State holds device runtime state as a JSON map.
//
// Examples:
//   - Light: {"online": true, "on": true, "brightness": 75}
//   - Lock: {"online": true, "isLocked": false}
//   - Oven: {"online": true, "timerRemainingSec": 90, "timerPaused": false}
type State map[string]any

// Online reports whether the device is reachable. Missing or non-boolean
// values count as offline.
func (s State) Online() bool {
	v, ok := s["online"].(bool)
	return ok && v
}

// Bool returns the named field as a bool.
func (s State) Bool(key string) (bool, bool) {
	v, ok := s[key].(bool)
	return v, ok
}

// Map returns the named field as a nested mapping.
func (s State) Map(key string) (map[string]any, bool) {
	v, ok := s[key].(map[string]any)
	return v, ok
}

// Clone creates a deep copy of the state mapping. Nested maps and slices
// are copied recursively so mutations to the clone never leak back.
func (s State) Clone() State {
	if s == nil {
		return nil
	}
	cpy := make(State, len(s))
	for k, v := range s {
		cpy[k] = cloneValue(v)
	}
	return cpy
}

// cloneValue recursively copies a value, handling nested maps and slices.
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		cpy := make(map[string]any, len(val))
		for k, elem := range val {
			cpy[k] = cloneValue(elem)
		}
		return cpy
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = cloneValue(elem)
		}
		return cpy
	default:
		// Primitives (string, bool, float64, etc.) are safe to copy by value
		return v
	}
}

// Clone creates a complete independent copy of the Record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	cpy := *r // Shallow copy of value fields

	if r.Traits != nil {
		cpy.Traits = make([]string, len(r.Traits))
		copy(cpy.Traits, r.Traits)
	}
	if r.DefaultNames != nil {
		cpy.DefaultNames = make([]string, len(r.DefaultNames))
		copy(cpy.DefaultNames, r.DefaultNames)
	}
	if r.Nicknames != nil {
		cpy.Nicknames = make([]string, len(r.Nicknames))
		copy(cpy.Nicknames, r.Nicknames)
	}

	if r.Attributes != nil {
		cpy.Attributes = Attributes(State(r.Attributes).Clone())
	}
	if r.CustomData != nil {
		cpy.CustomData = State(r.CustomData).Clone()
	}
	cpy.States = r.States.Clone()

	return &cpy
}
