package fulfillment

import "github.com/Sanjeet990/MarswaveHome/internal/device"

// Intent identifiers as they appear on the wire.
const (
	IntentSync       = "action.devices.SYNC"
	IntentQuery      = "action.devices.QUERY"
	IntentExecute    = "action.devices.EXECUTE"
	IntentDisconnect = "action.devices.DISCONNECT"
)

// Execute result statuses.
const (
	StatusSuccess = "SUCCESS"
	StatusError   = "ERROR"
)

// Request is the envelope common to all four intents.
type Request struct {
	RequestID string  `json:"requestId"`
	Inputs    []Input `json:"inputs"`
}

// Input carries one intent and its intent-specific payload.
type Input struct {
	Intent  string       `json:"intent"`
	Payload InputPayload `json:"payload,omitempty"`
}

// InputPayload is the union of QUERY and EXECUTE payload fields.
// SYNC and DISCONNECT carry no payload.
type InputPayload struct {
	Devices  []DeviceRef    `json:"devices,omitempty"`
	Commands []CommandGroup `json:"commands,omitempty"`
}

// DeviceRef identifies one target device in a QUERY or EXECUTE input.
type DeviceRef struct {
	ID         string         `json:"id"`
	CustomData map[string]any `json:"customData,omitempty"`
}

// CommandGroup applies a list of executions to a list of devices.
type CommandGroup struct {
	Devices   []DeviceRef `json:"devices"`
	Execution []Execution `json:"execution"`
}

// Execution is a single command invocation with its parameters.
type Execution struct {
	Command string         `json:"command"`
	Params  map[string]any `json:"params,omitempty"`
}

// SyncResponse answers a SYNC intent with the user's device inventory.
type SyncResponse struct {
	RequestID string      `json:"requestId"`
	Payload   SyncPayload `json:"payload"`
}

// SyncPayload carries the discovery projection. Devices is always
// non-nil so an unknown user serializes as an empty list.
type SyncPayload struct {
	AgentUserID string            `json:"agentUserId"`
	Devices     []DiscoveryDevice `json:"devices"`
}

// DiscoveryDevice is the per-device discovery projection.
type DiscoveryDevice struct {
	ID              string         `json:"id"`
	Type            string         `json:"type"`
	Traits          []string       `json:"traits"`
	Name            DeviceName     `json:"name"`
	WillReportState bool           `json:"willReportState"`
	Attributes      map[string]any `json:"attributes,omitempty"`
	DeviceInfo      DeviceInfo     `json:"deviceInfo"`
	CustomData      map[string]any `json:"customData,omitempty"`
}

// DeviceName groups the naming fields of a discovery projection.
type DeviceName struct {
	DefaultNames []string `json:"defaultNames"`
	Name         string   `json:"name"`
	Nicknames    []string `json:"nicknames"`
}

// DeviceInfo groups the hardware identification fields.
type DeviceInfo struct {
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	HWVersion    string `json:"hwVersion"`
	SWVersion    string `json:"swVersion"`
}

// QueryResponse answers a QUERY intent with per-device state mappings.
type QueryResponse struct {
	RequestID string       `json:"requestId"`
	Payload   QueryPayload `json:"payload"`
}

// QueryPayload maps each requested device id to its state, or to an
// error marker when that device failed.
type QueryPayload struct {
	Devices map[string]map[string]any `json:"devices"`
}

// ExecuteResponse answers an EXECUTE intent with aggregate results.
type ExecuteResponse struct {
	RequestID string         `json:"requestId"`
	Payload   ExecutePayload `json:"payload"`
}

// ExecutePayload carries the per-outcome result entries.
type ExecutePayload struct {
	Commands []ExecuteResult `json:"commands"`
}

// ExecuteResult is one aggregate outcome entry. Succeeding device ids
// share a single SUCCESS entry; each failing device gets its own ERROR
// entry with a machine-readable code.
type ExecuteResult struct {
	IDs       []string     `json:"ids"`
	Status    string       `json:"status"`
	States    device.State `json:"states,omitempty"`
	ErrorCode string       `json:"errorCode,omitempty"`
}

// DisconnectResponse acknowledges a DISCONNECT intent. Always empty.
type DisconnectResponse struct{}
