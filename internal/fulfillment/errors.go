package fulfillment

import (
	"errors"

	"github.com/Sanjeet990/MarswaveHome/internal/device"
)

// Wire error codes returned to the platform in per-device ERROR entries.
// These are the only failure strings the caller ever sees; internal
// error details never leak into responses.
const (
	CodeDeviceNotFound     = "deviceNotFound"
	CodeDeviceOffline      = "deviceOffline"
	CodeActionNotAvailable = "actionNotAvailable"
	CodeNotSupported       = "notSupported"
	CodeNoTimerExists      = "noTimerExists"
	CodeValueOutOfRange    = "valueOutOfRange"
	CodeHardError          = "hardError"
)

// CommandError is a recoverable per-device failure carrying its wire code.
// Inside query/execute it becomes that device's own error entry; sibling
// devices proceed unaffected.
type CommandError struct {
	Code string
}

func (e *CommandError) Error() string {
	return "fulfillment: " + e.Code
}

// ErrInvalidRequest indicates a malformed request envelope (no inputs,
// unknown intent). Callers should map this to an HTTP 400 response.
var ErrInvalidRequest = errors.New("fulfillment: invalid request")

// Command errors, one per wire code.
var (
	ErrDeviceNotFound     = &CommandError{Code: CodeDeviceNotFound}
	ErrDeviceOffline      = &CommandError{Code: CodeDeviceOffline}
	ErrActionNotAvailable = &CommandError{Code: CodeActionNotAvailable}
	ErrNotSupported       = &CommandError{Code: CodeNotSupported}
	ErrNoTimerExists      = &CommandError{Code: CodeNoTimerExists}
	ErrValueOutOfRange    = &CommandError{Code: CodeValueOutOfRange}
)

// errorCode extracts the wire code from an error. Unrecognized errors
// collapse to hardError so internal detail stays out of the response.
func errorCode(err error) string {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Code
	}
	if errors.Is(err, device.ErrDeviceNotFound) {
		return CodeDeviceNotFound
	}
	return CodeHardError
}
