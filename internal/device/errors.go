package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist under
	// the given user.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device with an ID that
	// already exists for the user.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrStoreUnavailable is returned when the underlying store cannot be
	// reached or fails at the transport level. It is never retried at this
	// layer.
	ErrStoreUnavailable = errors.New("device: store unavailable")
)
