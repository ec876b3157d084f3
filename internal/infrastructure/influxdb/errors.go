package influxdb

import "errors"

// Sentinel errors for the history recorder, matched with errors.Is.
var (
	// ErrDisabled is returned by Connect when the influxdb section of the
	// configuration has enabled: false. Callers are expected to check the
	// flag first; the sentinel is a guard against misconfiguration.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed wraps ping failures during Connect.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned by HealthCheck after Close.
	ErrNotConnected = errors.New("influxdb: not connected")
)
