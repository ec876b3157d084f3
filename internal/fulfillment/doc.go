// Package fulfillment implements the smart-home webhook intents.
//
// Four intents arrive from the assistant platform: SYNC (device
// discovery), QUERY (state readback), EXECUTE (device commands), and
// DISCONNECT (account unlink). The Dispatcher resolves the caller's
// identity once per request, fans out over the requested devices, and
// assembles the aggregate response. Failures are isolated per device:
// one device's error never aborts its siblings.
//
// Command semantics live in the registry in commands.go. Each handler
// is a pure function over the current device record and the command
// parameters, returning the fields to persist and the fields to echo
// back to the platform. The two sets differ for commands that report
// derived or sibling state, such as a thermostat setpoint change that
// also echoes the ambient temperature.
package fulfillment
