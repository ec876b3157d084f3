// Package report delivers resulting device state to interested parties
// after a command executes.
//
// Two destinations exist: the assistant platform's report-state channel
// (an HTTP POST carrying the per-device state fragments) and the local
// MQTT broker (a retained message per device so wall panels converge
// without polling). Multi fans one report out to both.
//
// All delivery is best-effort. The dispatcher calls reporters off the
// request path; failures are logged by the caller and never retried.
package report
