// Package mqtt wraps paho.mqtt.golang for publishing device state to the
// local broker.
//
// The fulfillment service is publish-only: after a command executes, the
// merged device state is published retained to a per-user, per-device topic
// so wall panels and other local subscribers pick up the change without
// polling. Connection management includes auto-reconnect with exponential
// backoff and a Last Will and Testament on the system status topic so
// subscribers can detect an unexpected shutdown.
package mqtt
