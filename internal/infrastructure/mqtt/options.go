package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Sanjeet990/MarswaveHome/internal/infrastructure/config"
)

const (
	connectTimeout  = 10 * time.Second
	publishTimeout  = 5 * time.Second
	keepAlive       = 60 * time.Second
	disconnectGrace = 1000 // milliseconds, paho wants the raw number

	maxQoS = 2
)

// buildClientOptions translates the mqtt config section into paho options.
//
// The session is always clean: the webhook only publishes, so there is
// no subscription state worth resuming. Reconnection is left to paho
// with the configured backoff bounds.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	return opts
}

// configureLWT registers the broker-side will message. If the service
// dies without a clean Close, the broker publishes an offline status on
// the retained system topic so local subscribers notice the outage.
func configureLWT(opts *pahomqtt.ClientOptions, clientID string) {
	opts.SetWill(Topics{}.SystemStatus(), statusJSON(clientID, "offline", "unexpected_disconnect"), 1, true)
}

// statusPayload is the body published to the system status topic.
type statusPayload struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// statusJSON renders a status payload. Marshalling a flat struct of
// strings cannot fail, so the error is discarded.
func statusJSON(clientID, status, reason string) string {
	b, _ := json.Marshal(statusPayload{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return string(b)
}

func buildOnlinePayload(clientID string) string {
	return statusJSON(clientID, "online", "")
}

func buildOfflinePayload(clientID string) string {
	return statusJSON(clientID, "offline", "graceful_shutdown")
}
