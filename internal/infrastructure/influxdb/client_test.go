package influxdb_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Sanjeet990/MarswaveHome/internal/infrastructure/config"
	"github.com/Sanjeet990/MarswaveHome/internal/infrastructure/influxdb"
)

// testConfig returns a configuration for the local dev InfluxDB.
// These values match docker-compose.yml.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "marswave-dev-token",
		Org:           "marswave",
		Bucket:        "fulfillment",
		BatchSize:     100,
		FlushInterval: 1, // 1 second for faster test feedback
	}
}

// skipIfNoInfluxDB skips the test if InfluxDB is not running.
func skipIfNoInfluxDB(t *testing.T) *influxdb.Client {
	t.Helper()
	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Skip("InfluxDB not available, skipping integration test")
	}
	return client
}

func TestConnectDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("expected ErrDisabled, got %v", err)
	}
}

func TestConnectUnreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999"

	_, err := influxdb.Connect(cfg)
	if err == nil {
		t.Fatal("expected connection error for unreachable server")
	}
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("expected ErrConnectionFailed, got %v", err)
	}
}

func TestWriteExecution(t *testing.T) {
	client := skipIfNoInfluxDB(t)
	defer client.Close()

	client.WriteExecution("alice@example.com", "lamp-1", "action.devices.commands.OnOff", "")
	client.WriteExecution("alice@example.com", "lamp-2", "action.devices.commands.OnOff", "deviceOffline")
	client.Flush()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("health check failed after writes: %v", err)
	}
}

func TestWriteIntent(t *testing.T) {
	client := skipIfNoInfluxDB(t)
	defer client.Close()

	client.WriteIntent("alice@example.com", "action.devices.QUERY", 3)
	client.Flush()
}

func TestHealthCheckAfterClose(t *testing.T) {
	client := skipIfNoInfluxDB(t)
	client.Close()

	err := client.HealthCheck(context.Background())
	if !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("expected ErrNotConnected after close, got %v", err)
	}

	// Writes after close are silently dropped, not a panic.
	client.WriteExecution("alice@example.com", "lamp-1", "action.devices.commands.OnOff", "")
	client.Flush()
}
