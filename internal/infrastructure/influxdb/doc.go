// Package influxdb provides InfluxDB connectivity for execution history.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, non-blocking batched writes, and health monitoring.
//
// # Purpose
//
// This package records time-series data for:
//   - Command execution history (which command ran against which device,
//     and whether it succeeded)
//   - Query and discovery request counts per user
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "marswave",
//	    Bucket: "fulfillment",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteExecution("alice@example.com", "lamp-1", "action.devices.commands.OnOff", "")
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
package influxdb
