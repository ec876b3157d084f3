package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteExecution records one command execution against one device.
//
// The write is non-blocking; data is batched and sent asynchronously.
// An empty errorCode records a success.
//
// Parameters:
//   - userKey: Owner of the device
//   - deviceID: Device the command targeted
//   - command: Full command name (e.g., "action.devices.commands.OnOff")
//   - errorCode: Failure code, or "" on success
func (c *Client) WriteExecution(userKey, deviceID, command, errorCode string) {
	if !c.IsConnected() {
		return
	}

	status := "success"
	success := 1
	if errorCode != "" {
		status = "error"
		success = 0
	}

	tags := map[string]string{
		"user":    userKey,
		"device":  deviceID,
		"command": command,
		"status":  status,
	}
	fields := map[string]interface{}{
		"success": success,
	}
	if errorCode != "" {
		fields["error_code"] = errorCode
	}

	point := write.NewPoint("execution", tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WriteIntent records one fulfillment intent served for a user.
//
// Used to track discovery, query, and disconnect traffic volumes.
//
// Parameters:
//   - userKey: The resolved user
//   - intent: Intent name (e.g., "action.devices.QUERY")
//   - deviceCount: Number of devices the response covered
func (c *Client) WriteIntent(userKey, intent string, deviceCount int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"intent",
		map[string]string{
			"user":   userKey,
			"intent": intent,
		},
		map[string]interface{}{
			"devices": deviceCount,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
