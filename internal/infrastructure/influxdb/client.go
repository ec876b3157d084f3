package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/Sanjeet990/MarswaveHome/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 // seconds
)

// Client records execution history points in InfluxDB.
//
// Writes go through the SDK's non-blocking write API: points are batched
// in memory and flushed on a timer, so recording never sits on the request
// path. Write failures surface through the SetOnError callback.
//
// All methods are safe for concurrent use.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.InfluxDBConfig

	connected bool
	mu        sync.RWMutex

	onError func(err error)
}

// Connect creates the client and verifies the server responds to a ping.
//
// Parameters:
//   - cfg: InfluxDB section of the application configuration
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: ErrDisabled if the section is disabled, ErrConnectionFailed
//     if the server cannot be reached
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}

	// #nosec G115 -- both values clamped positive above
	sdk := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval*1000)))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	healthy, err := sdk.Ping(ctx)
	if err != nil {
		sdk.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		sdk.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := sdk.WriteAPI(cfg.Org, cfg.Bucket)

	c := &Client{
		client:    sdk,
		writeAPI:  writeAPI,
		cfg:       cfg,
		connected: true,
	}
	go c.drainWriteErrors(writeAPI.Errors())

	return c, nil
}

// drainWriteErrors forwards async write failures to the registered callback.
// The channel closes when the write API shuts down.
func (c *Client) drainWriteErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		c.mu.RLock()
		callback := c.onError
		c.mu.RUnlock()

		if callback != nil {
			callback(err)
		}
	}
}

// Close flushes buffered points and shuts down the SDK client.
// The error return is always nil; it exists to fit the defer-chain
// shape shared by the other infrastructure clients.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.writeAPI.Flush()
	c.client.Close()

	return nil
}

// HealthCheck pings the server.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if the server responds healthy, ErrNotConnected after Close
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}

	return nil
}

// IsConnected reports the last known connection state. It does not ping;
// use HealthCheck for an active probe.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SetOnError registers a callback for asynchronous write failures.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// Flush blocks until all buffered points are written. No-op after Close.
func (c *Client) Flush() {
	if c.writeAPI == nil {
		return
	}

	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()

	if !connected {
		return
	}

	c.writeAPI.Flush()
}
