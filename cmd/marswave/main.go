// Marswave Home - Smart Home Fulfillment Webhook
//
// This is the main entry point for the Marswave Home webhook service.
// Marswave answers voice-assistant fulfillment intents (SYNC, QUERY,
// EXECUTE, DISCONNECT) over HTTP, keeping each user's device states in
// a local SQLite store and optionally pushing state changes to the
// assistant platform's report channel and an MQTT broker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/Sanjeet990/MarswaveHome/migrations"

	"github.com/Sanjeet990/MarswaveHome/internal/api"
	"github.com/Sanjeet990/MarswaveHome/internal/device"
	"github.com/Sanjeet990/MarswaveHome/internal/fulfillment"
	"github.com/Sanjeet990/MarswaveHome/internal/identity"
	"github.com/Sanjeet990/MarswaveHome/internal/infrastructure/config"
	"github.com/Sanjeet990/MarswaveHome/internal/infrastructure/database"
	"github.com/Sanjeet990/MarswaveHome/internal/infrastructure/influxdb"
	"github.com/Sanjeet990/MarswaveHome/internal/infrastructure/logging"
	"github.com/Sanjeet990/MarswaveHome/internal/infrastructure/mqtt"
	"github.com/Sanjeet990/MarswaveHome/internal/report"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Marswave Home",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Device state store
	store := device.NewSQLiteStore(db.DB)

	// Connect to MQTT broker (optional, for the retained state broadcast)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional, for execution history)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Resolve bearer tokens to user identities
	resolver, err := buildResolver(cfg.Auth)
	if err != nil {
		return fmt.Errorf("configuring identity resolver: %w", err)
	}
	log.Info("identity resolver configured", "mode", cfg.Auth.Mode)

	// State reporters: report channel push and/or retained MQTT broadcast
	var reporters []report.Reporter
	if cfg.Report.Enabled {
		reporters = append(reporters, report.NewHomeGraph(
			cfg.Report.URL,
			cfg.Report.Token,
			time.Duration(cfg.Report.Timeout)*time.Second,
		))
		log.Info("report channel enabled", "url", cfg.Report.URL)
	}
	if mqttClient != nil {
		reporters = append(reporters, report.NewBroadcast(mqttClient))
	}
	var reporter fulfillment.Reporter
	if len(reporters) > 0 {
		reporter = report.NewMulti(reporters...)
	}

	// Execution history recorder (nil when InfluxDB is disabled)
	var recorder fulfillment.Recorder
	if influxClient != nil {
		recorder = &historyRecorder{client: influxClient}
	}

	// Intent dispatcher
	dispatcher := fulfillment.NewDispatcher(fulfillment.Deps{
		Resolver: resolver,
		Store:    store,
		Reporter: reporter,
		Recorder: recorder,
		Logger:   log,
	})

	// HTTP webhook server
	server, err := api.New(api.Deps{
		Config:     cfg.Server,
		Logger:     log,
		Dispatcher: dispatcher,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"tls", cfg.Server.TLS.Enabled,
	)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, server, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Database

	log.Info("Marswave Home stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses MARSWAVE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("MARSWAVE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// buildResolver constructs the identity resolver selected by the auth config.
//
// Parameters:
//   - cfg: Auth section of the application configuration
//
// Returns:
//   - identity.Resolver: Resolver for the configured mode
//   - error: If the mode is not recognised
func buildResolver(cfg config.AuthConfig) (identity.Resolver, error) {
	switch cfg.Mode {
	case config.AuthModeProfile:
		return identity.NewProfileResolver(cfg.ProviderDomain, time.Duration(cfg.Timeout)*time.Second), nil
	case config.AuthModeJWT:
		return identity.NewJWTResolver(cfg.JWTSecret), nil
	default:
		return nil, fmt.Errorf("unknown auth mode: %q", cfg.Mode)
	}
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - server: API server to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, server *api.Server, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	// Check database
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	// Check API server
	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	// Check MQTT (if enabled)
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	// Check InfluxDB (if enabled)
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// historyRecorder adapts the infrastructure InfluxDB client to the
// dispatcher's Recorder interface. Writes are buffered and asynchronous,
// so the adapter never blocks request handling.
type historyRecorder struct {
	client *influxdb.Client
}

// RecordExecution implements fulfillment.Recorder.
func (r *historyRecorder) RecordExecution(userKey, deviceID, command, errorCode string) {
	r.client.WriteExecution(userKey, deviceID, command, errorCode)
}

// RecordIntent implements fulfillment.Recorder.
func (r *historyRecorder) RecordIntent(userKey, intent string, deviceCount int) {
	r.client.WriteIntent(userKey, intent, deviceCount)
}
