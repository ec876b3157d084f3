package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Marswave Home.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Report   ReportConfig   `yaml:"report"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig contains HTTP webhook server settings.
type ServerConfig struct {
	Host     string              `yaml:"host"`
	Port     int                 `yaml:"port"`
	TLS      TLSConfig           `yaml:"tls"`
	Timeouts ServerTimeoutConfig `yaml:"timeouts"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ServerTimeoutConfig contains HTTP timeout settings, in seconds.
type ServerTimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// AuthMode selects how bearer tokens are resolved to user identities.
type AuthMode string

// Auth modes.
const (
	// AuthModeProfile resolves tokens via the identity provider's userinfo
	// endpoint (one round-trip per request).
	AuthModeProfile AuthMode = "profile"

	// AuthModeJWT validates tokens locally as HS256 JWTs carrying an email claim.
	AuthModeJWT AuthMode = "jwt"
)

// AuthConfig contains identity resolution settings.
type AuthConfig struct {
	// Mode is "profile" (remote userinfo lookup) or "jwt" (local validation).
	Mode AuthMode `yaml:"mode"`

	// ProviderDomain is the identity provider base URL for profile mode,
	// e.g. "https://marswave.auth0.com".
	ProviderDomain string `yaml:"provider_domain"`

	// JWTSecret is the HS256 signing secret for jwt mode.
	JWTSecret string `yaml:"jwt_secret"`

	// Timeout is the userinfo request timeout in seconds (profile mode).
	Timeout int `yaml:"timeout"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings for the retained
// state broadcast. Optional; disabled brokers simply skip the broadcast.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings for execution history.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// ReportConfig contains assistant-platform report channel settings.
type ReportConfig struct {
	// Enabled controls whether state is pushed to the report channel after
	// a successful execute. The webhook works without it; the platform just
	// polls via QUERY instead.
	Enabled bool `yaml:"enabled"`

	// URL is the report channel endpoint.
	URL string `yaml:"url"`

	// Token is the service credential sent as a bearer token.
	Token string `yaml:"token"`

	// Timeout is the report request timeout in seconds.
	Timeout int `yaml:"timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: MARSWAVE_SECTION_KEY
// For example: MARSWAVE_DATABASE_PATH, MARSWAVE_AUTH_JWT_SECRET
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3000,
			Timeouts: ServerTimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Auth: AuthConfig{
			Mode:    AuthModeProfile,
			Timeout: 10,
		},
		Database: DatabaseConfig{
			Path:        "./data/marswave.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "marswave-fulfillment",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Report: ReportConfig{
			Timeout: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: MARSWAVE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("MARSWAVE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	// Auth
	if v := os.Getenv("MARSWAVE_AUTH_MODE"); v != "" {
		cfg.Auth.Mode = AuthMode(v)
	}
	if v := os.Getenv("MARSWAVE_AUTH_PROVIDER_DOMAIN"); v != "" {
		cfg.Auth.ProviderDomain = v
	}
	if v := os.Getenv("MARSWAVE_AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}

	// Database
	if v := os.Getenv("MARSWAVE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("MARSWAVE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("MARSWAVE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("MARSWAVE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("MARSWAVE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Report channel
	if v := os.Getenv("MARSWAVE_REPORT_TOKEN"); v != "" {
		cfg.Report.Token = v
	}
}

// minJWTSecretLength is the minimum accepted HS256 secret length.
// Shorter secrets make forged tokens feasible, which here means control of
// someone else's devices.
const minJWTSecretLength = 32

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	// Auth validation
	switch c.Auth.Mode {
	case AuthModeProfile:
		if c.Auth.ProviderDomain == "" {
			errs = append(errs, "auth.provider_domain is required in profile mode")
		}
	case AuthModeJWT:
		if c.Auth.JWTSecret == "" {
			errs = append(errs, "auth.jwt_secret is required in jwt mode (set MARSWAVE_AUTH_JWT_SECRET environment variable)")
		} else if len(c.Auth.JWTSecret) < minJWTSecretLength {
			errs = append(errs, "auth.jwt_secret must be at least 32 characters for adequate security")
		}
	default:
		errs = append(errs, fmt.Sprintf("auth.mode must be %q or %q", AuthModeProfile, AuthModeJWT))
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.Enabled && (c.MQTT.QoS < 0 || c.MQTT.QoS > 2) {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// Report channel validation
	if c.Report.Enabled && c.Report.URL == "" {
		errs = append(errs, "report.url is required when report.enabled is true")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ReadTimeout returns the server read timeout as a Duration.
func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// WriteTimeout returns the server write timeout as a Duration.
func (c ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.Timeouts.Write) * time.Second
}

// IdleTimeout returns the server idle timeout as a Duration.
func (c ServerConfig) IdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.Idle) * time.Second
}
