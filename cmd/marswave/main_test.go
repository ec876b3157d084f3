package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sanjeet990/MarswaveHome/internal/infrastructure/config"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("MARSWAVE_CONFIG")
	defer os.Setenv("MARSWAVE_CONFIG", originalEnv)

	os.Setenv("MARSWAVE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingDatabasePath verifies run fails when database path is empty.
func TestRun_MissingDatabasePath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
server:
  host: "127.0.0.1"
  port: 8080
  timeouts:
    read: 30
    write: 60
    idle: 120

auth:
  mode: jwt
  jwt_secret: "test-secret-for-development-only"

database:
  path: ""
  wal_mode: true
  busy_timeout: 5

mqtt:
  enabled: false

influxdb:
  enabled: false

report:
  enabled: false

logging:
  level: info
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("MARSWAVE_CONFIG")
	defer os.Setenv("MARSWAVE_CONFIG", originalEnv)
	os.Setenv("MARSWAVE_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("MARSWAVE_CONFIG")
	defer os.Setenv("MARSWAVE_CONFIG", originalEnv)

	os.Unsetenv("MARSWAVE_CONFIG")

	path := getConfigPath()
	if path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("MARSWAVE_CONFIG")
	defer os.Setenv("MARSWAVE_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("MARSWAVE_CONFIG", expected)

	path := getConfigPath()
	if path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// TestBuildResolver verifies resolver construction per auth mode.
func TestBuildResolver(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.AuthConfig
		wantErr bool
	}{
		{
			name: "jwt mode",
			cfg:  config.AuthConfig{Mode: config.AuthModeJWT, JWTSecret: "secret"},
		},
		{
			name: "profile mode",
			cfg:  config.AuthConfig{Mode: config.AuthModeProfile, ProviderDomain: "https://example.auth0.com", Timeout: 5},
		},
		{
			name:    "unknown mode",
			cfg:     config.AuthConfig{Mode: "saml"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver, err := buildResolver(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("buildResolver() should fail")
				}
				return
			}
			if err != nil {
				t.Fatalf("buildResolver() error: %v", err)
			}
			if resolver == nil {
				t.Fatal("buildResolver() returned nil resolver")
			}
		})
	}
}

// TestRun_SuccessfulStartupAndShutdown tests full startup with only the
// required services (MQTT, InfluxDB, and report channel disabled).
func TestRun_SuccessfulStartupAndShutdown(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")
	dbPath := filepath.Join(tmpDir, "test.db")

	configContent := `
server:
  host: "127.0.0.1"
  port: 18789

auth:
  mode: jwt
  jwt_secret: "test-secret-for-development-only"

database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

mqtt:
  enabled: false

influxdb:
  enabled: false

report:
  enabled: false

logging:
  level: info
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("MARSWAVE_CONFIG")
	defer os.Setenv("MARSWAVE_CONFIG", originalEnv)
	os.Setenv("MARSWAVE_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() returned error: %v", err)
	}
}
