// Package config loads and validates Marswave Home configuration.
//
// Configuration is read from a YAML file with three layers of precedence:
// hardcoded defaults, file values, then MARSWAVE_* environment variables.
// Secrets (identity tokens, JWT secret, InfluxDB token) should always come
// from the environment in production.
package config
