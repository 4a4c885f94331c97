// env.go - environment variable configuration and validation for nanolume
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "NANOLUME_DEBUG", validateEnvBool},
		{"main.name", "NANOLUME_NAME", nil},

		// Simulation engine
		{"simulation.cachettl", "NANOLUME_CACHE_TTL", validateEnvDuration},
		{"simulation.sweepworkers", "NANOLUME_SWEEP_WORKERS", validateEnvWorkers},

		// HTTP API
		{"webserver.port", "NANOLUME_PORT", validateEnvPort},
		{"webserver.debug", "NANOLUME_WEBSERVER_DEBUG", validateEnvBool},

		// Storage
		{"output.sqlite.enabled", "NANOLUME_SQLITE_ENABLED", validateEnvBool},
		{"output.sqlite.path", "NANOLUME_SQLITE_PATH", nil},
		{"output.mysql.enabled", "NANOLUME_MYSQL_ENABLED", validateEnvBool},
		{"output.mysql.host", "NANOLUME_MYSQL_HOST", nil},
		{"output.mysql.port", "NANOLUME_MYSQL_PORT", validateEnvPort},
		{"output.mysql.username", "NANOLUME_MYSQL_USERNAME", nil},
		{"output.mysql.password", "NANOLUME_MYSQL_PASSWORD", nil},
		{"output.mysql.database", "NANOLUME_MYSQL_DATABASE", nil},

		// MQTT
		{"mqtt.enabled", "NANOLUME_MQTT_ENABLED", validateEnvBool},
		{"mqtt.broker", "NANOLUME_MQTT_BROKER", validateEnvBrokerURL},
		{"mqtt.username", "NANOLUME_MQTT_USERNAME", nil},
		{"mqtt.password", "NANOLUME_MQTT_PASSWORD", nil},

		// Telemetry
		{"telemetry.enabled", "NANOLUME_TELEMETRY_ENABLED", validateEnvBool},
		{"telemetry.dsn", "NANOLUME_SENTRY_DSN", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		if envValue := os.Getenv(binding.EnvVar); envValue != "" {
			if err := binding.Validate(envValue); err != nil {
				warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f", value)
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	if d < 0 {
		return fmt.Errorf("duration must not be negative, got %s", d)
	}
	return nil
}

func validateEnvWorkers(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid worker count: %w", err)
	}
	if n < 0 {
		return fmt.Errorf("worker count must be non-negative, got %d", n)
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateEnvBrokerURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid broker URL: %w", err)
	}
	switch u.Scheme {
	case "tcp", "ssl", "tls", "ws", "wss", "mqtt", "mqtts":
		return nil
	default:
		return fmt.Errorf("unsupported broker scheme %q", u.Scheme)
	}
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables() error {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return bindEnvVars()
}
