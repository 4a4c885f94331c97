// config.go: settings struct for nanolume and the functions to load and save it.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/qdlab/nanolume/internal/lattice"
	"github.com/qdlab/nanolume/internal/logger"
	"github.com/qdlab/nanolume/internal/model"
)

//go:embed config.yaml
var configFiles embed.FS

// SimulationSettings tune the simulation engine.
type SimulationSettings struct {
	CacheTTL     time.Duration // how long results stay memoised, 0 disables the cache
	SweepWorkers int           // default sweep parallelism, 0 means GOMAXPROCS
}

// RateLimitSettings configure the per-client API rate limiter.
type RateLimitSettings struct {
	Enabled   bool
	Rate      float64       // sustained requests per second per client
	Burst     int           // bucket size
	ExpiresIn time.Duration // idle visitors are forgotten after this long
}

// WebServerSettings configure the HTTP API.
type WebServerSettings struct {
	Enabled      bool
	Debug        bool
	Port         string
	BodyLimit    string        // echo body limit, e.g. "1M"
	ReadTimeout  time.Duration // http.Server read timeout
	WriteTimeout time.Duration // http.Server write timeout
	AllowOrigins []string      // CORS origins
	RateLimit    RateLimitSettings
}

// SQLiteSettings configure the SQLite datastore.
type SQLiteSettings struct {
	Enabled bool   // true to persist runs in SQLite
	Path    string // path to the database file
}

// MySQLSettings configure the MySQL datastore.
type MySQLSettings struct {
	Enabled  bool
	Username string
	Password string
	Host     string
	Port     string
	Database string
}

// MQTTSettings configure publishing of saved runs.
type MQTTSettings struct {
	Enabled        bool
	Broker         string // e.g. tcp://localhost:1883
	Topic          string // base topic, runs go to <topic>/runs
	ClientID       string
	Username       string
	Password       string
	QoS            int
	Retain         bool
	ConnectTimeout time.Duration
	TLS            struct {
		InsecureSkipVerify bool
	}
}

// TelemetrySettings configure Sentry error reporting.
type TelemetrySettings struct {
	Enabled     bool
	DSN         string
	Environment string
	Debug       bool
}

// MetricsSettings configure the Prometheus endpoint.
type MetricsSettings struct {
	Enabled bool
	Path    string // served on the API port
}

// Settings contains all configuration options for nanolume.
type Settings struct {
	Debug bool // true to enable debug mode

	// Runtime values, not stored in config file
	Version   string `yaml:"-"`
	BuildDate string `yaml:"-"`

	Main struct {
		Name string // instance name, reported by /health and in MQTT payloads
	}

	Logging logger.LoggingConfig

	Model   model.Constants   // empirical constants of the optical model
	Lattice lattice.Constants // crystal used for point clouds

	Simulation SimulationSettings
	WebServer  WebServerSettings

	Output struct {
		SQLite SQLiteSettings
		MySQL  MySQLSettings
	}

	MQTT      MQTTSettings
	Telemetry TelemetrySettings
	Metrics   MetricsSettings
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file found in the default search paths.
func Load() (*Settings, error) {
	return LoadFrom("")
}

// LoadFrom reads configFile, or searches the default paths when it is empty,
// merges defaults and environment variables and validates the result.
func LoadFrom(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper sets defaults and environment bindings and reads the config file.
// A missing config file in the default paths is created from the embedded
// template; an explicitly named file must exist.
func initViper(configFile string) error {
	setDefaultConfig()

	if err := configureEnvironmentVariables(); err != nil {
		GetLogger().Warn("environment variable issues", logger.Error(err))
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded template into dir and reads it.
func createDefaultConfig(dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(getDefaultConfig()), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	viper.SetConfigFile(configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		panic(fmt.Sprintf("embedded config.yaml missing: %v", err))
	}
	return string(data)
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SetSettings replaces the current settings instance. Used by tests and by
// commands that build settings without a config file.
func SetSettings(s *Settings) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	settingsInstance = s
}

// SaveYAMLConfig writes settings to configPath. The file is replaced
// atomically; comments in the previous file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		// Cross-device rename; fall back to copy and delete.
		if err := moveFile(tempFileName, configPath); err != nil {
			return fmt.Errorf("error copying config file: %w", err)
		}
	}

	return nil
}
