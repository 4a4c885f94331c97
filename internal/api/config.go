// Package api provides the HTTP server infrastructure for nanolume.
// This package contains the main server implementation while the JSON API
// endpoints are organized in the v2 subpackage.
package api

import (
	"fmt"
	"time"

	"github.com/qdlab/nanolume/internal/conf"
	"github.com/qdlab/nanolume/internal/logger"
)

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("server")
}

// Default constants for the HTTP server.
const (
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Config holds the HTTP server configuration.
type Config struct {
	Host string // Host to bind to (empty for all interfaces)
	Port string // Port to listen on

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Debug       bool
	MetricsPath string // empty disables /metrics
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:            "8080",
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// ConfigFromSettings creates a Config from the application settings.
func ConfigFromSettings(settings *conf.Settings) *Config {
	cfg := DefaultConfig()

	cfg.Port = settings.WebServer.Port
	if settings.WebServer.ReadTimeout > 0 {
		cfg.ReadTimeout = settings.WebServer.ReadTimeout
	}
	if settings.WebServer.WriteTimeout > 0 {
		cfg.WriteTimeout = settings.WebServer.WriteTimeout
	}
	cfg.Debug = settings.WebServer.Debug || settings.Debug

	if settings.Metrics.Enabled {
		cfg.MetricsPath = settings.Metrics.Path
		if cfg.MetricsPath == "" {
			cfg.MetricsPath = "/metrics"
		}
	}

	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	return nil
}

// Address returns the full address string for the server to listen on.
func (c *Config) Address() string {
	if c.Host == "" {
		return ":" + c.Port
	}
	return c.Host + ":" + c.Port
}
