package main

import (
	"fmt"
	"net"
	"os"

	"github.com/spf13/viper"

	"github.com/qdlab/nanolume/internal/conf"
)

const maxBatchSize = 10000

// Config holds the configuration for the export tool.
type Config struct {
	SQLitePath string
	MySQL      conf.MySQLSettings

	BatchSize  int
	Clean      bool
	SkipVerify bool
	Verbose    bool

	// Config file path for fallback
	ConfigPath string
}

// Load validates the configuration, filling missing connection details from
// config.yaml.
func (c *Config) Load() error {
	if c.SQLitePath == "" || c.MySQL.Host == "" {
		if err := c.loadFromConfigFile(); err != nil && c.SQLitePath == "" {
			return fmt.Errorf("--sqlite-path is required (or provide config.yaml): %w", err)
		}
	}

	if c.SQLitePath == "" {
		return fmt.Errorf("--sqlite-path is required")
	}
	if _, err := os.Stat(c.SQLitePath); os.IsNotExist(err) {
		return fmt.Errorf("SQLite database not found: %s", c.SQLitePath)
	}
	if c.MySQL.Host == "" {
		return fmt.Errorf("--mysql-host is required")
	}

	if c.BatchSize < 1 {
		return fmt.Errorf("batch-size must be at least 1")
	}
	if c.BatchSize > maxBatchSize {
		return fmt.Errorf("batch-size too large (max %d)", maxBatchSize)
	}

	return nil
}

// loadFromConfigFile reads connection details from a nanolume config.yaml.
// Values already set by flags win.
func (c *Config) loadFromConfigFile() error {
	v := viper.New()

	configPath := c.ConfigPath
	if configPath == "" {
		found, err := conf.FindConfigFile()
		if err != nil {
			found = "config.yaml"
		}
		configPath = found
	}

	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if c.SQLitePath == "" {
		c.SQLitePath = v.GetString("output.sqlite.path")
	}

	if c.MySQL.Host == "" && v.GetBool("output.mysql.enabled") {
		c.MySQL.Host = v.GetString("output.mysql.host")
		if port := v.GetString("output.mysql.port"); port != "" {
			c.MySQL.Port = port
		}
		c.MySQL.Username = v.GetString("output.mysql.username")
		c.MySQL.Password = v.GetString("output.mysql.password")
		c.MySQL.Database = v.GetString("output.mysql.database")
	}

	return nil
}

// SanitizedTarget describes the MySQL target without the password.
func (c *Config) SanitizedTarget() string {
	return fmt.Sprintf("%s:****@tcp(%s)/%s", c.MySQL.Username, net.JoinHostPort(c.MySQL.Host, c.MySQL.Port), c.MySQL.Database)
}
