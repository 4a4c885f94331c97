// conf/validate.go

package conf

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/labstack/gommon/bytes"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := settings.Model.Validate(); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateLatticeSettings(settings); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateSimulationSettings(&settings.Simulation); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateWebServerSettings(&settings.WebServer); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateOutputSettings(settings); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateMQTTSettings(&settings.MQTT); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if settings.Telemetry.Enabled && settings.Telemetry.DSN == "" {
		ve.Errors = append(ve.Errors, "telemetry DSN is required when telemetry is enabled")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateLatticeSettings(settings *Settings) error {
	c := settings.Lattice
	if c.A <= 0 || c.C <= 0 {
		return fmt.Errorf("lattice constants must be positive, got a=%g c=%g", c.A, c.C)
	}
	if c.AnionX <= 0 || c.AnionX >= 0.5 {
		return fmt.Errorf("lattice anion_x must be within (0, 0.5), got %g", c.AnionX)
	}
	if c.BondCutoffA <= 0 {
		return fmt.Errorf("lattice bond_cutoff must be positive, got %g", c.BondCutoffA)
	}
	for _, n := range c.ClusterCells {
		if n < 1 {
			return fmt.Errorf("lattice cluster_cells must all be at least 1, got %v", c.ClusterCells)
		}
	}
	return nil
}

func validateSimulationSettings(settings *SimulationSettings) error {
	if settings.CacheTTL < 0 {
		return fmt.Errorf("simulation cache TTL must not be negative, got %s", settings.CacheTTL)
	}
	if settings.SweepWorkers < 0 {
		return fmt.Errorf("simulation sweep workers must not be negative, got %d", settings.SweepWorkers)
	}
	return nil
}

// validateWebServerSettings validates the WebServer-specific settings
func validateWebServerSettings(settings *WebServerSettings) error {
	if !settings.Enabled {
		return nil
	}
	if settings.Port == "" {
		return errors.New("WebServer port is required when enabled")
	}
	if port, err := strconv.Atoi(settings.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("WebServer port must be between 1 and 65535, got %q", settings.Port)
	}
	if settings.BodyLimit != "" {
		if _, err := bytes.Parse(settings.BodyLimit); err != nil {
			return fmt.Errorf("WebServer body limit %q is invalid: %w", settings.BodyLimit, err)
		}
	}
	if rl := settings.RateLimit; rl.Enabled && (rl.Rate <= 0 || rl.Burst < 1) {
		return fmt.Errorf("rate limit needs a positive rate and burst, got rate=%g burst=%d", rl.Rate, rl.Burst)
	}
	return nil
}

func validateOutputSettings(settings *Settings) error {
	out := settings.Output
	if out.SQLite.Enabled && out.MySQL.Enabled {
		return errors.New("only one of output.sqlite and output.mysql can be enabled")
	}
	if out.SQLite.Enabled && out.SQLite.Path == "" {
		return errors.New("SQLite path is required when SQLite output is enabled")
	}
	if out.MySQL.Enabled && (out.MySQL.Host == "" || out.MySQL.Database == "") {
		return errors.New("MySQL host and database are required when MySQL output is enabled")
	}
	return nil
}

func validateMQTTSettings(settings *MQTTSettings) error {
	if !settings.Enabled {
		return nil
	}
	if settings.Broker == "" {
		return errors.New("MQTT broker is required when MQTT is enabled")
	}
	if _, err := url.Parse(settings.Broker); err != nil {
		return fmt.Errorf("MQTT broker URL is invalid: %w", err)
	}
	if settings.Topic == "" {
		return errors.New("MQTT topic is required when MQTT is enabled")
	}
	if settings.QoS < 0 || settings.QoS > 2 {
		return fmt.Errorf("MQTT QoS must be 0, 1 or 2, got %d", settings.QoS)
	}
	return nil
}
