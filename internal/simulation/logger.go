package simulation

import "github.com/qdlab/nanolume/internal/logger"

// GetLogger returns the simulation logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("simulation")
}
