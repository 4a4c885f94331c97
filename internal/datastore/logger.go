// Package datastore persists simulation runs and named input presets with
// GORM, on SQLite or MySQL.
package datastore

import (
	"github.com/qdlab/nanolume/internal/logger"
	"github.com/qdlab/nanolume/internal/observability/metrics"
)

// Metrics is the Prometheus recorder the server passes to WithMetrics.
type Metrics = metrics.DatastoreMetrics

// GetLogger returns the datastore module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("datastore")
}
