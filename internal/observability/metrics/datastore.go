package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics tracks persistence of runs and presets. It implements
// Recorder so the datastore can depend on the interface only.
type DatastoreMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec
	storedRuns        prometheus.Gauge
	registry          *prometheus.Registry
}

// NewDatastoreMetrics creates and registers datastore metrics.
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register datastore metrics: %w", err)
	}
	return m, nil
}

func (m *DatastoreMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nanolume_datastore_operations_total",
			Help: "Total datastore operations by outcome",
		},
		[]string{"operation", "status"}, // operation: db_insert, db_query, db_delete
	)

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nanolume_datastore_operation_duration_seconds",
			Help:    "Time taken for datastore operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
		},
		[]string{"operation"},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nanolume_datastore_errors_total",
			Help: "Total datastore errors by type",
		},
		[]string{"operation", "error_type"},
	)

	m.storedRuns = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "nanolume_datastore_runs",
		Help: "Number of simulation runs currently stored",
	})
}

// RecordOperation implements Recorder.
func (m *DatastoreMetrics) RecordOperation(operation, status string) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements Recorder.
func (m *DatastoreMetrics) RecordDuration(operation string, seconds float64) {
	m.operationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements Recorder.
func (m *DatastoreMetrics) RecordError(operation, errorType string) {
	m.errorsTotal.WithLabelValues(operation, errorType).Inc()
}

// SetStoredRuns updates the stored runs gauge.
func (m *DatastoreMetrics) SetStoredRuns(n int64) {
	m.storedRuns.Set(float64(n))
}

// Describe implements prometheus.Collector.
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.operationsTotal.Describe(ch)
	m.operationDuration.Describe(ch)
	m.errorsTotal.Describe(ch)
	ch <- m.storedRuns.Desc()
}

// Collect implements prometheus.Collector.
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	m.operationsTotal.Collect(ch)
	m.operationDuration.Collect(ch)
	m.errorsTotal.Collect(ch)
	ch <- m.storedRuns
}
