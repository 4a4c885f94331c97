package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// SimulationMetrics tracks pipeline runs, cache efficiency and sweep sizes.
// It implements Recorder.
type SimulationMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec
	sweepPoints       prometheus.Histogram
	latticeAtoms      prometheus.Histogram
	registry          *prometheus.Registry
}

// NewSimulationMetrics creates and registers the simulation collectors.
func NewSimulationMetrics(registry *prometheus.Registry) (*SimulationMetrics, error) {
	m := &SimulationMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register simulation metrics: %w", err)
	}
	return m, nil
}

func (m *SimulationMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nanolume_simulation_operations_total",
			Help: "Total simulation operations by outcome",
		},
		[]string{"operation", "status"}, // operation: simulate, sweep, cache_get; status: success, error, hit, miss
	)

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nanolume_simulation_operation_duration_seconds",
			Help:    "Time spent in simulation operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount15),
		},
		[]string{"operation"},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nanolume_simulation_errors_total",
			Help: "Total simulation errors by type",
		},
		[]string{"operation", "error_type"},
	)

	m.sweepPoints = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "nanolume_sweep_points",
		Help:    "Number of parameter points per sweep",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})

	m.latticeAtoms = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "nanolume_lattice_atoms",
		Help:    "Number of atoms per generated structure",
		Buckets: prometheus.ExponentialBuckets(16, 2, 8),
	})
}

// RecordOperation implements Recorder.
func (m *SimulationMetrics) RecordOperation(operation, status string) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements Recorder.
func (m *SimulationMetrics) RecordDuration(operation string, seconds float64) {
	m.operationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements Recorder.
func (m *SimulationMetrics) RecordError(operation, errorType string) {
	m.errorsTotal.WithLabelValues(operation, errorType).Inc()
}

// ObserveSweepPoints records the size of a sweep.
func (m *SimulationMetrics) ObserveSweepPoints(points int) {
	m.sweepPoints.Observe(float64(points))
}

// ObserveLatticeAtoms records the size of a generated structure.
func (m *SimulationMetrics) ObserveLatticeAtoms(atoms int) {
	m.latticeAtoms.Observe(float64(atoms))
}

// OperationCounter exposes the labelled counter for tests and health reporting.
func (m *SimulationMetrics) OperationCounter(operation, status string) prometheus.Counter {
	return m.operationsTotal.WithLabelValues(operation, status)
}

// Describe implements prometheus.Collector.
func (m *SimulationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.operationsTotal.Describe(ch)
	m.operationDuration.Describe(ch)
	m.errorsTotal.Describe(ch)
	ch <- m.sweepPoints.Desc()
	ch <- m.latticeAtoms.Desc()
}

// Collect implements prometheus.Collector.
func (m *SimulationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.operationsTotal.Collect(ch)
	m.operationDuration.Collect(ch)
	m.errorsTotal.Collect(ch)
	ch <- m.sweepPoints
	ch <- m.latticeAtoms
}
