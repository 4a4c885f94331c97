// Package observability provides Prometheus metrics for the nanolume service.
// Sentry-related error telemetry is handled in the telemetry package.
package observability

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"

	"github.com/qdlab/nanolume/internal/observability/metrics"
)

const metricPrefix = "nanolume_"

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry   *prometheus.Registry
	Simulation *metrics.SimulationMetrics
	HTTP       *metrics.HTTPMetrics
	Datastore  *metrics.DatastoreMetrics
	MQTT       *metrics.MQTTMetrics
}

// NewMetrics creates a new instance of Metrics with a private registry.
// Process and Go runtime collectors are registered alongside the domain ones.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register Go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("failed to register process collector: %w", err)
	}

	simulationMetrics, err := metrics.NewSimulationMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create simulation metrics: %w", err)
	}

	httpMetrics, err := metrics.NewHTTPMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	datastoreMetrics, err := metrics.NewDatastoreMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Datastore metrics: %w", err)
	}

	mqttMetrics, err := metrics.NewMQTTMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create MQTT metrics: %w", err)
	}

	return &Metrics{
		registry:   registry,
		Simulation: simulationMetrics,
		HTTP:       httpMetrics,
		Datastore:  datastoreMetrics,
		MQTT:       mqttMetrics,
	}, nil
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler serving the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, "metrics handler: ", log.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// CounterTotals gathers the registry and sums every counter family whose name
// starts with the nanolume_ prefix. Used by the health endpoint.
func (m *Metrics) CounterTotals() (map[string]float64, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("failed to gather metrics: %w", err)
	}

	totals := make(map[string]float64)
	for _, mf := range families {
		if mf.GetType() != dto.MetricType_COUNTER || !hasPrefix(mf.GetName()) {
			continue
		}
		totals[mf.GetName()] = sumCounters(mf)
	}
	return totals, nil
}

// FamilyNames lists the registered nanolume metric family names, sorted.
func (m *Metrics) FamilyNames() ([]string, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("failed to gather metrics: %w", err)
	}
	names := make([]string, 0, len(families))
	for _, mf := range families {
		if hasPrefix(mf.GetName()) {
			names = append(names, mf.GetName())
		}
	}
	sort.Strings(names)
	return names, nil
}

func sumCounters(mf *dto.MetricFamily) float64 {
	var sum float64
	for _, metric := range mf.GetMetric() {
		sum += metric.GetCounter().GetValue()
	}
	return sum
}

func hasPrefix(name string) bool {
	return strings.HasPrefix(name, metricPrefix)
}
