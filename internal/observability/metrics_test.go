package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qdlab/nanolume/internal/observability/metrics"
)

// NewMetrics uses a private registry, so concurrent construction must not
// collide on registration.
func TestNewMetricsConcurrency(t *testing.T) {
	t.Parallel()

	const numGoroutines = 20

	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines)
	for range numGoroutines {
		wg.Go(func() {
			m, err := NewMetrics()
			if err != nil {
				errs <- err
				return
			}
			if m.Simulation == nil || m.HTTP == nil || m.Datastore == nil || m.MQTT == nil {
				errs <- assert.AnError
			}
		})
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("NewMetrics failed: %v", err)
	}
}

func TestHandlerExposesDomainMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	m.Simulation.RecordOperation(metrics.OpSimulate, metrics.StatusSuccess)
	m.HTTP.RecordRequest(http.MethodGet, "/api/v2/health", http.StatusOK, 0.001)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `nanolume_simulation_operations_total{operation="simulate",status="success"} 1`)
	assert.Contains(t, string(body), "nanolume_http_requests_total")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestCounterTotals(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	m.Simulation.RecordOperation(metrics.OpSimulate, metrics.StatusSuccess)
	m.Simulation.RecordOperation(metrics.OpCacheGet, metrics.StatusHit)
	m.Simulation.RecordOperation(metrics.OpCacheGet, metrics.StatusMiss)
	m.MQTT.IncrementErrors()

	totals, err := m.CounterTotals()
	require.NoError(t, err)
	assert.InDelta(t, 3.0, totals["nanolume_simulation_operations_total"], 0)
	assert.InDelta(t, 1.0, totals["nanolume_mqtt_errors_total"], 0)
	_, hasGo := totals["go_gc_duration_seconds"]
	assert.False(t, hasGo)

	names, err := m.FamilyNames()
	require.NoError(t, err)
	assert.IsIncreasing(t, names)
	assert.Contains(t, names, "nanolume_mqtt_connection_status")
}
