package simulation

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qdlab/nanolume/internal/errors"
	"github.com/qdlab/nanolume/internal/model"
	"github.com/qdlab/nanolume/internal/observability/metrics"
)

func newTestEngine(t *testing.T, cfg Config) (*Engine, *metrics.TestRecorder) {
	t.Helper()
	rec := metrics.NewTestRecorder()
	e, err := NewEngine(model.Default(), cfg, WithRecorder(rec))
	require.NoError(t, err)
	t.Cleanup(e.FlushCache)
	return e, rec
}

func TestNewEngineRejectsInvalidConstants(t *testing.T) {
	t.Parallel()

	c := model.Default()
	c.Spectrum.StepNM = 0
	_, err := NewEngine(c, DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryModel))
}

func TestNewEngineRejectsCoarserGrid(t *testing.T) {
	t.Parallel()

	c := model.Default()
	c.Spectrum.StepNM = 10
	_, err := NewEngine(c, DefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spectrum grid")
}

func TestEngineSimulateMatchesRun(t *testing.T) {
	t.Parallel()

	e, rec := newTestEngine(t, Config{CacheTTL: time.Minute})
	in := Inputs{RadiusNM: 3.5, ReactionTimeMin: 30}

	got, err := e.Simulate(t.Context(), in)
	require.NoError(t, err)
	assert.Equal(t, RunDefault(in), got)
	assert.Equal(t, 1, rec.OperationCount(metrics.OpSimulate, metrics.StatusSuccess))
	assert.Len(t, rec.Durations(metrics.OpSimulate), 1)
}

func TestEngineCacheHitsAndIsolation(t *testing.T) {
	t.Parallel()

	e, rec := newTestEngine(t, Config{CacheTTL: time.Minute})
	in := Inputs{RadiusNM: 4, ReactionTimeMin: 50, ZrConcentration: 0.1}

	first, err := e.Simulate(t.Context(), in)
	require.NoError(t, err)
	original := first.Spectrum[20].Intensity
	first.Spectrum[20].Intensity = 42

	second, err := e.Simulate(t.Context(), in)
	require.NoError(t, err)

	assert.InDelta(t, original, second.Spectrum[20].Intensity, 0, "cached result must not be shared with callers")
	assert.Equal(t, 1, rec.OperationCount(metrics.OpCacheGet, metrics.StatusMiss))
	assert.Equal(t, 1, rec.OperationCount(metrics.OpCacheGet, metrics.StatusHit))
	assert.Equal(t, 1, e.CachedResults())

	// Zero FWHM and the default FWHM hit the same cache entry.
	_, err = e.Simulate(t.Context(), Inputs{RadiusNM: 4, ReactionTimeMin: 50, FWHMNM: 80, ZrConcentration: 0.1})
	require.NoError(t, err)
	assert.Equal(t, 2, rec.OperationCount(metrics.OpCacheGet, metrics.StatusHit))

	e.FlushCache()
	assert.Equal(t, 0, e.CachedResults())
}

func TestEngineWithoutCache(t *testing.T) {
	t.Parallel()

	e, rec := newTestEngine(t, Config{})
	in := Inputs{RadiusNM: 3, ReactionTimeMin: 30}
	for range 3 {
		_, err := e.Simulate(t.Context(), in)
		require.NoError(t, err)
	}

	assert.Equal(t, 0, e.CachedResults())
	assert.Equal(t, 0, rec.OperationCount(metrics.OpCacheGet, metrics.StatusMiss))
	assert.Equal(t, 3, rec.OperationCount(metrics.OpSimulate, metrics.StatusSuccess))
}

func TestEngineSimulateValidation(t *testing.T) {
	t.Parallel()

	e, rec := newTestEngine(t, DefaultConfig())
	_, err := e.Simulate(t.Context(), Inputs{RadiusNM: 10, ReactionTimeMin: 30})

	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Equal(t, 1, rec.ErrorCount(metrics.OpSimulate, "validation"))
	assert.Equal(t, 1, rec.OperationCount(metrics.OpSimulate, metrics.StatusError))
}

func TestEngineSimulateCancelled(t *testing.T) {
	t.Parallel()

	e, rec := newTestEngine(t, DefaultConfig())
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := e.Simulate(ctx, Inputs{RadiusNM: 3, ReactionTimeMin: 30})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, errors.IsCategory(err, errors.CategoryCancellation))
	assert.Equal(t, 1, rec.OperationCount(metrics.OpSimulate, metrics.StatusCancelled))
}

func TestEngineSweepMatchesSerialRuns(t *testing.T) {
	t.Parallel()

	e, rec := newTestEngine(t, Config{CacheTTL: time.Minute, SweepWorkers: 2})
	inputs, err := SweepRequest{
		Radius:          Range{From: 2, To: 6, Step: 0.5},
		ReactionTime:    Range{From: 30, To: 90, Step: 15},
		ZrConcentration: 0.1,
	}.Expand()
	require.NoError(t, err)
	require.Len(t, inputs, 45)

	results, err := e.Sweep(t.Context(), inputs, 4)
	require.NoError(t, err)
	require.Len(t, results, len(inputs))

	for i, in := range inputs {
		assert.Equal(t, RunDefault(in), results[i], "point %d (%s)", i, in.Key())
	}
	assert.Equal(t, 1, rec.OperationCount(metrics.OpSweep, metrics.StatusSuccess))
	assert.Equal(t, len(inputs), rec.OperationCount(metrics.OpSimulate, metrics.StatusSuccess))

	// A second sweep is served from the cache and yields identical results.
	again, err := e.Sweep(t.Context(), inputs, 0)
	require.NoError(t, err)
	assert.Equal(t, results, again)
	assert.Equal(t, len(inputs), rec.OperationCount(metrics.OpCacheGet, metrics.StatusHit))
}

func TestEngineSweepRejectsInvalidPoint(t *testing.T) {
	t.Parallel()

	e, rec := newTestEngine(t, DefaultConfig())
	inputs := []Inputs{
		{RadiusNM: 3, ReactionTimeMin: 30},
		{RadiusNM: 3, ReactionTimeMin: 300},
	}

	_, err := e.Sweep(t.Context(), inputs, 2)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	var ee *errors.EnhancedError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 1, ee.GetContext()["index"])
	assert.Equal(t, 0, rec.OperationCount(metrics.OpSimulate, metrics.StatusSuccess))
}

func TestEngineSweepCancelled(t *testing.T) {
	t.Parallel()

	e, rec := newTestEngine(t, DefaultConfig())
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	inputs, err := SweepRequest{Radius: Range{From: 2, To: 6, Step: 1}, ReactionTime: Fixed(30)}.Expand()
	require.NoError(t, err)

	_, err = e.Sweep(ctx, inputs, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, rec.OperationCount(metrics.OpSweep, metrics.StatusCancelled))
}

func TestEngineSweepObservesPoints(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := metrics.NewSimulationMetrics(registry)
	require.NoError(t, err)

	e, err := NewEngine(model.Default(), Config{}, WithRecorder(m))
	require.NoError(t, err)

	inputs, err := SweepRequest{Radius: Range{From: 2, To: 3, Step: 0.5}, ReactionTime: Fixed(60)}.Expand()
	require.NoError(t, err)
	_, err = e.Sweep(t.Context(), inputs, 0)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.OperationCounter(metrics.OpSweep, metrics.StatusSuccess)), 0)
	assert.InDelta(t, 3.0, testutil.ToFloat64(m.OperationCounter(metrics.OpSimulate, metrics.StatusSuccess)), 0)
	count, err := testutil.GatherAndCount(registry, "nanolume_sweep_points")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEngineConcurrentSimulateSameKey(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, Config{CacheTTL: time.Minute})
	in := Inputs{RadiusNM: 5, ReactionTimeMin: 70, FWHMNM: 50, ZrConcentration: 0.2, CoreShell: true}
	want := RunDefault(in)

	inputs := make([]Inputs, 64)
	for i := range inputs {
		inputs[i] = in
	}
	results, err := e.Sweep(t.Context(), inputs, 16)
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, want, r)
	}
	assert.Equal(t, 1, e.CachedResults())
}
