package datastore

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qdlab/nanolume/internal/conf"
	"github.com/qdlab/nanolume/internal/errors"
	"github.com/qdlab/nanolume/internal/observability/metrics"
	"github.com/qdlab/nanolume/internal/simulation"
)

// gaugeRecorder adds the stored runs gauge to the test recorder.
type gaugeRecorder struct {
	*metrics.TestRecorder
	runs atomic.Int64
}

func (g *gaugeRecorder) SetStoredRuns(n int64) { g.runs.Store(n) }

func newTestStore(t *testing.T, r metrics.Recorder) *SQLiteStore {
	t.Helper()

	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "runs.db")

	store, ok := New(settings, WithMetrics(r)).(*SQLiteStore)
	require.True(t, ok)
	require.NoError(t, store.Open())
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

func testRun(t *testing.T, name string, in simulation.Inputs) *SimulationRun {
	t.Helper()
	run, err := NewSimulationRun(name, in, simulation.RunDefault(in))
	require.NoError(t, err)
	return run
}

func TestRunRoundTrip(t *testing.T) {
	t.Parallel()
	store := newTestStore(t, nil)
	ctx := context.Background()

	in := simulation.Inputs{RadiusNM: 3.5, ReactionTimeMin: 45, FWHMNM: 80, ZrConcentration: 0.1}
	want := simulation.RunDefault(in)
	run, err := NewSimulationRun("light doping", in, want)
	require.NoError(t, err)
	require.NoError(t, store.SaveRun(ctx, run))

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "light doping", got.Name)
	assert.Equal(t, in, got.Inputs())
	assert.False(t, got.CreatedAt.IsZero())

	res, err := got.Result()
	require.NoError(t, err)
	assert.Equal(t, want, res)
}

func TestGetRunNotFound(t *testing.T) {
	t.Parallel()
	store := newTestStore(t, nil)

	_, err := store.GetRun(context.Background(), "00000000-0000-0000-0000-000000000000")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestSaveRunRequiresID(t *testing.T) {
	t.Parallel()
	store := newTestStore(t, nil)

	err := store.SaveRun(context.Background(), &SimulationRun{Name: "no id"})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestListRunsNewestFirst(t *testing.T) {
	t.Parallel()
	store := newTestStore(t, nil)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range 3 {
		run := testRun(t, fmt.Sprintf("run-%d", i), simulation.Inputs{RadiusNM: 2 + float64(i), ReactionTimeMin: 30})
		run.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.SaveRun(ctx, run))
	}

	runs, total, err := store.ListRuns(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].Name)
	assert.Equal(t, "run-1", runs[1].Name)

	runs, _, err = store.ListRuns(ctx, 10, 2)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-0", runs[0].Name)

	runs, _, err = store.ListRuns(ctx, 0, -5)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestDeleteRun(t *testing.T) {
	t.Parallel()
	rec := &gaugeRecorder{TestRecorder: metrics.NewTestRecorder()}
	store := newTestStore(t, rec)
	ctx := context.Background()

	a := testRun(t, "a", simulation.Inputs{RadiusNM: 3, ReactionTimeMin: 30})
	b := testRun(t, "b", simulation.Inputs{RadiusNM: 4, ReactionTimeMin: 30})
	require.NoError(t, store.SaveRun(ctx, a))
	require.NoError(t, store.SaveRun(ctx, b))
	assert.Equal(t, int64(2), rec.runs.Load())

	require.NoError(t, store.DeleteRun(ctx, a.ID))
	assert.Equal(t, int64(1), rec.runs.Load())

	_, err := store.GetRun(ctx, a.ID)
	assert.True(t, errors.IsNotFound(err))

	err = store.DeleteRun(ctx, a.ID)
	assert.True(t, errors.IsNotFound(err))

	assert.Equal(t, 2, rec.OperationCount(metrics.OpDbInsert, metrics.StatusSuccess))
	assert.Equal(t, 1, rec.OperationCount(metrics.OpDbDelete, metrics.StatusSuccess))
	assert.Equal(t, 1, rec.OperationCount(metrics.OpDbDelete, metrics.StatusMiss))
	assert.Equal(t, 1, rec.OperationCount(metrics.OpDbQuery, metrics.StatusMiss))
	assert.Len(t, rec.Durations(metrics.OpDbInsert), 2)
}

func TestPresetUpsert(t *testing.T) {
	t.Parallel()
	store := newTestStore(t, nil)
	ctx := context.Background()

	require.NoError(t, store.SavePreset(ctx, NewPreset("warm", simulation.Inputs{RadiusNM: 5, ReactionTimeMin: 30, FWHMNM: 80})))
	require.NoError(t, store.SavePreset(ctx, NewPreset("cool", simulation.Inputs{RadiusNM: 2, ReactionTimeMin: 90, FWHMNM: 60, ZrConcentration: 0.3, CoreShell: true})))

	replaced := simulation.Inputs{RadiusNM: 5.5, ReactionTimeMin: 40, FWHMNM: 70, ZrConcentration: 0.05}
	require.NoError(t, store.SavePreset(ctx, NewPreset("warm", replaced)))

	got, err := store.GetPreset(ctx, "warm")
	require.NoError(t, err)
	assert.Equal(t, replaced, got.Inputs())

	presets, err := store.ListPresets(ctx)
	require.NoError(t, err)
	require.Len(t, presets, 2)
	assert.Equal(t, "cool", presets[0].Name)
	assert.Equal(t, "warm", presets[1].Name)
	assert.True(t, presets[0].CoreShell)

	require.NoError(t, store.DeletePreset(ctx, "cool"))
	_, err = store.GetPreset(ctx, "cool")
	assert.True(t, errors.IsNotFound(err))
	assert.True(t, errors.IsNotFound(store.DeletePreset(ctx, "cool")))
}

func TestSavePresetRequiresName(t *testing.T) {
	t.Parallel()
	store := newTestStore(t, nil)

	err := store.SavePreset(context.Background(), NewPreset("", simulation.Inputs{RadiusNM: 3, ReactionTimeMin: 30}))
	assert.True(t, errors.IsValidation(err))
}

func TestPing(t *testing.T) {
	t.Parallel()
	store := newTestStore(t, nil)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestUnopenedStore(t *testing.T) {
	t.Parallel()

	var ds DataStore
	_, err := ds.GetRun(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDatabase))
	assert.Error(t, ds.Ping(context.Background()))
	assert.Error(t, closeDB(nil, "sqlite"))
}

func TestNewSelectsBackend(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	assert.Nil(t, New(settings))

	settings.Output.MySQL.Enabled = true
	_, ok := New(settings).(*MySQLStore)
	assert.True(t, ok)

	settings.Output.SQLite.Enabled = true
	_, ok = New(settings).(*SQLiteStore)
	assert.True(t, ok)
}

func TestMySQLDSN(t *testing.T) {
	t.Parallel()

	dsn := mysqlDSN(conf.MySQLSettings{
		Username: "lab",
		Password: "p@ss:word",
		Host:     "db.internal",
		Port:     "3307",
		Database: "nanolume",
	})

	cfg, err := mysqldriver.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "lab", cfg.User)
	assert.Equal(t, "p@ss:word", cfg.Passwd)
	assert.Equal(t, "tcp", cfg.Net)
	assert.Equal(t, "db.internal:3307", cfg.Addr)
	assert.Equal(t, "nanolume", cfg.DBName)
	assert.True(t, cfg.ParseTime)
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "cancelled", classifyError(dbError(context.Canceled, "x")))
	assert.Equal(t, "timeout", classifyError(context.DeadlineExceeded))
	assert.Equal(t, "duplicate", classifyError(errors.NewStd("UNIQUE constraint failed: simulation_runs.id")))
	assert.Equal(t, "locked", classifyError(errors.NewStd("database is locked")))
	assert.Equal(t, "database", classifyError(errors.NewStd("syntax error")))
}
