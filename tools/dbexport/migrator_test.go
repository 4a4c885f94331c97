package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qdlab/nanolume/internal/conf"
	"github.com/qdlab/nanolume/internal/datastore"
	"github.com/qdlab/nanolume/internal/simulation"
)

func openSQLite(t *testing.T, name string) *datastore.SQLiteStore {
	t.Helper()

	settings := &conf.Settings{}
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), name)
	store := &datastore.SQLiteStore{Settings: settings}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seed(t *testing.T, store datastore.Interface, runs int) []string {
	t.Helper()
	ctx := context.Background()

	ids := make([]string, 0, runs)
	for i := range runs {
		in := simulation.Inputs{RadiusNM: 2.5 + float64(i)*0.5, ReactionTimeMin: 30, FWHMNM: 80}
		run, err := datastore.NewSimulationRun(fmt.Sprintf("run-%d", i), in, simulation.RunDefault(in))
		require.NoError(t, err)
		require.NoError(t, store.SaveRun(ctx, run))
		ids = append(ids, run.ID)
	}
	require.NoError(t, store.SavePreset(ctx, datastore.NewPreset("amber", simulation.Inputs{RadiusNM: 5, ReactionTimeMin: 30})))
	require.NoError(t, store.SavePreset(ctx, datastore.NewPreset("green", simulation.Inputs{RadiusNM: 2.5, ReactionTimeMin: 45})))
	return ids
}

func TestMigratorCopiesAllRows(t *testing.T) {
	t.Parallel()

	source := openSQLite(t, "source.db")
	target := openSQLite(t, "target.db")
	ids := seed(t, source, 5)

	var out bytes.Buffer
	stats, err := NewMigrator(source.DB, target.DB, Config{BatchSize: 2}, &out).Run()
	require.NoError(t, err)
	require.Len(t, stats.Tables, 2)
	assert.Equal(t, int64(5), stats.Tables[0].Migrated)
	assert.Equal(t, 3, stats.Tables[0].Batches)
	assert.Equal(t, int64(2), stats.Tables[1].Migrated)

	require.NoError(t, NewVerifier(source.DB, target.DB, &out).Verify())

	for _, id := range ids {
		src, err := source.GetRun(context.Background(), id)
		require.NoError(t, err)
		dst, err := target.GetRun(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, src.Name, dst.Name)
		assert.Equal(t, src.SpectrumJSON, dst.SpectrumJSON)
	}

	stats.Print(&out)
	assert.Contains(t, out.String(), "simulation_runs")
}

func TestMigratorIsRepeatable(t *testing.T) {
	t.Parallel()

	source := openSQLite(t, "source.db")
	target := openSQLite(t, "target.db")
	seed(t, source, 3)

	var out bytes.Buffer
	_, err := NewMigrator(source.DB, target.DB, Config{BatchSize: 10}, &out).Run()
	require.NoError(t, err)
	_, err = NewMigrator(source.DB, target.DB, Config{BatchSize: 10}, &out).Run()
	require.NoError(t, err)

	_, total, err := target.ListRuns(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total, "upserts do not duplicate rows")
}

func TestMigratorClean(t *testing.T) {
	t.Parallel()

	source := openSQLite(t, "source.db")
	target := openSQLite(t, "target.db")
	seed(t, source, 1)
	seed(t, target, 2)

	var out bytes.Buffer
	_, err := NewMigrator(source.DB, target.DB, Config{BatchSize: 10, Clean: true}, &out).Run()
	require.NoError(t, err)

	_, total, err := target.ListRuns(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestVerifierDetectsMissingRows(t *testing.T) {
	t.Parallel()

	source := openSQLite(t, "source.db")
	target := openSQLite(t, "target.db")
	seed(t, source, 2)

	err := NewVerifier(source.DB, target.DB, &bytes.Buffer{}).Verify()
	require.Error(t, err)
}

func TestConfigLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "runs.db")
	require.NoError(t, os.WriteFile(dbPath, nil, 0o600))

	configPath := filepath.Join(dir, "config.yaml")
	yaml := fmt.Sprintf("output:\n  sqlite:\n    path: %s\n  mysql:\n    enabled: true\n    host: db.lab\n    port: \"3307\"\n    username: lab\n    password: secret\n    database: optics\n", dbPath)
	require.NoError(t, os.WriteFile(configPath, []byte(yaml), 0o600))

	cfg := Config{ConfigPath: configPath, BatchSize: 100}
	cfg.MySQL.Port = "3306"
	require.NoError(t, cfg.Load())
	assert.Equal(t, dbPath, cfg.SQLitePath)
	assert.Equal(t, "db.lab", cfg.MySQL.Host)
	assert.Equal(t, "3307", cfg.MySQL.Port)
	assert.Equal(t, "lab:****@tcp(db.lab:3307)/optics", cfg.SanitizedTarget())
	assert.NotContains(t, cfg.SanitizedTarget(), "secret")

	bad := cfg
	bad.BatchSize = 0
	require.Error(t, bad.Load())

	missing := Config{SQLitePath: filepath.Join(dir, "nope.db"), BatchSize: 1}
	missing.MySQL.Host = "db.lab"
	require.Error(t, missing.Load())
}
