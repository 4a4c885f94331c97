//go:build integration

package datastore

import (
	"context"
	"net"
	"testing"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/qdlab/nanolume/internal/conf"
	"github.com/qdlab/nanolume/internal/errors"
	"github.com/qdlab/nanolume/internal/simulation"
)

// startMySQL runs a throwaway MySQL server and returns settings pointing at it.
func startMySQL(t *testing.T) *conf.Settings {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	ctr, err := tcmysql.Run(ctx, "mysql:8.0.36",
		tcmysql.WithDatabase("nanolume"),
		tcmysql.WithUsername("nanolume"),
		tcmysql.WithPassword("secret"),
	)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})
	require.NoError(t, err)

	connStr, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)
	cfg, err := mysqldriver.ParseDSN(connStr)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(cfg.Addr)
	require.NoError(t, err)

	settings := &conf.Settings{}
	settings.Output.MySQL = conf.MySQLSettings{
		Enabled:  true,
		Username: "nanolume",
		Password: "secret",
		Host:     host,
		Port:     port,
		Database: "nanolume",
	}
	return settings
}

func TestMySQLStoreIntegration(t *testing.T) {
	settings := startMySQL(t)

	store, ok := New(settings).(*MySQLStore)
	require.True(t, ok)
	require.NoError(t, store.Open())
	t.Cleanup(func() { assert.NoError(t, store.Close()) })

	ctx := context.Background()
	require.NoError(t, store.Ping(ctx))

	in := simulation.Inputs{RadiusNM: 6, ReactionTimeMin: 60, FWHMNM: 40, ZrConcentration: 0.05, CoreShell: true}
	want := simulation.RunDefault(in)
	run, err := NewSimulationRun("core-shell", in, want)
	require.NoError(t, err)
	require.NoError(t, store.SaveRun(ctx, run))

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	res, err := got.Result()
	require.NoError(t, err)
	assert.Equal(t, want, res)

	runs, total, err := store.ListRuns(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, runs, 1)

	require.NoError(t, store.SavePreset(ctx, NewPreset("p", in)))
	in.RadiusNM = 5
	require.NoError(t, store.SavePreset(ctx, NewPreset("p", in)))
	p, err := store.GetPreset(ctx, "p")
	require.NoError(t, err)
	assert.InDelta(t, 5.0, p.RadiusNM, 0)

	require.NoError(t, store.DeleteRun(ctx, run.ID))
	assert.True(t, errors.IsNotFound(store.DeleteRun(ctx, run.ID)))
}
