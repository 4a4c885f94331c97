package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qdlab/nanolume/internal/conf"
	"github.com/qdlab/nanolume/internal/datastore"
	"github.com/qdlab/nanolume/internal/lattice"
	"github.com/qdlab/nanolume/internal/model"
	"github.com/qdlab/nanolume/internal/simulation"
)

// fakePublisher records published runs.
type fakePublisher struct {
	mu   sync.Mutex
	runs []string
	done chan struct{}
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{done: make(chan struct{}, 8)}
}

func (p *fakePublisher) PublishRun(_ context.Context, run *datastore.SimulationRun) error {
	p.mu.Lock()
	p.runs = append(p.runs, run.ID)
	p.mu.Unlock()
	p.done <- struct{}{}
	return nil
}

func (p *fakePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.runs...)
}

func testSettings() *conf.Settings {
	s := &conf.Settings{Version: "1.2.3", BuildDate: "2026-05-01"}
	s.Model = model.Default()
	s.Lattice = lattice.DefaultConstants()
	s.Simulation.SweepWorkers = 2
	s.WebServer.AllowOrigins = []string{"*"}
	s.WebServer.BodyLimit = "1M"
	return s
}

// setupTestEnvironment builds a controller. withStore opens a SQLite store
// in a temp dir.
func setupTestEnvironment(t *testing.T, withStore bool, opts ...Option) (*echo.Echo, *Controller) {
	t.Helper()

	settings := testSettings()
	engine, err := simulation.NewEngine(settings.Model, simulation.Config{CacheTTL: time.Minute, SweepWorkers: 2})
	require.NoError(t, err)

	if withStore {
		settings.Output.SQLite.Enabled = true
		settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "api.db")
		ds := datastore.New(settings)
		require.NoError(t, ds.Open())
		t.Cleanup(func() { assert.NoError(t, ds.Close()) })
		opts = append([]Option{WithDataStore(ds)}, opts...)
	}

	return setupWithSettings(t, engine, settings, opts...)
}

func setupWithSettings(t *testing.T, engine *simulation.Engine, settings *conf.Settings, opts ...Option) (*echo.Echo, *Controller) {
	t.Helper()

	e := echo.New()
	c, err := New(e, engine, settings, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Shutdown)
	return e, c
}

func doRequest(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader = http.NoBody
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func assertErrorResponse(t *testing.T, rec *httptest.ResponseRecorder, code int) ErrorResponse {
	t.Helper()
	require.Equal(t, code, rec.Code, rec.Body.String())
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, code, resp.Code)
	assert.NotEmpty(t, resp.Message)
	_, err := uuid.Parse(resp.CorrelationID)
	assert.NoError(t, err, "correlation ID should be a UUID")
	return resp
}

func TestNewRequiresEngine(t *testing.T) {
	t.Parallel()

	_, err := New(echo.New(), nil, testSettings())
	require.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	e, _ := setupTestEnvironment(t, true)
	rec := doRequest(e, http.MethodGet, "/api/v2/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[map[string]any](t, rec)
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "1.2.3", resp["version"])
	assert.Equal(t, "2026-05-01", resp["build_date"])
	assert.Equal(t, "connected", resp["database_status"])
	assert.Contains(t, resp, "uptime_seconds")

	system, ok := resp["system"].(map[string]any)
	require.True(t, ok, "system should be an object")
	assert.Contains(t, system, "goroutines")
	if cpu, exists := system["cpu_usage"]; exists {
		v, ok := cpu.(float64)
		assert.True(t, ok)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
}

func TestHealthCheckWithoutStore(t *testing.T) {
	t.Parallel()

	e, _ := setupTestEnvironment(t, false)
	rec := doRequest(e, http.MethodGet, "/api/v2/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[map[string]any](t, rec)
	assert.Equal(t, "disabled", resp["database_status"])
}

func TestGetModel(t *testing.T) {
	t.Parallel()

	e, _ := setupTestEnvironment(t, false)
	rec := doRequest(e, http.MethodGet, "/api/v2/model", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[ModelResponse](t, rec)
	assert.Equal(t, model.Default(), resp.Constants)
	assert.Equal(t, lattice.DefaultConstants(), resp.Lattice)
	assert.Equal(t, [2]float64{2, 6}, resp.Limits.RadiusNM)
	assert.Equal(t, simulation.MaxSweepPoints, resp.Limits.MaxSweepPoints)
}

func TestHandleErrorFormat(t *testing.T) {
	t.Parallel()

	_, c := setupTestEnvironment(t, false)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/x", http.NoBody)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	require.NoError(t, c.HandleError(ctx, io.ErrUnexpectedEOF, "read failed", http.StatusBadGateway))
	resp := assertErrorResponse(t, rec, http.StatusBadGateway)
	assert.Equal(t, io.ErrUnexpectedEOF.Error(), resp.Error)
	assert.Equal(t, "read failed", resp.Message)
	assert.Equal(t, resp.CorrelationID, ctx.Get("correlation_id"))
}

func TestNewErrorResponseWithoutError(t *testing.T) {
	t.Parallel()

	resp := NewErrorResponse(nil, "just a message", http.StatusTeapot)
	assert.Equal(t, "just a message", resp.Error)
	assert.Equal(t, http.StatusTeapot, resp.Code)
	assert.NotEqual(t, resp.CorrelationID, NewErrorResponse(nil, "x", 1).CorrelationID)
}

func TestCORSHeaders(t *testing.T) {
	t.Parallel()

	e, _ := setupTestEnvironment(t, false)
	req := httptest.NewRequest(http.MethodGet, "/api/v2/model", http.NoBody)
	req.Header.Set(echo.HeaderOrigin, "https://lab.example")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestBodyLimit(t *testing.T) {
	t.Parallel()

	e, _ := setupTestEnvironment(t, false)
	big := `{"radius":3.5,"time":30,"pad":"` + strings.Repeat("x", 2<<20) + `"}`
	rec := doRequest(e, http.MethodPost, "/api/v2/simulate", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
