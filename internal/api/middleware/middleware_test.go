package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qdlab/nanolume/internal/logger"
	"github.com/qdlab/nanolume/internal/observability/metrics"
)

func newHTTPMetrics(t *testing.T) *metrics.HTTPMetrics {
	t.Helper()
	m, err := metrics.NewHTTPMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func serve(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, http.NoBody)
	req.RemoteAddr = "192.0.2.10:4321"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	t.Parallel()

	m := newHTTPMetrics(t)
	e := echo.New()
	e.Use(NewMetrics(m))
	e.GET("/runs/:id", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Param("id"))
	})

	for _, id := range []string{"a", "b", "c"} {
		assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/runs/"+id).Code)
	}

	assert.InDelta(t, 3, testutil.ToFloat64(m.RequestCounter(http.MethodGet, "/runs/:id", http.StatusOK)), 0)
}

func TestMetricsCountsErrors(t *testing.T) {
	t.Parallel()

	m := newHTTPMetrics(t)
	e := echo.New()
	e.Use(NewMetrics(m))
	e.GET("/bad", func(c echo.Context) error {
		c.Set(ErrorTypeKey, "validation")
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad"})
	})
	e.GET("/boom", func(echo.Context) error {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "down")
	})

	assert.Equal(t, http.StatusBadRequest, serve(e, http.MethodGet, "/bad").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(e, http.MethodGet, "/boom").Code)

	assert.InDelta(t, 1, testutil.ToFloat64(m.RequestCounter(http.MethodGet, "/bad", http.StatusBadRequest)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RequestCounter(http.MethodGet, "/boom", http.StatusServiceUnavailable)), 0)
}

func TestMetricsNilIsPassthrough(t *testing.T) {
	t.Parallel()

	e := echo.New()
	e.Use(NewMetrics(nil))
	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/ok").Code)
}

func TestRateLimiterDeniesAfterBurst(t *testing.T) {
	t.Parallel()

	e := echo.New()
	e.Use(NewRateLimiter(RateLimitConfig{Rate: 0.001, Burst: 2, ExpiresIn: time.Minute}))
	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/ok").Code)
	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/ok").Code)

	rec := serve(e, http.MethodGet, "/ok")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "Too many requests")
}

func TestRequestLoggerWritesFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cl, err := logger.NewCentralLoggerWithWriter(&logger.LoggingConfig{DefaultLevel: "debug"}, &buf)
	require.NoError(t, err)

	e := echo.New()
	e.Use(NewRequestLogger(cl.Module("api")))
	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	serve(e, http.MethodGet, "/ok?x=1")
	require.NoError(t, cl.Flush())

	out := buf.String()
	assert.Contains(t, out, "request")
	assert.Contains(t, out, "/ok?x=1")
	assert.Contains(t, out, "204")
}
