// Package api implements the nanolume JSON API v2: simulation, spectra,
// lattice generation, saved runs and presets.
package api

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	mw "github.com/qdlab/nanolume/internal/api/middleware"
	"github.com/qdlab/nanolume/internal/conf"
	"github.com/qdlab/nanolume/internal/datastore"
	"github.com/qdlab/nanolume/internal/errors"
	"github.com/qdlab/nanolume/internal/lattice"
	"github.com/qdlab/nanolume/internal/logger"
	"github.com/qdlab/nanolume/internal/model"
	"github.com/qdlab/nanolume/internal/observability"
	"github.com/qdlab/nanolume/internal/simulation"
)

// healthProbeTimeout bounds the datastore ping and system stat calls.
const healthProbeTimeout = 2 * time.Second

// publishTimeout bounds a single background MQTT publish.
const publishTimeout = 15 * time.Second

// GetLogger returns the API v2 module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// RunPublisher receives every saved run. mqtt.Publisher implements it.
type RunPublisher interface {
	PublishRun(ctx context.Context, run *datastore.SimulationRun) error
}

// Controller manages the API routes and handlers
type Controller struct {
	Echo      *echo.Echo
	Group     *echo.Group
	Engine    *simulation.Engine
	DS        datastore.Interface // nil when no output is enabled
	Publisher RunPublisher        // nil when MQTT is disabled
	Settings  *conf.Settings

	metrics   *observability.Metrics
	log       logger.Logger
	startTime time.Time

	// Background publishes are tied to ctx and tracked by wg.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithDataStore enables the runs and presets endpoints.
func WithDataStore(ds datastore.Interface) Option {
	return func(c *Controller) {
		c.DS = ds
	}
}

// WithPublisher publishes every saved run.
func WithPublisher(p RunPublisher) Option {
	return func(c *Controller) {
		c.Publisher = p
	}
}

// WithMetrics records per-request metrics and reports counter totals in
// the health check.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithLogger overrides the module logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates the API controller and registers its routes under /api/v2.
func New(e *echo.Echo, engine *simulation.Engine, settings *conf.Settings, opts ...Option) (*Controller, error) {
	if engine == nil {
		return nil, errors.Newf("simulation engine is required").
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if settings == nil {
		return nil, errors.Newf("settings are required").
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		Echo:      e,
		Engine:    engine,
		Settings:  settings,
		startTime: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = GetLogger()
	}

	c.Group = e.Group("/api/v2")
	c.setupMiddleware()
	c.initRoutes()

	c.log.Info("API v2 initialized",
		logger.Bool("datastore", c.DS != nil),
		logger.Bool("publisher", c.Publisher != nil),
		logger.Bool("metrics", c.metrics != nil))

	return c, nil
}

func (c *Controller) setupMiddleware() {
	ws := c.Settings.WebServer

	c.Group.Use(middleware.Recover()) // Recover should be early
	if c.metrics != nil {
		c.Group.Use(mw.NewMetrics(c.metrics.HTTP))
	}
	c.Group.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: ws.AllowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
	}))
	if ws.BodyLimit != "" {
		c.Group.Use(middleware.BodyLimit(ws.BodyLimit))
	}
	if ws.RateLimit.Enabled {
		c.Group.Use(mw.NewRateLimiter(mw.RateLimitConfig{
			Rate:      ws.RateLimit.Rate,
			Burst:     ws.RateLimit.Burst,
			ExpiresIn: ws.RateLimit.ExpiresIn,
		}))
	}
	c.Group.Use(mw.NewRequestLogger(c.log))
}

// initRoutes registers all API endpoints
func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)
	c.Group.GET("/model", c.GetModel)

	c.initSimulationRoutes()
	c.initSpectrumRoutes()
	c.initLatticeRoutes()
	c.initRunRoutes()
	c.initPresetRoutes()
}

// HealthCheck handles the API health check endpoint
func (c *Controller) HealthCheck(ctx echo.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx.Request().Context(), healthProbeTimeout)
	defer cancel()

	uptime := time.Since(c.startTime)
	response := map[string]any{
		"status":         "healthy",
		"version":        c.Settings.Version,
		"build_date":     c.Settings.BuildDate,
		"timestamp":      time.Now().Format(time.RFC3339),
		"uptime":         uptime.String(),
		"uptime_seconds": uptime.Seconds(),
		"cached_results": c.Engine.CachedResults(),
	}

	switch {
	case c.DS == nil:
		response["database_status"] = "disabled"
	default:
		if err := c.DS.Ping(reqCtx); err != nil {
			response["database_status"] = "disconnected"
			response["database_error"] = errors.ScrubMessage(err.Error())
			response["status"] = "degraded"
		} else {
			response["database_status"] = "connected"
		}
	}

	response["system"] = systemStats(reqCtx)

	if c.metrics != nil {
		if totals, err := c.metrics.CounterTotals(); err == nil {
			response["counters"] = totals
		}
	}

	return ctx.JSON(http.StatusOK, response)
}

// systemStats collects host memory and CPU usage. Failed probes are omitted.
func systemStats(ctx context.Context) map[string]any {
	stats := map[string]any{
		"goroutines": runtime.NumGoroutine(),
		"num_cpu":    runtime.NumCPU(),
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats["memory_usage"] = map[string]any{
			"used_percent": vm.UsedPercent,
			"total_mb":     float64(vm.Total) / 1024 / 1024,
			"used_mb":      float64(vm.Used) / 1024 / 1024,
		}
	}

	// Zero interval compares against the previous call.
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		stats["cpu_usage"] = pct[0]
	}

	return stats
}

// ModelResponse describes the active physical model.
type ModelResponse struct {
	Constants model.Constants   `json:"constants"`
	Lattice   lattice.Constants `json:"lattice"`
	Limits    InputLimits       `json:"limits"`
}

// InputLimits are the accepted input ranges.
type InputLimits struct {
	RadiusNM        [2]float64 `json:"radius"`
	ReactionTimeMin [2]float64 `json:"time"`
	MaxFWHMNM       float64    `json:"maxFwhm"`
	ZrConcentration [2]float64 `json:"zr"`
	MaxSweepPoints  int        `json:"maxSweepPoints"`
}

// GetModel returns the active model constants and input limits.
func (c *Controller) GetModel(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, ModelResponse{
		Constants: c.Engine.Constants(),
		Lattice:   c.Settings.Lattice,
		Limits: InputLimits{
			RadiusNM:        [2]float64{simulation.MinRadiusNM, simulation.MaxRadiusNM},
			ReactionTimeMin: [2]float64{simulation.MinReactionTimeMin, simulation.MaxReactionTimeMin},
			MaxFWHMNM:       simulation.MaxFWHMNM,
			ZrConcentration: [2]float64{simulation.MinZrConcentration, simulation.MaxZrConcentration},
			MaxSweepPoints:  simulation.MaxSweepPoints,
		},
	})
}

// Shutdown cancels background publishes and waits for them to return.
func (c *Controller) Shutdown() {
	c.cancel()
	c.wg.Wait()
	c.log.Debug("API controller shut down")
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"` // Unique identifier for tracking this error
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}

	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: uuid.NewString(),
	}
}

// HandleError writes an error response and logs it with its correlation ID.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code)

	errorType := http.StatusText(code)
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		errorType = ee.GetCategory()
	}
	ctx.Set(mw.CorrelationIDKey, resp.CorrelationID)
	ctx.Set(mw.ErrorTypeKey, errorType)

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.Int("code", code),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("method", ctx.Request().Method),
		logger.String("ip", ctx.RealIP()),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if code >= http.StatusInternalServerError {
		c.log.Error("API error", fields...)
	} else {
		c.log.Debug("API error", fields...)
	}

	return ctx.JSON(code, resp)
}

// HandleServiceError maps the error category onto a status code:
// validation → 400, not found → 404, everything else → 500.
func (c *Controller) HandleServiceError(ctx echo.Context, err error, message string) error {
	return c.HandleError(ctx, err, message, statusForError(err))
}

func statusForError(err error) int {
	var he *echo.HTTPError
	switch {
	case errors.IsValidation(err):
		return http.StatusBadRequest
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.As(err, &he):
		return he.Code
	default:
		return http.StatusInternalServerError
	}
}

// storeDisabled is the reply of the runs and presets endpoints when no
// output backend is enabled.
func (c *Controller) storeDisabled(ctx echo.Context) error {
	return c.HandleError(ctx, nil, "persistence is disabled; enable output.sqlite or output.mysql", http.StatusServiceUnavailable)
}
