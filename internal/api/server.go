package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	v2 "github.com/qdlab/nanolume/internal/api/v2"
	"github.com/qdlab/nanolume/internal/conf"
	"github.com/qdlab/nanolume/internal/datastore"
	"github.com/qdlab/nanolume/internal/logger"
	"github.com/qdlab/nanolume/internal/observability"
	"github.com/qdlab/nanolume/internal/simulation"
)

// Server is the main HTTP server for nanolume.
// It manages the Echo framework instance, middleware, and all HTTP routes.
type Server struct {
	echo     *echo.Echo
	config   *Config
	settings *conf.Settings
	log      logger.Logger

	engine    *simulation.Engine
	dataStore datastore.Interface
	publisher v2.RunPublisher
	metrics   *observability.Metrics

	apiController *v2.Controller

	startTime time.Time
	errCh     chan error
	startOnce sync.Once
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithDataStore enables the runs and presets endpoints.
func WithDataStore(ds datastore.Interface) ServerOption {
	return func(s *Server) {
		s.dataStore = ds
	}
}

// WithPublisher publishes saved runs.
func WithPublisher(p v2.RunPublisher) ServerOption {
	return func(s *Server) {
		s.publisher = p
	}
}

// WithMetrics enables request metrics and the Prometheus endpoint.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// New creates the server and registers every route.
func New(settings *conf.Settings, engine *simulation.Engine, opts ...ServerOption) (*Server, error) {
	config := ConfigFromSettings(settings)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	s := &Server{
		config:    config,
		settings:  settings,
		engine:    engine,
		log:       GetLogger(),
		startTime: time.Now(),
		errCh:     make(chan error, 1),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Debug = config.Debug
	s.echo.HTTPErrorHandler = s.errorHandler
	if config.Debug {
		s.echo.Logger.SetLevel(log.DEBUG)
	} else {
		s.echo.Logger.SetLevel(log.WARN)
	}

	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.echo.Use(echomw.Recover())

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("failed to setup routes: %w", err)
	}

	s.log.Info("HTTP server initialized",
		logger.String("address", config.Address()),
		logger.Bool("debug", config.Debug),
		logger.String("metrics_path", config.MetricsPath))

	return s, nil
}

func (s *Server) setupRoutes() error {
	s.echo.GET("/health", s.healthCheck)

	if s.config.MetricsPath != "" && s.metrics != nil {
		s.echo.GET(s.config.MetricsPath, echo.WrapHandler(s.metrics.Handler()))
	}

	opts := []v2.Option{v2.WithLogger(v2.GetLogger())}
	if s.dataStore != nil {
		opts = append(opts, v2.WithDataStore(s.dataStore))
	}
	if s.publisher != nil {
		opts = append(opts, v2.WithPublisher(s.publisher))
	}
	if s.metrics != nil {
		opts = append(opts, v2.WithMetrics(s.metrics))
	}

	apiController, err := v2.New(s.echo, s.engine, s.settings, opts...)
	if err != nil {
		return fmt.Errorf("failed to initialize API v2: %w", err)
	}
	s.apiController = apiController
	return nil
}

// healthCheck is the lightweight liveness probe outside the API group.
func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"version":        s.settings.Version,
		"uptime_seconds": uptime.Seconds(),
	})
}

// errorHandler renders echo errors (unknown routes, bind and body limit
// failures) in the API error format.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	}

	resp := v2.NewErrorResponse(err, message, code)
	if code >= http.StatusInternalServerError {
		s.log.Error("unhandled server error",
			logger.String("correlation_id", resp.CorrelationID),
			logger.String("path", c.Request().URL.Path),
			logger.Error(err))
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, resp)
	}
	if err != nil {
		s.log.Warn("failed to write error response", logger.Error(err))
	}
}

// Start begins serving in the background. Errors other than a clean
// shutdown are delivered on Errors.
func (s *Server) Start() {
	s.startOnce.Do(func() {
		addr := s.config.Address()
		s.log.Info("HTTP server starting", logger.String("address", addr))

		go func() {
			if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("server error", logger.Error(err))
				s.errCh <- fmt.Errorf("server error: %w", err)
			}
			close(s.errCh)
		}()
	})
}

// Errors is closed when the listener stops.
func (s *Server) Errors() <-chan error {
	return s.errCh
}

// StartWithGracefulShutdown serves until SIGINT/SIGTERM or a listener
// failure, then shuts down.
func (s *Server) StartWithGracefulShutdown() error {
	s.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.log.Info("shutdown signal received", logger.String("signal", sig.String()))
	case err, ok := <-s.errCh:
		if ok && err != nil {
			return err
		}
	}

	return s.Shutdown()
}

// Shutdown stops background publishes, then drains in-flight requests.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if s.apiController != nil {
		s.apiController.Shutdown()
	}

	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}

	s.log.Info("server shutdown complete")
	return nil
}

// Echo returns the underlying Echo instance.
// This is useful for testing or advanced configuration.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// APIController returns the v2 API controller.
func (s *Server) APIController() *v2.Controller {
	return s.apiController
}
