// Package telemetry provides opt-in, privacy-filtered error reporting to Sentry.
package telemetry

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/qdlab/nanolume/internal/conf"
	"github.com/qdlab/nanolume/internal/errors"
	"github.com/qdlab/nanolume/internal/logger"
)

// sentryInitialized is set once InitSentry succeeded.
var sentryInitialized atomic.Bool

// PlatformInfo holds privacy-safe platform information for telemetry
type PlatformInfo struct {
	OS           string `json:"os"`
	Architecture string `json:"arch"`
	NumCPU       int    `json:"num_cpu"`
	GoVersion    string `json:"go_version"`
}

func collectPlatformInfo() PlatformInfo {
	return PlatformInfo{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		NumCPU:       runtime.NumCPU(),
		GoVersion:    runtime.Version(),
	}
}

// GetLogger returns the telemetry module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("telemetry")
}

// InitSentry initializes the Sentry SDK when telemetry is enabled and installs
// the Sentry reporter for enhanced errors. It is a no-op when disabled.
func InitSentry(settings *conf.Settings) error {
	return initSentry(settings, nil)
}

// initSentry allows tests to supply a transport.
func initSentry(settings *conf.Settings, transport sentry.Transport) error {
	if !settings.Telemetry.Enabled {
		GetLogger().Debug("Sentry telemetry is disabled (opt-in required)")
		return nil
	}

	environment := settings.Telemetry.Environment
	if environment == "" {
		environment = "production"
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.Telemetry.DSN,
		Debug:            settings.Telemetry.Debug,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      environment,
		ServerName:       "",
		Release:          fmt.Sprintf("nanolume@%s", settings.Version),
		BeforeSend:       beforeSend,
		Transport:        transport,
	})
	if err != nil {
		return errors.New(err).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Context("operation", "sentry_init").
			Build()
	}

	configureSentryScope(settings)
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	sentryInitialized.Store(true)

	info := collectPlatformInfo()
	GetLogger().Info("Sentry telemetry initialized",
		logger.String("version", settings.Version),
		logger.String("environment", environment),
		logger.String("platform", info.OS),
		logger.String("arch", info.Architecture))
	return nil
}

// beforeSend strips identifying data from every event.
func beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	return applyPrivacyFilters(event)
}

// applyPrivacyFilters applies privacy filters to a Sentry event
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Message = errors.ScrubMessage(event.Message)

	for i := range event.Exception {
		event.Exception[i].Value = errors.ScrubMessage(event.Exception[i].Value)
	}

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}

	for k := range event.Extra {
		if k != "error_type" && k != "component" {
			delete(event.Extra, k)
		}
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	return event
}

// configureSentryScope tags all events with the instance and platform.
func configureSentryScope(settings *conf.Settings) {
	info := collectPlatformInfo()

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("os", info.OS)
		scope.SetTag("arch", info.Architecture)
		scope.SetContext("application", map[string]any{
			"name":    "nanolume",
			"version": settings.Version,
		})
		scope.SetContext("platform", map[string]any{
			"os":           info.OS,
			"architecture": info.Architecture,
			"num_cpu":      info.NumCPU,
			"go_version":   info.GoVersion,
		})
	})
}

// IsEnabled reports whether Sentry was initialized.
func IsEnabled() bool {
	return sentryInitialized.Load()
}

// CaptureError sends err to Sentry. Enhanced errors go through the reporter
// so they keep their category and are reported at most once.
func CaptureError(err error, component string) {
	if err == nil || !IsEnabled() {
		return
	}

	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		if reporter := errors.GetTelemetryReporter(); reporter != nil {
			reporter.ReportError(ee)
			return
		}
	}

	scrubbed := errors.ScrubMessage(err.Error())
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		scope.SetFingerprint([]string{component, fmt.Sprintf("%T", err)})

		event := sentry.NewEvent()
		event.Level = sentry.LevelError
		event.Message = scrubbed
		event.Exception = []sentry.Exception{{Type: fmt.Sprintf("%T", err), Value: scrubbed}}
		sentry.CaptureEvent(event)
	})
}

// Flush waits for buffered events to be sent.
func Flush(timeout time.Duration) {
	if !IsEnabled() {
		return
	}
	sentry.Flush(timeout)
}

// Shutdown flushes pending events and removes the reporter.
func Shutdown(timeout time.Duration) {
	if !IsEnabled() {
		return
	}
	sentry.Flush(timeout)
	errors.SetTelemetryReporter(nil)
	sentryInitialized.Store(false)
}
