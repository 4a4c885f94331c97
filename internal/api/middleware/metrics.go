package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/qdlab/nanolume/internal/observability/metrics"
)

// Context keys shared with the API handlers.
const (
	// CorrelationIDKey holds the correlation ID of an error response.
	CorrelationIDKey = "correlation_id"
	// ErrorTypeKey holds the error category of an error response.
	ErrorTypeKey = "error_type"
)

// NewMetrics records request counts, latencies and error types. The path
// label is the route pattern so IDs do not explode cardinality.
func NewMetrics(m *metrics.HTTPMetrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}

			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			method := c.Request().Method
			m.RecordRequest(method, path, status, time.Since(start).Seconds())

			if status >= http.StatusBadRequest {
				errorType, _ := c.Get(ErrorTypeKey).(string)
				if errorType == "" {
					errorType = http.StatusText(status)
				}
				m.RecordRequestError(method, path, errorType)
			}
			return err
		}
	}
}
