package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RateLimitConfig is a per-client token bucket.
type RateLimitConfig struct {
	Rate      float64       // requests per second
	Burst     int           // bucket size
	ExpiresIn time.Duration // idle visitor eviction
}

// NewRateLimiter limits requests per client IP with an in-memory store.
func NewRateLimiter(cfg RateLimitConfig) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(cfg.Rate),
				Burst:     cfg.Burst,
				ExpiresIn: cfg.ExpiresIn,
			},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(ctx echo.Context, _ error) error {
			return ctx.JSON(http.StatusForbidden, map[string]string{
				"error": "unable to identify client",
			})
		},
		DenyHandler: func(ctx echo.Context, _ string, _ error) error {
			ctx.Set(ErrorTypeKey, "rate-limited")
			return ctx.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Too many requests, please wait before trying again",
			})
		},
	})
}
