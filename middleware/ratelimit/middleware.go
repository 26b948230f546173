package ratelimit

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/tokenchain/config"
	"github.com/tech-arch1tect/tokenchain/services/logging"
	"go.uber.org/zap"
)

type Config struct {
	Store          Store
	Rate           int
	Period         time.Duration
	CountMode      config.CountingMode
	KeyGenerator   func(c echo.Context) string
	OnLimitReached func(c echo.Context) error
	Logger         *logging.Service
}

// Middleware applies a fixed window limit per key. A failing store lets the
// request through.
func Middleware(cfg *Config) echo.MiddlewareFunc {
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}

	if cfg.Rate <= 0 {
		cfg.Rate = 10
	}

	if cfg.Period <= 0 {
		cfg.Period = time.Minute
	}

	if cfg.KeyGenerator == nil {
		cfg.KeyGenerator = DefaultKeyGenerator
	}

	if cfg.OnLimitReached == nil {
		cfg.OnLimitReached = DefaultOnLimitReached
	}

	if cfg.CountMode == "" {
		cfg.CountMode = config.CountAll
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := cfg.KeyGenerator(c)

			count, resetTime, err := cfg.Store.Get(ctx, key)
			if err != nil {
				cfg.Logger.Warn("rate limit store unavailable", zap.String("key", key), zap.Error(err))
				return next(c)
			}

			if count >= cfg.Rate {
				setHeaders(c, cfg.Rate, 0, resetTime)
				return cfg.OnLimitReached(c)
			}

			if cfg.CountMode == config.CountAll {
				count, resetTime, err = cfg.Store.Increment(ctx, key, cfg.Period)
				if err != nil {
					cfg.Logger.Warn("rate limit store unavailable", zap.String("key", key), zap.Error(err))
					return next(c)
				}
			} else {
				count++
				if resetTime.IsZero() {
					resetTime = time.Now().Add(cfg.Period)
				}
			}

			setHeaders(c, cfg.Rate, max(cfg.Rate-count, 0), resetTime)

			err = next(c)

			if cfg.CountMode != config.CountAll {
				status := responseStatus(c, err)
				shouldCount := false

				switch cfg.CountMode {
				case config.CountFailures:
					shouldCount = status >= 400
				case config.CountSuccess:
					shouldCount = status < 400
				}

				if shouldCount {
					if _, _, incErr := cfg.Store.Increment(ctx, key, cfg.Period); incErr != nil {
						cfg.Logger.Warn("rate limit store unavailable", zap.String("key", key), zap.Error(incErr))
					}
				}
			}

			return err
		}
	}
}

func setHeaders(c echo.Context, limit, remaining int, resetTime time.Time) {
	header := c.Response().Header()
	header.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	header.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	header.Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))
}

// responseStatus reports the status the request will end with. Errors
// returned by the handler have not been written yet.
func responseStatus(c echo.Context, err error) int {
	if err == nil {
		return c.Response().Status
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}

	return http.StatusInternalServerError
}

// DefaultKeyGenerator limits per client address and route.
func DefaultKeyGenerator(c echo.Context) string {
	realIP := c.RealIP()

	if realIP == "" || realIP == "unknown" {
		realIP = "fallback"
	}

	return realIP + ":" + c.Path()
}

func DefaultOnLimitReached(c echo.Context) error {
	return echo.NewHTTPError(http.StatusTooManyRequests, "Too Many Requests")
}
