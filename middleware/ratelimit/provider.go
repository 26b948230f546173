package ratelimit

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/tech-arch1tect/tokenchain/config"
	"github.com/tech-arch1tect/tokenchain/services/logging"
	"go.uber.org/fx"
)

type StoreParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.Config
	Redis     redis.UniversalClient `optional:"true"`
	Logger    *logging.Service
}

func ProvideRateLimitStore(p StoreParams) Store {
	if p.Config.RateLimit.Store == "redis" && p.Redis != nil {
		return NewRedisStore(p.Redis, p.Config.RateLimit.KeyPrefix)
	}

	if p.Config.RateLimit.Store == "redis" {
		p.Logger.Warn("redis rate limit store requested without a redis client, using memory")
	}

	store := NewMemoryStore()
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			store.Close()
			return nil
		},
	})

	return store
}

// Limiters holds the per route middlewares of the auth endpoints. A
// middleware is a pass-through when rate limiting is disabled.
type Limiters struct {
	Login   echo.MiddlewareFunc
	Refresh echo.MiddlewareFunc
}

func ProvideLimiters(cfg *config.Config, store Store, logger *logging.Service) *Limiters {
	if !cfg.RateLimit.Enabled {
		passThrough := func(next echo.HandlerFunc) echo.HandlerFunc { return next }
		return &Limiters{Login: passThrough, Refresh: passThrough}
	}

	named := logger.Named("ratelimit")
	return &Limiters{
		Login: Middleware(&Config{
			Store:     store,
			Rate:      cfg.RateLimit.LoginPerMinute,
			Period:    time.Minute,
			CountMode: cfg.RateLimit.CountMode,
			Logger:    named,
		}),
		Refresh: Middleware(&Config{
			Store:     store,
			Rate:      cfg.RateLimit.RefreshPerMinute,
			Period:    time.Minute,
			CountMode: cfg.RateLimit.CountMode,
			Logger:    named,
		}),
	}
}

var Options = fx.Options(
	fx.Provide(ProvideRateLimitStore),
	fx.Provide(ProvideLimiters),
)
