package database

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/tech-arch1tect/tokenchain/config"
	"github.com/tech-arch1tect/tokenchain/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ProvideRedis returns a client only when a component is configured to use
// Redis, and nil otherwise.
func ProvideRedis(lc fx.Lifecycle, cfg *config.Config, logger *logging.Service) redis.UniversalClient {
	if !NeedsRedis(cfg) {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				logger.Warn("redis not reachable at startup", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return client
}

func NeedsRedis(cfg *config.Config) bool {
	return cfg.Replay.Enabled || (cfg.RateLimit.Enabled && cfg.RateLimit.Store == "redis")
}
