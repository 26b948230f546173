package replay

import (
	"github.com/redis/go-redis/v9"
	"github.com/tech-arch1tect/tokenchain/config"
	"github.com/tech-arch1tect/tokenchain/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type TrackerParams struct {
	fx.In

	Config *config.Config
	Redis  redis.UniversalClient `optional:"true"`
	Logger *logging.Service
}

func ProvideTracker(p TrackerParams) Tracker {
	if !p.Config.Replay.Enabled || p.Redis == nil {
		return NopTracker{}
	}

	p.Logger.Info("refresh token reuse tracking enabled",
		zap.String("key_prefix", p.Config.Replay.KeyPrefix),
		zap.Duration("ttl", p.Config.Replay.TTL))

	return NewRedisTracker(p.Redis, p.Config.Replay.KeyPrefix, p.Config.Replay.TTL)
}

var Options = fx.Options(
	fx.Provide(ProvideTracker),
)
