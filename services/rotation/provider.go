package rotation

import (
	"github.com/tech-arch1tect/tokenchain/config"
	"github.com/tech-arch1tect/tokenchain/services/jwt"
	"github.com/tech-arch1tect/tokenchain/services/logging"
	"github.com/tech-arch1tect/tokenchain/services/metrics"
	"github.com/tech-arch1tect/tokenchain/services/refreshtoken"
	"github.com/tech-arch1tect/tokenchain/services/replay"
	"go.uber.org/fx"
)

func NewRotationEngine(cfg *config.Config, codec *jwt.Service, store refreshtoken.Store, tracker replay.Tracker, m *metrics.Metrics, logger *logging.Service) *Engine {
	return NewEngine(cfg.Auth, codec, store, tracker, m, logger.Named("rotation"))
}

var Options = fx.Options(
	fx.Provide(NewRotationEngine),
)
