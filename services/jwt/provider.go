package jwt

import (
	"github.com/tech-arch1tect/tokenchain/config"
	"github.com/tech-arch1tect/tokenchain/services/keys"
	"github.com/tech-arch1tect/tokenchain/services/logging"
	"go.uber.org/fx"
)

func NewJWTService(cfg *config.Config, keyProvider keys.Provider, logger *logging.Service) *Service {
	return NewService(cfg.Auth, keyProvider, logger.Named("jwt"))
}

var Options = fx.Options(
	fx.Provide(NewJWTService),
)
