package keys

import (
	"github.com/tech-arch1tect/tokenchain/config"
	"github.com/tech-arch1tect/tokenchain/services/logging"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(ProvideKeyProvider),
)

// ProvideKeyProvider loads the keys eagerly so a bad keypair stops startup.
func ProvideKeyProvider(cfg *config.Config, logger *logging.Service) (Provider, error) {
	provider := NewFileProvider(cfg.Auth, logger)
	if _, err := provider.Load(); err != nil {
		return nil, err
	}
	return provider, nil
}
