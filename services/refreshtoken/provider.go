package refreshtoken

import (
	"github.com/tech-arch1tect/tokenchain/config"
	"github.com/tech-arch1tect/tokenchain/services/logging"
	"github.com/tech-arch1tect/tokenchain/services/metrics"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// ProvideStore wraps the gorm store in the retry policy. Every consumer goes
// through the retrying boundary.
func ProvideStore(db *gorm.DB, cfg *config.Config, m *metrics.Metrics, logger *logging.Service) Store {
	named := logger.Named("session_store")
	return NewRetryingStore(NewGormStore(db, named), cfg.Storage, m, named)
}

var Options = fx.Options(
	fx.Provide(ProvideStore),
)
