package metrics

import (
	"github.com/tech-arch1tect/tokenchain/config"
	"go.uber.org/fx"
)

func ProvideMetrics(cfg *config.Config) *Metrics {
	return New(cfg.Metrics.Namespace)
}

var Options = fx.Options(
	fx.Provide(ProvideMetrics),
)
