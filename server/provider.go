package server

import (
	"context"

	"github.com/tech-arch1tect/tokenchain/config"
	"github.com/tech-arch1tect/tokenchain/openapi"
	"github.com/tech-arch1tect/tokenchain/services/logging"
	"github.com/tech-arch1tect/tokenchain/services/metrics"
	"go.uber.org/fx"
)

func ProvideDocument(cfg *config.Config) *openapi.OpenAPI {
	return openapi.New(cfg.App.Name, "1.0.0").
		Description("Access and refresh token issuance with rotation and reuse detection")
}

func ProvideServer(lc fx.Lifecycle, cfg *config.Config, logger *logging.Service, m *metrics.Metrics, doc *openapi.OpenAPI) *Server {
	srv := New(cfg, logger.Named("http"))
	srv.MountMetrics(m)
	srv.MountOpenAPI(doc)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return srv.Start()
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})

	return srv
}

func NewProvider() fx.Option {
	return fx.Options(
		fx.Provide(ProvideDocument),
		fx.Provide(ProvideServer),
	)
}
