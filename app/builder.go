package app

import (
	"github.com/tech-arch1tect/tokenchain/config"
	"github.com/tech-arch1tect/tokenchain/database"
	"github.com/tech-arch1tect/tokenchain/handlers"
	"github.com/tech-arch1tect/tokenchain/internal/options"
	"github.com/tech-arch1tect/tokenchain/middleware/ratelimit"
	"github.com/tech-arch1tect/tokenchain/server"
	"github.com/tech-arch1tect/tokenchain/services/jwt"
	"github.com/tech-arch1tect/tokenchain/services/keys"
	"github.com/tech-arch1tect/tokenchain/services/logging"
	"github.com/tech-arch1tect/tokenchain/services/metrics"
	"github.com/tech-arch1tect/tokenchain/services/refreshtoken"
	"github.com/tech-arch1tect/tokenchain/services/replay"
	"github.com/tech-arch1tect/tokenchain/services/rotation"
	"go.uber.org/fx"
)

// buildFxOptions assembles the dependency graph. The core services are
// always present; the HTTP surface is optional.
func buildFxOptions(o *options.Options) []fx.Option {
	fxOptions := []fx.Option{
		fx.NopLogger,
		config.NewProvider(o.Config),
		logging.Module,
		fx.Supply(database.WithModels(&refreshtoken.RefreshToken{})),
		database.Module,
		keys.Module,
		jwt.Options,
		metrics.Options,
		refreshtoken.Options,
		replay.Options,
		rotation.Options,
	}

	if !o.DisableHTTP {
		fxOptions = append(fxOptions,
			ratelimit.Options,
			server.NewProvider(),
			handlers.Module,
		)

		if o.Authenticator != nil {
			authenticator := o.Authenticator
			fxOptions = append(fxOptions, fx.Provide(func() handlers.Authenticator {
				return authenticator
			}))
		}
	}

	return append(fxOptions, o.ExtraFxOptions...)
}
