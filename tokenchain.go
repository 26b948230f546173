// Package tokenchain issues RS256 access tokens paired with rotating,
// revocable refresh tokens.
package tokenchain

import (
	"github.com/tech-arch1tect/tokenchain/app"
	"github.com/tech-arch1tect/tokenchain/config"
	"github.com/tech-arch1tect/tokenchain/handlers"
	"github.com/tech-arch1tect/tokenchain/internal/options"
	"go.uber.org/fx"
)

type App = app.App

type Authenticator = handlers.Authenticator

var ErrInvalidCredentials = handlers.ErrInvalidCredentials

func New(opts ...options.Option) (*App, error) {
	return app.New(opts...)
}

func WithConfig(cfg *config.Config) options.Option {
	return options.WithConfig(cfg)
}

func WithAuthenticator(authenticator Authenticator) options.Option {
	return options.WithAuthenticator(authenticator)
}

func WithoutHTTP() options.Option {
	return options.WithoutHTTP()
}

func WithFxOptions(fxOpts ...fx.Option) options.Option {
	return options.WithFxOptions(fxOpts...)
}
