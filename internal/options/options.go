package options

import (
	"github.com/tech-arch1tect/tokenchain/config"
	"github.com/tech-arch1tect/tokenchain/handlers"
	"go.uber.org/fx"
)

type Options struct {
	Config         *config.Config
	Authenticator  handlers.Authenticator
	DisableHTTP    bool
	ExtraFxOptions []fx.Option
}

type Option func(*Options)

// WithConfig skips environment loading. The config is still validated.
func WithConfig(cfg *config.Config) Option {
	return func(opts *Options) {
		opts.Config = cfg
	}
}

func WithAuthenticator(authenticator handlers.Authenticator) Option {
	return func(opts *Options) {
		opts.Authenticator = authenticator
	}
}

// WithoutHTTP builds the engine and its storage only, for embedding the
// rotation engine in another server.
func WithoutHTTP() Option {
	return func(opts *Options) {
		opts.DisableHTTP = true
	}
}

func WithFxOptions(fxOpts ...fx.Option) Option {
	return func(opts *Options) {
		opts.ExtraFxOptions = append(opts.ExtraFxOptions, fxOpts...)
	}
}

func Apply(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
