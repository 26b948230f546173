package handlers

import (
	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/tokenchain/config"
	"github.com/tech-arch1tect/tokenchain/middleware/csrf"
	mwjwt "github.com/tech-arch1tect/tokenchain/middleware/jwt"
	"github.com/tech-arch1tect/tokenchain/middleware/ratelimit"
	"github.com/tech-arch1tect/tokenchain/openapi"
	"github.com/tech-arch1tect/tokenchain/server"
	"github.com/tech-arch1tect/tokenchain/services/jwt"
	"github.com/tech-arch1tect/tokenchain/services/logging"
	"github.com/tech-arch1tect/tokenchain/services/rotation"
	"go.uber.org/fx"
)

const routePrefix = "/auth"

type HandlerParams struct {
	fx.In

	Config        *config.Config
	Engine        *rotation.Engine
	Authenticator Authenticator `optional:"true"`
	Logger        *logging.Service
}

func ProvideAuthHandler(p HandlerParams) *AuthHandler {
	if p.Authenticator == nil {
		p.Logger.Warn("no authenticator configured, login is disabled")
	}
	return NewAuthHandler(p.Engine, p.Authenticator, NewCookieConfig(p.Config), p.Logger.Named("auth_handler"))
}

type RouteParams struct {
	fx.In

	Config   *config.Config
	Server   *server.Server
	Handler  *AuthHandler
	Codec    *jwt.Service
	Limiters *ratelimit.Limiters
	Document *openapi.OpenAPI
	Logger   *logging.Service
}

func RegisterRoutes(p RouteParams) {
	guards := Guards{
		Login:   p.Limiters.Login,
		Refresh: p.Limiters.Refresh,
		CSRF:    csrf.Middleware(&p.Config.CSRF, p.Config.Server.CookieSecure),
		Access:  mwjwt.RequireAccessToken(p.Codec, p.Logger.Named("access")),
	}

	p.Handler.Register(p.Server.Group(routePrefix, noStore), guards, p.Config.CSRF.Enabled)
	p.Handler.Document(p.Document, routePrefix, p.Config.CSRF.Enabled)
}

func noStore(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set("Cache-Control", "no-store")
		return next(c)
	}
}

var Module = fx.Options(
	fx.Provide(ProvideAuthHandler),
	fx.Invoke(RegisterRoutes),
)
