package csrf

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/tech-arch1tect/tokenchain/config"
)

const ContextKey = "csrf"

// Middleware guards the cookie authenticated endpoints with a double submit
// token. The cookie settings match the refresh cookie.
func Middleware(cfg *config.CSRFConfig, secure bool) echo.MiddlewareFunc {
	if !cfg.Enabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}

	return middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLength:    cfg.TokenLength,
		TokenLookup:    cfg.TokenLookup,
		ContextKey:     ContextKey,
		CookieName:     cfg.CookieName,
		CookiePath:     cfg.CookiePath,
		CookieSecure:   secure,
		CookieHTTPOnly: true,
		CookieSameSite: http.SameSiteStrictMode,
		ErrorHandler: func(err error, c echo.Context) error {
			return echo.NewHTTPError(http.StatusForbidden, "invalid csrf token")
		},
	})
}

func GetToken(c echo.Context) string {
	if token, ok := c.Get(ContextKey).(string); ok {
		return token
	}
	return ""
}
