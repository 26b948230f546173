package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/tokenchain/config"
)

// CookieConfig describes the refresh token cookie. The __Host- prefix
// requires Secure and Path=/.
type CookieConfig struct {
	Name   string
	Path   string
	Secure bool
	MaxAge time.Duration
}

func NewCookieConfig(cfg *config.Config) CookieConfig {
	return CookieConfig{
		Name:   cfg.Server.RefreshCookieName,
		Path:   cfg.Server.RefreshCookiePath,
		Secure: cfg.Server.CookieSecure,
		MaxAge: cfg.Auth.RefreshTTL,
	}
}

func (h *AuthHandler) setRefreshCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     h.cookie.Path,
		MaxAge:   int(h.cookie.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     h.cookie.Path,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) refreshTokenFromCookie(c echo.Context) (string, bool) {
	cookie, err := c.Cookie(h.cookie.Name)
	if err != nil {
		return "", false
	}

	value := strings.TrimSpace(cookie.Value)
	return value, value != ""
}
