package csrf

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/tokenchain/config"
)

func enabledConfig() *config.CSRFConfig {
	return &config.CSRFConfig{
		Enabled:     true,
		TokenLength: 32,
		TokenLookup: "header:X-CSRF-Token",
		CookieName:  "__Host-csrf",
		CookiePath:  "/",
	}
}

func tokenHandler(c echo.Context) error {
	return c.String(http.StatusOK, GetToken(c))
}

func TestMiddleware(t *testing.T) {
	e := echo.New()

	t.Run("CSRF disabled", func(t *testing.T) {
		mw := Middleware(&config.CSRFConfig{Enabled: false}, true)

		req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		if err := mw(tokenHandler)(c); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
	})

	t.Run("safe request issues token cookie", func(t *testing.T) {
		mw := Middleware(enabledConfig(), true)

		req := httptest.NewRequest(http.MethodGet, "/auth/csrf", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		if err := mw(tokenHandler)(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		token := rec.Body.String()
		if len(token) != 32 {
			t.Errorf("expected 32 character token, got %q", token)
		}

		cookies := rec.Result().Cookies()
		if len(cookies) != 1 {
			t.Fatalf("expected one cookie, got %d", len(cookies))
		}
		cookie := cookies[0]
		if cookie.Name != "__Host-csrf" || cookie.Value != token {
			t.Errorf("unexpected cookie %s=%s", cookie.Name, cookie.Value)
		}
		if !cookie.Secure || !cookie.HttpOnly || cookie.SameSite != http.SameSiteStrictMode || cookie.Path != "/" {
			t.Errorf("unexpected cookie attributes: %+v", cookie)
		}
	})

	t.Run("unsafe request without token is forbidden", func(t *testing.T) {
		mw := Middleware(enabledConfig(), true)

		req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
		c := e.NewContext(req, httptest.NewRecorder())

		err := mw(tokenHandler)(c)
		httpErr, ok := err.(*echo.HTTPError)
		if !ok || httpErr.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %v", err)
		}
	})

	t.Run("unsafe request with matching token passes", func(t *testing.T) {
		mw := Middleware(enabledConfig(), true)
		token := "0123456789abcdef0123456789abcdef"

		req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
		req.AddCookie(&http.Cookie{Name: "__Host-csrf", Value: token})
		req.Header.Set("X-CSRF-Token", token)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		if err := mw(tokenHandler)(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
	})

	t.Run("mismatched token is forbidden", func(t *testing.T) {
		mw := Middleware(enabledConfig(), true)

		req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
		req.AddCookie(&http.Cookie{Name: "__Host-csrf", Value: "0123456789abcdef0123456789abcdef"})
		req.Header.Set("X-CSRF-Token", "fedcba9876543210fedcba9876543210")
		c := e.NewContext(req, httptest.NewRecorder())

		err := mw(tokenHandler)(c)
		httpErr, ok := err.(*echo.HTTPError)
		if !ok || httpErr.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %v", err)
		}
	})
}

func TestGetToken(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	if got := GetToken(c); got != "" {
		t.Errorf("expected empty token, got %q", got)
	}

	c.Set(ContextKey, "abc")
	if got := GetToken(c); got != "abc" {
		t.Errorf("expected abc, got %q", got)
	}
}
