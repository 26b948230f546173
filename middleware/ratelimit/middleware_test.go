package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/tokenchain/config"
	"github.com/tech-arch1tect/tokenchain/testutils"
)

type failingStore struct{}

func (failingStore) Get(context.Context, string) (int, time.Time, error) {
	return 0, time.Time{}, errors.New("store down")
}

func (failingStore) Increment(context.Context, string, time.Duration) (int, time.Time, error) {
	return 0, time.Time{}, errors.New("store down")
}

func (failingStore) Reset(context.Context, string) error {
	return errors.New("store down")
}

func serve(t *testing.T, mw echo.MiddlewareFunc, handler echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/auth/login")
	return rec, mw(handler)(c)
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func unauthorizedHandler(c echo.Context) error {
	return echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
}

func isTooMany(err error) bool {
	var httpErr *echo.HTTPError
	return errors.As(err, &httpErr) && httpErr.Code == http.StatusTooManyRequests
}

func TestMiddleware(t *testing.T) {
	t.Run("basic rate limiting", func(t *testing.T) {
		store := NewMemoryStore()
		defer store.Close()
		mw := Middleware(&Config{Store: store, Rate: 2, Period: time.Minute})

		for i := range 2 {
			rec, err := serve(t, mw, okHandler)
			if err != nil {
				t.Fatalf("request %d: unexpected error: %v", i, err)
			}
			if rec.Header().Get("X-RateLimit-Limit") != "2" {
				t.Errorf("expected limit header 2, got %q", rec.Header().Get("X-RateLimit-Limit"))
			}
		}

		rec, err := serve(t, mw, okHandler)
		if !isTooMany(err) {
			t.Fatalf("expected 429, got %v", err)
		}
		if rec.Header().Get("X-RateLimit-Remaining") != "0" {
			t.Errorf("expected remaining 0, got %q", rec.Header().Get("X-RateLimit-Remaining"))
		}
		if rec.Header().Get("X-RateLimit-Reset") == "" {
			t.Error("expected reset header")
		}
	})

	t.Run("remaining header counts down", func(t *testing.T) {
		store := NewMemoryStore()
		defer store.Close()
		mw := Middleware(&Config{Store: store, Rate: 3, Period: time.Minute})

		rec, _ := serve(t, mw, okHandler)
		if got := rec.Header().Get("X-RateLimit-Remaining"); got != "2" {
			t.Errorf("expected remaining 2, got %q", got)
		}
	})

	t.Run("count failures ignores successful requests", func(t *testing.T) {
		store := NewMemoryStore()
		defer store.Close()
		mw := Middleware(&Config{Store: store, Rate: 1, Period: time.Minute, CountMode: config.CountFailures})

		for range 3 {
			if _, err := serve(t, mw, okHandler); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		if _, err := serve(t, mw, unauthorizedHandler); isTooMany(err) {
			t.Fatal("first failure should pass")
		}
		if _, err := serve(t, mw, okHandler); !isTooMany(err) {
			t.Fatalf("expected 429 after a failure, got %v", err)
		}
	})

	t.Run("count success ignores failed requests", func(t *testing.T) {
		store := NewMemoryStore()
		defer store.Close()
		mw := Middleware(&Config{Store: store, Rate: 1, Period: time.Minute, CountMode: config.CountSuccess})

		for range 3 {
			if _, err := serve(t, mw, unauthorizedHandler); isTooMany(err) {
				t.Fatal("failures should not count")
			}
		}

		serve(t, mw, okHandler)
		if _, err := serve(t, mw, okHandler); !isTooMany(err) {
			t.Fatalf("expected 429 after a success, got %v", err)
		}
	})

	t.Run("failing store lets requests through", func(t *testing.T) {
		mw := Middleware(&Config{Store: failingStore{}, Rate: 1, Period: time.Minute})

		for range 3 {
			rec, err := serve(t, mw, okHandler)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != http.StatusOK {
				t.Errorf("expected 200, got %d", rec.Code)
			}
		}
	})

	t.Run("custom limit handler", func(t *testing.T) {
		store := NewMemoryStore()
		defer store.Close()
		mw := Middleware(&Config{
			Store:  store,
			Rate:   1,
			Period: time.Minute,
			OnLimitReached: func(c echo.Context) error {
				return c.String(http.StatusServiceUnavailable, "slow down")
			},
		})

		serve(t, mw, okHandler)
		rec, err := serve(t, mw, okHandler)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
	})
}

func TestDefaultKeyGenerator(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.RemoteAddr = "203.0.113.10:4242"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/auth/refresh")

	if got := DefaultKeyGenerator(c); got != "203.0.113.10:/auth/refresh" {
		t.Errorf("unexpected key %q", got)
	}
}

func TestProvideLimiters(t *testing.T) {
	t.Run("disabled passes through", func(t *testing.T) {
		cfg := testutils.GetTestConfig()
		cfg.RateLimit.Enabled = false
		limiters := ProvideLimiters(cfg, failingStore{}, nil)

		for range 20 {
			if _, err := serve(t, limiters.Login, okHandler); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
	})

	t.Run("login limit from config", func(t *testing.T) {
		cfg := testutils.GetTestConfig()
		cfg.RateLimit.LoginPerMinute = 2
		store := NewMemoryStore()
		defer store.Close()
		limiters := ProvideLimiters(cfg, store, nil)

		serve(t, limiters.Login, okHandler)
		serve(t, limiters.Login, okHandler)
		if _, err := serve(t, limiters.Login, okHandler); !isTooMany(err) {
			t.Fatalf("expected 429, got %v", err)
		}
	})
}
