package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/tokenchain/config"
	"github.com/tech-arch1tect/tokenchain/internal/options"
	"github.com/tech-arch1tect/tokenchain/services/rotation"
	"github.com/tech-arch1tect/tokenchain/testutils"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func createTestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := testutils.GetTestConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = "0"
	cfg.Log.Level = "error"
	cfg.Database.DSN = "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	cfg.Auth.PrivateKeyPath, cfg.Auth.PublicKeyPath = testutils.GenerateTestKeys(t)
	return cfg
}

func startApp(t *testing.T, opts ...options.Option) *App {
	t.Helper()

	application, err := New(opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, application.Start(ctx))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, application.Stop(ctx))
	})

	return application
}

func TestNew(t *testing.T) {
	t.Run("rejects invalid config", func(t *testing.T) {
		cfg := createTestConfig(t)
		cfg.Auth.Algorithm = "HS256"

		_, err := New(options.WithConfig(cfg))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "RS256")
	})

	t.Run("fails on missing keys", func(t *testing.T) {
		cfg := createTestConfig(t)
		cfg.Auth.PrivateKeyPath = "/nonexistent/jwt_private.pem"

		_, err := New(options.WithConfig(cfg))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "/nonexistent/jwt_private.pem")
	})

	t.Run("exposes the graph", func(t *testing.T) {
		cfg := createTestConfig(t)

		application, err := New(options.WithConfig(cfg))

		require.NoError(t, err)
		assert.Same(t, cfg, application.Config())
		assert.NotNil(t, application.Engine())
		assert.NotNil(t, application.DB())
		assert.NotNil(t, application.Server())
		assert.NotNil(t, application.Logger())
	})
}

func TestApp_ServesAuthRoutes(t *testing.T) {
	authenticator := &testutils.MockAuthenticator{}
	authenticator.On("Authenticate", mock.Anything, "alice", "secret").Return(uint(42), nil)

	application := startApp(t,
		options.WithConfig(createTestConfig(t)),
		options.WithAuthenticator(authenticator))

	base := fmt.Sprintf("http://%s", application.Server().Addr())

	resp, err := http.Post(base+"/auth/login", "application/json",
		strings.NewReader(`{"identifier":"alice","password":"secret"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "bearer", body["token_type"])

	var refresh *http.Cookie
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "__Host-rt" {
			refresh = cookie
		}
	}
	require.NotNil(t, refresh)

	sessions, err := application.Engine().Sessions(context.Background(), 42)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)

	docResp, err := http.Get(base + "/openapi.json")
	require.NoError(t, err)
	defer docResp.Body.Close()
	assert.Equal(t, http.StatusOK, docResp.StatusCode)

	var doc struct {
		Paths map[string]any `json:"paths"`
	}
	require.NoError(t, json.NewDecoder(docResp.Body).Decode(&doc))
	assert.Contains(t, doc.Paths, "/auth/refresh")

	metricsResp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	metricsResp.Body.Close()
	assert.Equal(t, http.StatusOK, metricsResp.StatusCode)
}

func TestApp_WithoutHTTP(t *testing.T) {
	application := startApp(t,
		options.WithConfig(createTestConfig(t)),
		options.WithoutHTTP())

	assert.Nil(t, application.Server())

	pair, err := application.Engine().Login(context.Background(), 7, rotation.ClientInfo{})
	require.NoError(t, err)

	_, err = application.Engine().Refresh(context.Background(), pair.RefreshToken, rotation.ClientInfo{})
	require.NoError(t, err)
}

func TestApp_WithFxOptions(t *testing.T) {
	var db *gorm.DB

	application := startApp(t,
		options.WithConfig(createTestConfig(t)),
		options.WithoutHTTP(),
		options.WithFxOptions(fx.Invoke(func(d *gorm.DB) { db = d })))

	assert.Same(t, application.DB(), db)
	assert.True(t, db.Migrator().HasTable("refresh_tokens"))
}
