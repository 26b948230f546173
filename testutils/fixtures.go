package testutils

import (
	"time"

	"github.com/tech-arch1tect/tokenchain/config"
)

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        "Test App",
			Environment: "test",
		},
		Server: config.ServerConfig{
			Port:              "8080",
			Host:              "localhost",
			RefreshCookieName: "__Host-rt",
			RefreshCookiePath: "/",
			CookieSecure:      true,
			SecurityHeaders:   true,
			ShutdownTimeout:   time.Second,
			OpenAPIEnabled:    true,
		},
		Log: config.LogConfig{
			Level:  "debug",
			Format: "json",
			Output: "stdout",
		},
		Database: config.DatabaseConfig{
			Driver:  "sqlite",
			DSN:     ":memory:",
			Migrate: "auto",
		},
		Auth: config.AuthConfig{
			AccessTTL:      15 * time.Minute,
			RefreshTTL:     7 * 24 * time.Hour,
			PrivateKeyPath: "secrets/jwt_private.pem",
			PublicKeyPath:  "secrets/jwt_public.pem",
			Algorithm:      "RS256",
			ReusePolicy:    config.ReuseReject,
		},
		Storage: config.StorageConfig{
			RetryAttempts:  3,
			RetryBaseDelay: time.Millisecond,
			RetryMaxDelay:  5 * time.Millisecond,
		},
		Redis: config.RedisConfig{
			Addr: "localhost:6379",
		},
		Replay: config.ReplayConfig{
			KeyPrefix: "test:reuse:",
			TTL:       time.Hour,
		},
		Metrics: config.MetricsConfig{
			Enabled:   true,
			Path:      "/metrics",
			Namespace: "tokenchain_test",
		},
		RateLimit: config.RateLimitConfig{
			Enabled:          true,
			Store:            "memory",
			LoginPerMinute:   10,
			RefreshPerMinute: 30,
			CountMode:        config.CountAll,
			KeyPrefix:        "test:ratelimit:",
		},
		CSRF: config.CSRFConfig{
			Enabled:     false,
			TokenLength: 32,
			TokenLookup: "header:X-CSRF-Token",
			CookieName:  "__Host-csrf",
			CookiePath:  "/",
		},
	}
}

var TestSubjects = struct {
	Alice uint
	Bob   uint
}{
	Alice: 42,
	Bob:   7,
}

var TestClients = struct {
	UserAgent string
	ClientIP  string
}{
	UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	ClientIP:  "203.0.113.10",
}
