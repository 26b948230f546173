package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig       `envPrefix:"APP_"`
	Server    ServerConfig    `envPrefix:"SERVER_"`
	Log       LogConfig       `envPrefix:"LOG_"`
	Database  DatabaseConfig  `envPrefix:"DATABASE_"`
	Auth      AuthConfig      `envPrefix:"AUTH_"`
	Storage   StorageConfig   `envPrefix:"STORAGE_"`
	Redis     RedisConfig     `envPrefix:"REDIS_"`
	Replay    ReplayConfig    `envPrefix:"REPLAY_"`
	Metrics   MetricsConfig   `envPrefix:"METRICS_"`
	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`
	CSRF      CSRFConfig      `envPrefix:"CSRF_"`
}

type AppConfig struct {
	Name        string `env:"NAME" envDefault:"tokenchain"`
	Environment string `env:"ENVIRONMENT" envDefault:"production"`
}

type ServerConfig struct {
	Port              string        `env:"PORT" envDefault:"8080"`
	Host              string        `env:"HOST" envDefault:"localhost"`
	TrustedProxies    []string      `env:"TRUSTED_PROXIES" envSeparator:","`
	RefreshCookieName string        `env:"REFRESH_COOKIE_NAME" envDefault:"__Host-rt"`
	RefreshCookiePath string        `env:"REFRESH_COOKIE_PATH" envDefault:"/"`
	CookieSecure      bool          `env:"COOKIE_SECURE" envDefault:"true"`
	SecurityHeaders   bool          `env:"SECURITY_HEADERS" envDefault:"true"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	OpenAPIEnabled    bool          `env:"OPENAPI_ENABLED" envDefault:"true"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver       string `env:"DRIVER" envDefault:"sqlite"`
	DSN          string `env:"DSN" envDefault:"tokenchain.db"`
	Migrate      string `env:"MIGRATE" envDefault:"auto"`
	MaxOpenConns int    `env:"MAX_OPEN_CONNS" envDefault:"0"`
	MaxIdleConns int    `env:"MAX_IDLE_CONNS" envDefault:"0"`
}

// AuthConfig carries every token policy knob. It is built once at startup and
// handed to the key provider, the codec and the rotation engine.
type AuthConfig struct {
	AccessTTL      time.Duration `env:"ACCESS_TTL" envDefault:"15m"`
	RefreshTTL     time.Duration `env:"REFRESH_TTL" envDefault:"168h"`
	PrivateKeyPath string        `env:"PRIVATE_KEY_PATH" envDefault:"secrets/jwt_private.pem"`
	PublicKeyPath  string        `env:"PUBLIC_KEY_PATH" envDefault:"secrets/jwt_public.pem"`
	Algorithm      string        `env:"ALGORITHM" envDefault:"RS256"`
	Leeway         time.Duration `env:"LEEWAY" envDefault:"0s"`
	ReusePolicy    ReusePolicy   `env:"REUSE_POLICY" envDefault:"reject"`
}

type ReusePolicy string

const (
	// ReuseReject only rejects a replayed rotated token.
	ReuseReject ReusePolicy = "reject"
	// ReuseRevokeAll also revokes every active session of the subject.
	ReuseRevokeAll ReusePolicy = "revoke_all"
)

type StorageConfig struct {
	RetryAttempts  int           `env:"RETRY_ATTEMPTS" envDefault:"3"`
	RetryBaseDelay time.Duration `env:"RETRY_BASE_DELAY" envDefault:"25ms"`
	RetryMaxDelay  time.Duration `env:"RETRY_MAX_DELAY" envDefault:"250ms"`
}

type RedisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type ReplayConfig struct {
	Enabled   bool          `env:"ENABLED" envDefault:"false"`
	KeyPrefix string        `env:"KEY_PREFIX" envDefault:"tokenchain:reuse:"`
	TTL       time.Duration `env:"TTL" envDefault:"24h"`
}

type MetricsConfig struct {
	Enabled   bool   `env:"ENABLED" envDefault:"true"`
	Path      string `env:"PATH" envDefault:"/metrics"`
	Namespace string `env:"NAMESPACE" envDefault:"tokenchain"`
}

type CountingMode string

const (
	CountAll      CountingMode = "all"
	CountFailures CountingMode = "failures"
	CountSuccess  CountingMode = "success"
)

type RateLimitConfig struct {
	Enabled          bool         `env:"ENABLED" envDefault:"true"`
	Store            string       `env:"STORE" envDefault:"memory"`
	LoginPerMinute   int          `env:"LOGIN_PER_MINUTE" envDefault:"10"`
	RefreshPerMinute int          `env:"REFRESH_PER_MINUTE" envDefault:"30"`
	CountMode        CountingMode `env:"COUNT_MODE" envDefault:"all"`
	KeyPrefix        string       `env:"KEY_PREFIX" envDefault:"tokenchain:ratelimit:"`
}

type CSRFConfig struct {
	Enabled     bool   `env:"ENABLED" envDefault:"false"`
	TokenLength uint8  `env:"TOKEN_LENGTH" envDefault:"32"`
	TokenLookup string `env:"TOKEN_LOOKUP" envDefault:"header:X-CSRF-Token"`
	CookieName  string `env:"COOKIE_NAME" envDefault:"__Host-csrf"`
	CookiePath  string `env:"COOKIE_PATH" envDefault:"/"`
}

func LoadConfig(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	if err := env.Parse(cfg); err != nil {
		return err
	}

	if c, ok := cfg.(*Config); ok {
		return Validate(c)
	}

	return nil
}

func Validate(cfg *Config) error {
	if err := validateAuthConfig(&cfg.Auth); err != nil {
		return err
	}
	if err := validateStorageConfig(&cfg.Storage); err != nil {
		return err
	}
	if err := validateDatabaseConfig(&cfg.Database); err != nil {
		return err
	}
	if err := validateRateLimitConfig(&cfg.RateLimit); err != nil {
		return err
	}
	return nil
}

func validateAuthConfig(cfg *AuthConfig) error {
	if cfg.Algorithm != "RS256" {
		return fmt.Errorf("unsupported token algorithm %q: only RS256 is allowed", cfg.Algorithm)
	}

	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}

	if cfg.AccessTTL >= cfg.RefreshTTL {
		return errors.New("access token TTL must be shorter than refresh token TTL")
	}

	if cfg.PrivateKeyPath == "" || cfg.PublicKeyPath == "" {
		return errors.New("private and public key paths are required")
	}

	if cfg.Leeway < 0 {
		return errors.New("clock leeway must not be negative")
	}

	switch cfg.ReusePolicy {
	case ReuseReject, ReuseRevokeAll:
	default:
		return fmt.Errorf("invalid reuse policy %q: must be one of reject, revoke_all", cfg.ReusePolicy)
	}

	return nil
}

func validateStorageConfig(cfg *StorageConfig) error {
	if cfg.RetryAttempts < 1 || cfg.RetryAttempts > 5 {
		return errors.New("storage retry attempts must be between 1 and 5")
	}

	if cfg.RetryBaseDelay <= 0 {
		return errors.New("storage retry base delay must be positive")
	}

	if cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		return errors.New("storage retry max delay must not be below the base delay")
	}

	return nil
}

func validateDatabaseConfig(cfg *DatabaseConfig) error {
	switch cfg.Driver {
	case "sqlite", "postgres", "postgresql", "mysql":
	default:
		return fmt.Errorf("unsupported database driver: %s (supported: sqlite, postgres, mysql)", cfg.Driver)
	}

	switch cfg.Migrate {
	case "auto", "goose", "none":
	default:
		return fmt.Errorf("invalid migration mode %q: must be one of auto, goose, none", cfg.Migrate)
	}

	return nil
}

func validateRateLimitConfig(cfg *RateLimitConfig) error {
	switch cfg.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported rate limit store %q (supported: memory, redis)", cfg.Store)
	}

	switch cfg.CountMode {
	case CountAll, CountFailures, CountSuccess:
	default:
		return fmt.Errorf("invalid rate limit count mode %q", cfg.CountMode)
	}

	return nil
}
