package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Service is a nil-safe wrapper around a zap logger. A nil *Service drops
// every entry, which lets components treat logging as optional.
type Service struct {
	logger *zap.Logger
}

// Config selects the zap preset and the fields stamped on every entry.
// Development environments get the human readable console preset.
type Config struct {
	Level       string
	Format      string
	OutputPath  string
	Name        string
	Environment string
}

func NewService(cfg Config) (*Service, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	zapConfig := zap.NewProductionConfig()
	if cfg.Environment == "development" {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	switch cfg.Format {
	case "console":
		zapConfig.Encoding = "console"
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case "json":
		zapConfig.Encoding = "json"
		zapConfig.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	case "":
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.Format)
	}

	if cfg.OutputPath != "" && cfg.OutputPath != "stdout" {
		zapConfig.OutputPaths = []string{cfg.OutputPath}
	}

	var fields []zap.Field
	if cfg.Name != "" {
		fields = append(fields, zap.String("service", cfg.Name))
	}
	if cfg.Environment != "" {
		fields = append(fields, zap.String("env", cfg.Environment))
	}

	logger, err := zapConfig.Build(zap.Fields(fields...))
	if err != nil {
		return nil, err
	}

	return &Service{logger: logger}, nil
}

// NewFromZap wraps an existing zap logger.
func NewFromZap(logger *zap.Logger) *Service {
	return &Service{logger: logger}
}

func (s *Service) Logger() *zap.Logger {
	if s != nil {
		return s.logger
	}
	return nil
}

// With returns a child logger that adds fields to every entry.
func (s *Service) With(fields ...zap.Field) *Service {
	if s == nil || s.logger == nil {
		return s
	}
	return &Service{logger: s.logger.With(fields...)}
}

func (s *Service) Named(name string) *Service {
	if s == nil || s.logger == nil {
		return s
	}
	return &Service{logger: s.logger.Named(name)}
}

func (s *Service) Debug(msg string, fields ...zap.Field) {
	if s != nil && s.logger != nil {
		s.logger.Debug(msg, fields...)
	}
}

func (s *Service) Info(msg string, fields ...zap.Field) {
	if s != nil && s.logger != nil {
		s.logger.Info(msg, fields...)
	}
}

func (s *Service) Warn(msg string, fields ...zap.Field) {
	if s != nil && s.logger != nil {
		s.logger.Warn(msg, fields...)
	}
}

func (s *Service) Error(msg string, fields ...zap.Field) {
	if s != nil && s.logger != nil {
		s.logger.Error(msg, fields...)
	}
}

func (s *Service) Sync() error {
	if s != nil && s.logger != nil {
		return s.logger.Sync()
	}
	return nil
}
