package database

import (
	"context"
	"fmt"

	"github.com/tech-arch1tect/tokenchain/config"
	"github.com/tech-arch1tect/tokenchain/services/logging"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type ModelsOption struct {
	models []any
}

func WithModels(models ...any) *ModelsOption {
	return &ModelsOption{models: models}
}

func ProvideDatabase(cfg config.Config, modelsOpt *ModelsOption, logger *logging.Service) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Database.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.Database.DSN)
	case "postgres", "postgresql":
		dialector = postgres.Open(cfg.Database.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: sqlite, postgres, mysql)", cfg.Database.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}

	maxOpen := cfg.Database.MaxOpenConns
	if maxOpen == 0 && cfg.Database.Driver == "sqlite" {
		// sqlite has a single writer
		maxOpen = 1
	}
	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if cfg.Database.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}

	switch cfg.Database.Migrate {
	case "auto":
		if modelsOpt != nil && len(modelsOpt.models) > 0 {
			if err := db.AutoMigrate(modelsOpt.models...); err != nil {
				return nil, fmt.Errorf("failed to auto-migrate models: %w", err)
			}
		}
	case "goose":
		if err := RunMigrations(context.Background(), sqlDB, cfg.Database.Driver); err != nil {
			return nil, err
		}
	}

	logger.Info("database connected",
		zap.String("driver", cfg.Database.Driver),
		zap.String("migrate", cfg.Database.Migrate))

	return db, nil
}
