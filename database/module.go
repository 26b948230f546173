package database

import (
	"context"

	"github.com/tech-arch1tect/tokenchain/config"
	"github.com/tech-arch1tect/tokenchain/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Options(
	fx.Provide(ProvideDatabaseFx),
	fx.Provide(ProvideRedis),
)

type DatabaseParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.Config
	Models    *ModelsOption `optional:"true"`
	Logger    *logging.Service
}

func ProvideDatabaseFx(p DatabaseParams) (*gorm.DB, error) {
	db, err := ProvideDatabase(*p.Config, p.Models, p.Logger)
	if err != nil {
		return nil, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}
