package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tech-arch1tect/tokenchain/config"
	"github.com/tech-arch1tect/tokenchain/internal/options"
	"github.com/tech-arch1tect/tokenchain/server"
	"github.com/tech-arch1tect/tokenchain/services/logging"
	"github.com/tech-arch1tect/tokenchain/services/rotation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const stopTimeout = 30 * time.Second

type App struct {
	fx     *fx.App
	config *config.Config
	logger *logging.Service
	engine *rotation.Engine
	db     *gorm.DB
	server *server.Server
}

type populated struct {
	fx.In

	Config *config.Config
	Logger *logging.Service
	Engine *rotation.Engine
	DB     *gorm.DB
	Server *server.Server `optional:"true"`
}

// New builds the application graph without starting it. Invalid config, bad
// keys and database errors are reported here.
func New(opts ...options.Option) (*App, error) {
	a := &App{}

	fxOptions := buildFxOptions(options.Apply(opts...))
	fxOptions = append(fxOptions, fx.Invoke(func(p populated) {
		a.config = p.Config
		a.logger = p.Logger
		a.engine = p.Engine
		a.db = p.DB
		a.server = p.Server
	}))

	a.fx = fx.New(fxOptions...)
	if err := a.fx.Err(); err != nil {
		return nil, fmt.Errorf("failed to build application: %w", err)
	}

	return a, nil
}

func (a *App) Start(ctx context.Context) error {
	return a.fx.Start(ctx)
}

func (a *App) Stop(ctx context.Context) error {
	return a.fx.Stop(ctx)
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	startCtx, cancel := context.WithTimeout(context.Background(), a.fx.StartTimeout())
	defer cancel()

	if err := a.Start(startCtx); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	a.logger.Info("received shutdown signal, stopping gracefully", zap.String("signal", sig.String()))

	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()

	if err := a.Stop(stopCtx); err != nil {
		a.logger.Error("failed to stop application gracefully", zap.Error(err))
		return err
	}

	return nil
}

func (a *App) Engine() *rotation.Engine {
	return a.engine
}

// Server is nil when the HTTP surface is disabled.
func (a *App) Server() *server.Server {
	return a.server
}

func (a *App) DB() *gorm.DB {
	return a.db
}

func (a *App) Logger() *logging.Service {
	return a.logger
}

func (a *App) Config() *config.Config {
	return a.config
}
