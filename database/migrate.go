package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*/*.sql
var migrations embed.FS

// goose keeps its base FS and dialect in package state.
var gooseMu sync.Mutex

var gooseUp = goose.UpContext

func gooseDialect(driver string) (string, string, error) {
	switch driver {
	case "sqlite":
		return "sqlite3", "sqlite", nil
	case "postgres", "postgresql":
		return "postgres", "postgres", nil
	case "mysql":
		return "mysql", "mysql", nil
	default:
		return "", "", fmt.Errorf("unsupported database driver: %s (supported: sqlite, postgres, mysql)", driver)
	}
}

// RunMigrations applies the embedded SQL migrations for driver.
func RunMigrations(ctx context.Context, db *sql.DB, driver string) error {
	dialect, dir, err := gooseDialect(driver)
	if err != nil {
		return err
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := gooseUp(ctx, db, path.Join("migrations", dir)); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
