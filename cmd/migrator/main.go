package main

import (
	"embed"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/lbianlbian/progv2/internal/shared/config"
	"github.com/lbianlbian/progv2/internal/shared/db"
	"github.com/lbianlbian/progv2/internal/shared/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	cfg := config.Load()
	log, _ := logger.New("migrator", cfg.Env)
	defer log.Sync()

	if err := migrateAll(cfg); err != nil {
		log.Error("migration run failed", zap.Error(err))
		os.Exit(1)
	}
	log.Info("migration run finished successfully")
}

func migrateAll(cfg config.Config) error {
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	driver, err := postgres.WithInstance(pg, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("init postgres driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("m.Up: %w", err)
	}
	return nil
}
