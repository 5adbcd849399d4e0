package database

import (
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// RunMigrations applies pending schema migrations from migrationsPath.
// Already-applied versions are skipped, so every startup can call it.
func RunMigrations(db *sql.DB, migrationsPath string, logger *zap.Logger) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migration instance: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn("Migration cleanup reported errors",
				zap.NamedError("source", srcErr),
				zap.NamedError("database", dbErr))
		}
	}()

	switch err := m.Up(); err {
	case nil:
		version, _, _ := m.Version()
		logger.Info("Schema migrated", zap.Uint("version", version))
		return nil
	case migrate.ErrNoChange:
		logger.Info("Schema already current")
		return nil
	default:
		return fmt.Errorf("apply migrations: %w", err)
	}
}
