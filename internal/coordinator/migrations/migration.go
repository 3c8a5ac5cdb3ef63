// Package migrations wraps golang-migrate for applying the coordinator's
// schema to a Postgres database at startup.
package migrations

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	// pgx5 driver registers the "pgx5" scheme for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed *.sql
var fs embed.FS

// RunUp applies every pending UP migration against a pgx5://-scheme dsn.
func RunUp(dsn string, logger *zap.Logger) error {
	source, err := iofs.New(fs, ".")
	if err != nil {
		return fmt.Errorf("migrations: load embedded source: %w", err)
	}

	migrator, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return fmt.Errorf("migrations: init: %w", err)
	}
	defer func() {
		srcErr, dbErr := migrator.Close()
		if srcErr != nil {
			logger.Warn("migration source close failed", zap.Error(srcErr))
		}
		if dbErr != nil {
			logger.Warn("migration db close failed", zap.Error(dbErr))
		}
	}()

	current, dirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("migrations: read version: %w", err)
	}
	if dirty {
		return fmt.Errorf("migrations: database is dirty at version %d, manual intervention required", current)
	}

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("schema already up to date")
			return nil
		}
		return fmt.Errorf("migrations: up: %w", err)
	}

	next, _, _ := migrator.Version()
	logger.Info("schema migrated", zap.Int("from_version", int(current)), zap.Int("to_version", int(next)))
	return nil
}
