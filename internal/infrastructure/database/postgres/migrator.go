package postgres

import (
	"embed"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/turtacn/substance-resolver/internal/config"
	"github.com/turtacn/substance-resolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/substance-resolver/pkg/errors"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrationStatus is the schema version recorded by migrate.
type MigrationStatus struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

// Migrator applies the embedded schema migrations. It opens its own
// connection so closing it leaves the application pool alone.
type Migrator struct {
	m      *migrate.Migrate
	logger logging.Logger
}

// NewMigrator prepares a migrator for the database described by cfg.
func NewMigrator(cfg config.DatabaseConfig, log logging.Logger) (*Migrator, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to read embedded migrations")
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(cfg))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to initialize migrator")
	}
	return &Migrator{m: m, logger: log.Named("migrator")}, nil
}

// migrateURL swaps the scheme for the one registered by migrate's pgx/v5 driver.
func migrateURL(cfg config.DatabaseConfig) string {
	return "pgx5" + strings.TrimPrefix(BuildDSN(cfg), "postgres")
}

// Up applies every pending migration. An up-to-date schema is not an error.
func (mg *Migrator) Up() error {
	if err := mg.m.Up(); err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to apply migrations")
	}
	st, _ := mg.Status()
	mg.logger.Info("Migrations applied", logging.Uint64("version", uint64(st.Version)))
	return nil
}

// Down rolls back steps migrations.
func (mg *Migrator) Down(steps int) error {
	if steps <= 0 {
		return errors.New(errors.ErrCodeValidation, "steps must be positive")
	}
	if err := mg.m.Steps(-steps); err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to roll back migrations")
	}
	mg.logger.Info("Migrations rolled back", logging.Int("steps", steps))
	return nil
}

// Status returns the current version. A fresh database reports version 0.
func (mg *Migrator) Status() (MigrationStatus, error) {
	v, dirty, err := mg.m.Version()
	if err == migrate.ErrNilVersion {
		return MigrationStatus{}, nil
	}
	if err != nil {
		return MigrationStatus{}, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to read migration version")
	}
	return MigrationStatus{Version: v, Dirty: dirty}, nil
}

// Force sets the version without running migrations, clearing the dirty flag.
func (mg *Migrator) Force(version int) error {
	if err := mg.m.Force(version); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to force migration version")
	}
	mg.logger.Warn("Migration version forced", logging.Int("version", version))
	return nil
}

// Close releases the migrator's connection.
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	if srcErr != nil {
		return srcErr
	}
	return dbErr
}
