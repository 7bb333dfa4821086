package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// RunMigrations brings a Postgres database to the embedded schema while holding
// the migration lock, then stamps schema_state for the serve-time gate.
// Cancelling ctx stops golang-migrate after the migration in flight.
func RunMigrations(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	if db == nil {
		return errors.New("migrate: nil database handle")
	}

	target, err := LatestMigrationVersion()
	if err != nil {
		return err
	}
	checksum, err := MigrationsChecksum()
	if err != nil {
		return err
	}

	unlock, err := acquireAdvisoryLock(ctx, db)
	if err != nil {
		return err
	}
	defer func() {
		if err := unlock(context.Background()); err != nil {
			log.Warn("migration lock release failed", zap.Error(err))
		}
	}()

	m, err := newMigrator(db)
	if err != nil {
		return err
	}

	from, err := cleanVersion(m)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate: up from %d: %w", from, err)
	}

	to, err := cleanVersion(m)
	if err != nil {
		return err
	}
	if to != target {
		return fmt.Errorf("migrate: database at version %d, binary expects %d", to, target)
	}
	log.Info("schema migrated", zap.Uint("from", from), zap.Uint("to", to))

	return recordSchemaState(ctx, db, strconv.FormatUint(uint64(to), 10), checksum, time.Now())
}

func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("migrate: open embedded files: %w", err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("migrate: source: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("migrate: postgres driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("migrate: init: %w", err)
	}
	return m, nil
}

// cleanVersion returns the applied version, zero on an empty database, and
// refuses to continue past a half-applied migration.
func cleanVersion(m *migrate.Migrate) (uint, error) {
	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("migrate: read version: %w", err)
	case dirty:
		return 0, fmt.Errorf("migrate: version %d is dirty, fix it with migrate force", version)
	}
	return version, nil
}
