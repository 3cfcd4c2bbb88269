package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	mpostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	msqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/mattjoyce/hookbox/internal/storage/migrations"
)

// Migrate applies every pending up migration for backend.
// The migrator is intentionally not closed: closing it would close db.
func Migrate(db *sql.DB, backend Backend) error {
	src, err := iofs.New(migrations.FS, string(backend))
	if err != nil {
		return fmt.Errorf("load %s migrations: %w", backend, err)
	}

	var drv database.Driver
	switch backend {
	case BackendSQLite:
		drv, err = msqlite.WithInstance(db, &msqlite.Config{})
	case BackendPostgres:
		drv, err = mpostgres.WithInstance(db, &mpostgres.Config{})
	default:
		return fmt.Errorf("migrate: unsupported backend %q", backend)
	}
	if err != nil {
		return fmt.Errorf("create %s migration driver: %w", backend, err)
	}

	m, err := migrate.NewWithInstance("iofs", src, string(backend), drv)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
