package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Open connects to the database described by databaseURL and brings its
// schema up to date.
func Open(ctx context.Context, databaseURL string) (*sqlx.DB, Target, error) {
	target, err := ParseDatabaseURL(databaseURL)
	if err != nil {
		return nil, Target{}, err
	}

	var db *sqlx.DB
	switch target.Backend {
	case BackendSQLite:
		db, err = OpenSQLite(ctx, target.Path)
	case BackendPostgres:
		db, err = OpenPostgres(ctx, target.DSN)
	default:
		err = fmt.Errorf("unsupported backend %q", target.Backend)
	}
	if err != nil {
		return nil, target, err
	}

	if err := Migrate(db.DB, target.Backend); err != nil {
		_ = db.Close()
		return nil, target, err
	}
	return db, target, nil
}
