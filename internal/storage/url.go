package storage

import (
	"fmt"
	"strings"
)

// Backend names a supported database engine.
type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// MemoryPath is the SQLite path for a private in-memory database.
const MemoryPath = ":memory:"

// Target is a parsed DATABASE_URL.
type Target struct {
	Backend Backend
	// Path is the SQLite file path (or MemoryPath). Empty for postgres.
	Path string
	// DSN is the driver connection string.
	DSN string
}

// ParseDatabaseURL accepts sqlite:///relative/path, sqlite:////absolute/path,
// sqlite://:memory: and postgres:// or postgresql:// URLs.
func ParseDatabaseURL(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "sqlite://"+MemoryPath:
		return Target{Backend: BackendSQLite, Path: MemoryPath, DSN: MemoryPath}, nil
	case strings.HasPrefix(raw, "sqlite:///"):
		path := strings.TrimPrefix(raw, "sqlite:///")
		if path == "" {
			return Target{}, fmt.Errorf("database url %q: missing sqlite path", raw)
		}
		return Target{Backend: BackendSQLite, Path: path, DSN: path}, nil
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return Target{Backend: BackendPostgres, DSN: raw}, nil
	default:
		return Target{}, fmt.Errorf("database url %q: unsupported scheme (want sqlite:// or postgres://)", raw)
	}
}

// String renders the target without credentials.
func (t Target) String() string {
	if t.Backend == BackendSQLite {
		return "sqlite:" + t.Path
	}
	dsn := t.DSN
	if at := strings.LastIndex(dsn, "@"); at >= 0 {
		if scheme := strings.Index(dsn, "://"); scheme >= 0 && scheme < at {
			dsn = dsn[:scheme+3] + "***" + dsn[at:]
		}
	}
	return dsn
}
