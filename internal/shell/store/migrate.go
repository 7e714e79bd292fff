package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

func migrationDir(d Dialect) string {
	if d == DialectPostgres {
		return "migrations/postgres"
	}
	return "migrations/sqlite"
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB, d Dialect) error {
	var (
		driver database.Driver
		err    error
	)
	switch d {
	case DialectPostgres:
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	default:
		driver, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	}
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, migrationDir(d))
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, string(d), driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// SchemaVersion returns the applied migration version and whether the last
// migration left the schema dirty.
func (s *SQLStore) SchemaVersion(ctx context.Context) (uint, bool, error) {
	var row struct {
		Version int64 `db:"version"`
		Dirty   bool  `db:"dirty"`
	}
	err := s.db.GetContext(ctx, &row, `SELECT version, dirty FROM schema_migrations LIMIT 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, NewStoreError("SchemaVersion", "", "", err.Error(), ErrMigrationFailed)
	}
	return uint(row.Version), row.Dirty, nil
}
