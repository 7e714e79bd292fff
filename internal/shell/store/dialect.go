package store

import (
	"errors"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// =============================================================================
// Dialects
// =============================================================================

// Dialect names a supported database.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

// sqliteParams are appended to every SQLite DSN.
const sqliteParams = "_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"

// ParseDSN picks the dialect for dsn and returns the data source name to
// hand to the driver. postgres:// and postgresql:// URLs select PostgreSQL;
// anything else is a SQLite path or file: URI.
func ParseDSN(dsn string) (Dialect, string) {
	dsn = strings.TrimSpace(dsn)
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DialectPostgres, dsn
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return DialectSQLite, dsn + sep + sqliteParams
}

// =============================================================================
// Constraint Errors
// =============================================================================

// uniqueViolation reports whether err is a unique constraint failure and, if
// so, whether it names the given column (table.column for SQLite, the
// constraint or detail text for PostgreSQL).
func uniqueViolation(err error, column string) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique && sqliteErr.ExtendedCode != sqlite3.ErrConstraintPrimaryKey {
			return false
		}
		return column == "" || strings.Contains(sqliteErr.Error(), column)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code != "23505" {
			return false
		}
		if column == "" {
			return true
		}
		// PostgreSQL names constraints <table>_<column>_key and puts the
		// column in the detail: Key (email)=(...) already exists.
		col := column[strings.LastIndex(column, ".")+1:]
		return strings.Contains(pqErr.Constraint, col) || strings.Contains(pqErr.Detail, "("+col+")")
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed: "+column)
}

// foreignKeyViolation reports whether err is a foreign key failure.
func foreignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23503"
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
