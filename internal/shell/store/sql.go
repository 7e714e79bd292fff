package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Rebind(query string) string
}

// =============================================================================
// SQLStore
// =============================================================================

// SQLStore implements Store on SQLite or PostgreSQL. Inside WithTx the same
// type runs every operation on the open transaction.
type SQLStore struct {
	db      *sqlx.DB
	exec    executor
	tx      *sqlx.Tx
	dialect Dialect
}

// New opens the database named by dsn and runs migrations.
func New(dsn string) (*SQLStore, error) {
	dialect, source := ParseDSN(dsn)

	// Open database connection
	db, err := sqlx.Open(string(dialect), source)
	if err != nil {
		return nil, NewStoreError("New", "", "", "failed to open database", ErrConnectionFailed)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("New", "", "", fmt.Sprintf("failed to ping database: %v", err), ErrConnectionFailed)
	}

	// Run migrations
	if err := runMigrations(db.DB, dialect); err != nil {
		db.Close()
		return nil, NewStoreError("New", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLStore{db: db, exec: db, dialect: dialect}, nil
}

// Dialect returns the database the store talks to.
func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

// Ping checks that the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return NewStoreError("Ping", "", "", err.Error(), ErrConnectionFailed)
	}
	return nil
}

// Close closes the database connection. It is a no-op inside a transaction.
func (s *SQLStore) Close() error {
	if s.tx != nil {
		return nil
	}
	return s.db.Close()
}

// =============================================================================
// Transaction Support
// =============================================================================

// WithTx runs fn with a Store bound to a single transaction. Nested calls
// join the outer transaction.
func (s *SQLStore) WithTx(ctx context.Context, fn func(Store) error) error {
	return s.atomic(ctx, "WithTx", func(tx *SQLStore) error {
		return fn(tx)
	})
}

func (s *SQLStore) atomic(ctx context.Context, op string, fn func(*SQLStore) error) error {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError(op, "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &SQLStore{db: s.db, exec: tx, tx: tx, dialect: s.dialect}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError(op, "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError(op, "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func formatNullTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseNullTime(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t := parseTime(*s)
	return &t
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullInt(n *int) *int64 {
	if n == nil {
		return nil
	}
	v := int64(*n)
	return &v
}

func derefInt(n *int64) *int {
	if n == nil {
		return nil
	}
	v := int(*n)
	return &v
}

func affected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return -1
	}
	return n
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
