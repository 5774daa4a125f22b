// Package database opens the relational store shared by every service and runs
// the embedded schema migrations for the configured driver.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

var (
	ErrDriverUnsupported = errors.New("unsupported database driver")
	ErrDSNRequired       = errors.New("database dsn is required")
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// Querier is satisfied by both DB and Tx so repository helpers can run inside
// or outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps *sql.DB and rewrites '?' placeholders for drivers that need
// numbered parameters.
type DB struct {
	sql    *sql.DB
	driver string
}

// Tx is a transaction bound to the dialect of the DB that started it.
type Tx struct {
	tx     *sql.Tx
	driver string
}

// Options controls how Open connects.
type Options struct {
	Driver          string
	DSN             string
	ConnectAttempts uint
}

// Open connects to the database, retrying the initial ping, and applies
// migrations.
func Open(ctx context.Context, opts Options) (*DB, error) {
	driver := strings.TrimSpace(opts.Driver)
	if driver == "" {
		driver = DriverSQLite
	}
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("%w: %s", ErrDriverUnsupported, driver)
	}
	dsn := strings.TrimSpace(opts.DSN)
	if dsn == "" {
		return nil, ErrDSNRequired
	}
	if driver == DriverSQLite {
		dsn = sqliteDSN(dsn)
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if driver == DriverSQLite {
		// SQLite serialises writers; a single connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(25)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	attempts := opts.ConnectAttempts
	if attempts == 0 {
		attempts = 5
	}
	err = retry.Do(
		func() error { return sqlDB.PingContext(ctx) },
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(500*time.Millisecond),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("[database] ping failed (attempt %d/%d): %v", n+1, attempts, err)
		}),
	)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db := &DB{sql: sqlDB, driver: driver}
	if err := db.migrate(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}

	log.Printf("[database] connected (driver=%s)", driver)
	return db, nil
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on&_busy_timeout=5000"
}

func (db *DB) migrate(ctx context.Context) error {
	dir := "migrations/sqlite"
	dialect := "sqlite3"
	if db.driver == DriverPostgres {
		dir = "migrations/postgres"
		dialect = "postgres"
	}

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db.sql, dir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close releases the underlying pool.
func (db *DB) Close() error {
	return db.sql.Close()
}

// Driver reports the database/sql driver name in use.
func (db *DB) Driver() string {
	return db.driver
}

func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.sql.ExecContext(ctx, rebind(db.driver, query), args...)
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.sql.QueryContext(ctx, rebind(db.driver, query), args...)
}

func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.sql.QueryRowContext(ctx, rebind(db.driver, query), args...)
}

// WithTx runs fn inside a transaction, committing when fn returns nil.
func (db *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	tx := &Tx{tx: sqlTx, driver: db.driver}
	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Printf("[database] rollback failed: %v", rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (tx *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return tx.tx.ExecContext(ctx, rebind(tx.driver, query), args...)
}

func (tx *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return tx.tx.QueryContext(ctx, rebind(tx.driver, query), args...)
}

func (tx *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return tx.tx.QueryRowContext(ctx, rebind(tx.driver, query), args...)
}

// rebind converts '?' placeholders into $1..$n for postgres.
func rebind(driver, query string) string {
	if driver != DriverPostgres || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for _, r := range query {
		switch {
		case r == '\'':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsUniqueViolation reports whether err was raised by a UNIQUE or PRIMARY KEY
// constraint, for either supported driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	return false
}

// IsCheckViolation reports whether err was raised by a CHECK constraint.
func IsCheckViolation(err error) bool {
	if err == nil {
		return false
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintCheck
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23514"
	}

	return false
}
