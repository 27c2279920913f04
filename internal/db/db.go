// Package db opens and manages the SQLite/SQLCipher database that backs the
// hierarchy, sharing, cascade and access packages. All top-level mutations run
// through InTx; store code is written against Queryer so the same functions
// compose inside and outside a transaction.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
)

const (
	// MaxOpenConns is deliberately low: SQLite is single-writer and
	// _txlock=immediate already serializes writing transactions.
	MaxOpenConns = 4

	// MaxIdleConns keeps one warm connection around between requests.
	MaxIdleConns = 1
)

// Queryer is satisfied by both *sqlx.DB and *sqlx.Tx. Store functions take a
// Queryer so callers decide the transaction boundary.
type Queryer = sqlx.ExtContext

var masterKeyPattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// DB wraps the sqlx connection pool for one notes database.
type DB struct {
	pool *sqlx.DB
}

// Open opens (creating if needed) the database at path. masterKeyHex, when
// non-empty, must be 64 hex characters and enables SQLCipher encryption.
func Open(path, masterKeyHex string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("db: path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("db: create data directory: %w", err)
		}
	}
	dsn, err := buildDSN("file:"+path, masterKeyHex, true)
	if err != nil {
		return nil, err
	}
	return open(dsn)
}

// OpenInMemory opens a private in-memory database, optionally encrypted.
// name keeps concurrently open test databases apart.
func OpenInMemory(name, masterKeyHex string) (*DB, error) {
	if name == "" {
		name = "devnotes-mem"
	}
	dsn, err := buildDSN(fmt.Sprintf("file:%s?mode=memory&cache=shared", url.PathEscape(name)), masterKeyHex, false)
	if err != nil {
		return nil, err
	}
	d, err := open(dsn)
	if err != nil {
		return nil, err
	}
	// cache=shared keeps the in-memory database alive across pool
	// connections, but all of them must stay open on the same schema.
	d.pool.SetMaxOpenConns(1)
	d.pool.SetMaxIdleConns(1)
	return d, nil
}

func buildDSN(base, masterKeyHex string, fileBacked bool) (string, error) {
	params := []string{
		"_foreign_keys=on",
		"_txlock=immediate",
		"_busy_timeout=5000",
	}
	if fileBacked {
		params = append(params, "_journal_mode=WAL")
	}
	if masterKeyHex != "" {
		if !masterKeyPattern.MatchString(masterKeyHex) {
			return "", fmt.Errorf("db: master key must be 64 hex characters")
		}
		params = append(params, fmt.Sprintf("_pragma_key=x'%s'", masterKeyHex))
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + strings.Join(params, "&"), nil
}

func open(dsn string) (*DB, error) {
	pool, err := sqlx.Open(SQLiteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("db: open database: %w", err)
	}
	pool.SetMaxOpenConns(MaxOpenConns)
	pool.SetMaxIdleConns(MaxIdleConns)

	// A plain ping succeeds even with a wrong SQLCipher key; reading the
	// schema version forces an actual page decrypt.
	var version int
	if err := pool.QueryRow("PRAGMA schema_version").Scan(&version); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db: verify database readability: %w", err)
	}
	return &DB{pool: pool}, nil
}

// ApplySchema creates all tables and indexes if they do not exist yet.
func (d *DB) ApplySchema(ctx context.Context) error {
	if _, err := d.pool.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("db: apply schema: %w", err)
	}
	return nil
}

// Pool returns the underlying sqlx pool for read-only queries outside a
// transaction.
func (d *DB) Pool() *sqlx.DB {
	return d.pool
}

// InTx runs fn inside a single transaction and commits iff fn returns nil.
// The DSN's _txlock=immediate takes the write lock at BEGIN, so concurrent
// writers queue up instead of failing at first write.
func (d *DB) InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := d.pool.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db: begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return fmt.Errorf("db: rollback after %w: %v", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("db: commit transaction: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (d *DB) Close() error {
	return d.pool.Close()
}
