// Package sqlite provides the local, single-file backend.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/database"
)

func init() {
	database.Register(database.DriverSQLite, func(ctx context.Context, cfg database.Config) (database.Connection, error) {
		conn, err := Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return conn, nil
	})
}

const pragmas = "_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

// Connection is a database.Connection backed by a SQLite file.
type Connection struct {
	database.SQLExecutor
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path.
// SQLite has a single writer, so the pool is pinned to one connection and
// every transaction is serialized behind it.
func Open(ctx context.Context, path string) (*Connection, error) {
	if path == "" {
		path = database.DefaultSQLitePath()
	}
	if path != ":memory:" {
		if err := database.EnsureDirectory(path); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}

	db, err := sql.Open("sqlite", path+sep+pragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	return &Connection{SQLExecutor: database.SQLExecutor{Q: db}, db: db}, nil
}

// DB exposes the underlying handle for migrations and tests.
func (c *Connection) DB() *sql.DB {
	return c.db
}

func (c *Connection) Driver() database.Driver { return database.DriverSQLite }

func (c *Connection) Close() error { return c.db.Close() }

func (c *Connection) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }

// BeginTx starts a transaction.
func (c *Connection) BeginTx(ctx context.Context) (database.Transaction, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &transaction{SQLExecutor: database.SQLExecutor{Q: tx}, tx: tx}, nil
}

type transaction struct {
	database.SQLExecutor
	tx *sql.Tx
}

func (t *transaction) Commit(context.Context) error   { return t.tx.Commit() }
func (t *transaction) Rollback(context.Context) error { return t.tx.Rollback() }
