package database

import (
	"context"
	"database/sql"
)

// Row is the single-row result of either driver.
type Row interface {
	Scan(dest ...any) error
}

// Rows is a multi-row cursor of either driver.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

// Result reports what an Exec changed.
type Result interface {
	RowsAffected() (int64, error)
}

// Executor is what repositories run statements against. Both a Connection
// and a Transaction satisfy it.
type Executor interface {
	Exec(ctx context.Context, query string, args ...any) (Result, error)
	QueryRow(ctx context.Context, query string, args ...any) Row
	Query(ctx context.Context, query string, args ...any) (Rows, error)
}

// Transaction is an Executor that can be finished.
type Transaction interface {
	Executor
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Connection is an open database handle.
type Connection interface {
	Executor
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
	Ping(ctx context.Context) error
	Driver() Driver
}

// SQLExecutor adapts the database/sql query methods shared by *sql.DB and
// *sql.Tx to Executor.
type SQLExecutor struct {
	Q interface {
		ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
		QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
		QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	}
}

func (e SQLExecutor) Exec(ctx context.Context, query string, args ...any) (Result, error) {
	res, err := e.Q.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (e SQLExecutor) QueryRow(ctx context.Context, query string, args ...any) Row {
	return e.Q.QueryRowContext(ctx, query, args...)
}

func (e SQLExecutor) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := e.Q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
