package database

import (
	"context"
	"fmt"
	"regexp"
)

type txKey struct{}

// TxInfo is the transaction carried on a context. Owned is false when a
// nested Begin joined a transaction opened further up the call chain.
type TxInfo struct {
	Tx    Transaction
	Owned bool
}

// WithTx stores a transaction on the context.
func WithTx(ctx context.Context, tx Transaction, owned bool) context.Context {
	return context.WithValue(ctx, txKey{}, TxInfo{Tx: tx, Owned: owned})
}

// TxFromContext returns the transaction on ctx, or nil.
func TxFromContext(ctx context.Context) Transaction {
	info, ok := TxInfoFromContext(ctx)
	if !ok {
		return nil
	}
	return info.Tx
}

// TxInfoFromContext returns the transaction info on ctx.
func TxInfoFromContext(ctx context.Context) (TxInfo, bool) {
	info, ok := ctx.Value(txKey{}).(TxInfo)
	if !ok || info.Tx == nil {
		return TxInfo{}, false
	}
	return info, true
}

// ExecutorFromContext returns the open transaction if there is one, else conn.
func ExecutorFromContext(ctx context.Context, conn Connection) Executor {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return conn
}

var savepointName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// UnitOfWork implements application.UnitOfWork and application.Savepointer
// over any Connection.
type UnitOfWork struct {
	conn Connection
}

// NewUnitOfWork creates a unit of work bound to conn.
func NewUnitOfWork(conn Connection) *UnitOfWork {
	return &UnitOfWork{conn: conn}
}

// Begin opens a transaction, or joins the one already on ctx.
func (u *UnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	if info, ok := TxInfoFromContext(ctx); ok {
		return WithTx(ctx, info.Tx, false), nil
	}

	tx, err := u.conn.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return WithTx(ctx, tx, true), nil
}

// Commit commits the transaction when this unit opened it.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	info, ok := TxInfoFromContext(ctx)
	if !ok {
		return ErrNoTransaction
	}
	if !info.Owned {
		return nil
	}
	return info.Tx.Commit(ctx)
}

// Rollback aborts the transaction when this unit opened it.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	info, ok := TxInfoFromContext(ctx)
	if !ok {
		return ErrNoTransaction
	}
	if !info.Owned {
		return nil
	}
	return info.Tx.Rollback(ctx)
}

// Savepoint marks a point inside the open transaction.
func (u *UnitOfWork) Savepoint(ctx context.Context, name string) error {
	return u.savepointExec(ctx, "SAVEPOINT ", name)
}

// RollbackTo undoes everything since the named savepoint.
func (u *UnitOfWork) RollbackTo(ctx context.Context, name string) error {
	return u.savepointExec(ctx, "ROLLBACK TO SAVEPOINT ", name)
}

// Release discards the named savepoint, keeping its work.
func (u *UnitOfWork) Release(ctx context.Context, name string) error {
	return u.savepointExec(ctx, "RELEASE SAVEPOINT ", name)
}

func (u *UnitOfWork) savepointExec(ctx context.Context, stmt, name string) error {
	tx := TxFromContext(ctx)
	if tx == nil {
		return ErrNoTransaction
	}
	if !savepointName.MatchString(name) {
		return fmt.Errorf("invalid savepoint name %q", name)
	}
	_, err := tx.Exec(ctx, stmt+name)
	return err
}
