package application

import (
	"context"
	"errors"
)

// ErrSavepointsUnsupported is returned by WithSavepoint when the unit of work
// cannot scope a nested step.
var ErrSavepointsUnsupported = errors.New("unit of work does not support savepoints")

// UnitOfWork provides transactional support for aggregating multiple operations.
type UnitOfWork interface {
	Begin(ctx context.Context) (context.Context, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Savepointer is implemented by units of work that can isolate a step inside
// the open transaction, so that its failure does not poison the outer work.
type Savepointer interface {
	Savepoint(ctx context.Context, name string) error
	RollbackTo(ctx context.Context, name string) error
	Release(ctx context.Context, name string) error
}

// UnitOfWorkFunc is a function that executes within a unit of work.
type UnitOfWorkFunc func(ctx context.Context) error

// WithUnitOfWork executes the given function within a unit of work.
func WithUnitOfWork(ctx context.Context, uow UnitOfWork, fn UnitOfWorkFunc) error {
	txCtx, err := uow.Begin(ctx)
	if err != nil {
		return err
	}

	if err := fn(txCtx); err != nil {
		_ = uow.Rollback(txCtx)
		return err
	}

	return uow.Commit(txCtx)
}

// WithSavepoint runs fn inside a savepoint of the transaction carried by ctx.
// On failure the savepoint is rolled back and fn's error returned; the outer
// transaction stays usable.
func WithSavepoint(ctx context.Context, uow UnitOfWork, name string, fn UnitOfWorkFunc) error {
	sp, ok := uow.(Savepointer)
	if !ok {
		return ErrSavepointsUnsupported
	}

	if err := sp.Savepoint(ctx, name); err != nil {
		return err
	}

	if err := fn(ctx); err != nil {
		if rbErr := sp.RollbackTo(ctx, name); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}

	return sp.Release(ctx, name)
}
