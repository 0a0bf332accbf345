package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockUnitOfWork is a mock implementation of UnitOfWork.
type mockUnitOfWork struct {
	mock.Mock
}

func (m *mockUnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	args := m.Called(ctx)
	return args.Get(0).(context.Context), args.Error(1)
}

func (m *mockUnitOfWork) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockUnitOfWork) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// mockSavepointUnitOfWork adds savepoint support on top of mockUnitOfWork.
type mockSavepointUnitOfWork struct {
	mockUnitOfWork
}

func (m *mockSavepointUnitOfWork) Savepoint(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *mockSavepointUnitOfWork) RollbackTo(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *mockSavepointUnitOfWork) Release(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func TestWithUnitOfWork(t *testing.T) {
	t.Run("successfully executes and commits", func(t *testing.T) {
		uow := new(mockUnitOfWork)
		ctx := context.Background()
		txCtx := context.WithValue(ctx, "tx", "transaction")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Commit", txCtx).Return(nil)

		executed := false
		err := WithUnitOfWork(ctx, uow, func(ctx context.Context) error {
			executed = true
			assert.Equal(t, txCtx, ctx, "should receive transaction context")
			return nil
		})

		require.NoError(t, err)
		assert.True(t, executed)
		uow.AssertExpectations(t)
	})

	t.Run("rolls back on function error", func(t *testing.T) {
		uow := new(mockUnitOfWork)
		ctx := context.Background()
		txCtx := context.WithValue(ctx, "tx", "transaction")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(nil)

		fnError := errors.New("function error")
		err := WithUnitOfWork(ctx, uow, func(ctx context.Context) error {
			return fnError
		})

		assert.Equal(t, fnError, err)
		uow.AssertExpectations(t)
		uow.AssertNotCalled(t, "Commit", mock.Anything)
	})

	t.Run("returns error when begin fails", func(t *testing.T) {
		uow := new(mockUnitOfWork)
		ctx := context.Background()

		beginError := errors.New("begin error")
		uow.On("Begin", ctx).Return(ctx, beginError)

		executed := false
		err := WithUnitOfWork(ctx, uow, func(ctx context.Context) error {
			executed = true
			return nil
		})

		assert.Equal(t, beginError, err)
		assert.False(t, executed)
	})
}

func TestWithSavepoint(t *testing.T) {
	ctx := context.Background()

	t.Run("releases the savepoint on success", func(t *testing.T) {
		uow := new(mockSavepointUnitOfWork)
		uow.On("Savepoint", ctx, "sp").Return(nil)
		uow.On("Release", ctx, "sp").Return(nil)

		err := WithSavepoint(ctx, uow, "sp", func(ctx context.Context) error { return nil })

		require.NoError(t, err)
		uow.AssertExpectations(t)
		uow.AssertNotCalled(t, "RollbackTo", mock.Anything, mock.Anything)
	})

	t.Run("rolls back to the savepoint on failure", func(t *testing.T) {
		uow := new(mockSavepointUnitOfWork)
		uow.On("Savepoint", ctx, "sp").Return(nil)
		uow.On("RollbackTo", ctx, "sp").Return(nil)

		stepErr := errors.New("delete failed")
		err := WithSavepoint(ctx, uow, "sp", func(ctx context.Context) error { return stepErr })

		assert.ErrorIs(t, err, stepErr)
		uow.AssertExpectations(t)
		uow.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
	})

	t.Run("reports unsupported units of work", func(t *testing.T) {
		uow := new(mockUnitOfWork)

		err := WithSavepoint(ctx, uow, "sp", func(ctx context.Context) error { return nil })

		assert.ErrorIs(t, err, ErrSavepointsUnsupported)
	})
}
