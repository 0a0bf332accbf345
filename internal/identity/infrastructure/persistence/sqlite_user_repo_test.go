package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/slate/internal/identity/domain"
	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/migrations"
)

func setupUserRepo(t *testing.T) *SQLiteUserRepository {
	t.Helper()
	ctx := context.Background()
	conn, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "slate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_, err = migrations.Run(ctx, conn, nil)
	require.NoError(t, err)
	return NewSQLiteUserRepository(conn)
}

func TestSQLiteUserRepository_SaveAndFind(t *testing.T) {
	repo := setupUserRepo(t)
	ctx := context.Background()

	user, err := domain.NewUser("producer@example.com", "Pat Producer")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, user))

	found, err := repo.FindByID(ctx, user.ID())
	require.NoError(t, err)
	assert.Equal(t, "producer@example.com", found.Email())
	assert.Equal(t, "Pat Producer", found.Name())

	byEmail, err := repo.FindByEmail(ctx, "producer@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID(), byEmail.ID())

	ok, err := repo.Exists(ctx, user.ID())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLiteUserRepository_Rename(t *testing.T) {
	repo := setupUserRepo(t)
	ctx := context.Background()

	user, err := domain.NewUser("a@example.com", "Before")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, user))

	require.NoError(t, user.Rename("After"))
	require.NoError(t, repo.Save(ctx, user))

	found, err := repo.FindByID(ctx, user.ID())
	require.NoError(t, err)
	assert.Equal(t, "After", found.Name())
}

func TestSQLiteUserRepository_DuplicateEmail(t *testing.T) {
	repo := setupUserRepo(t)
	ctx := context.Background()

	first, err := domain.NewUser("same@example.com", "One")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, first))

	second, err := domain.NewUser("same@example.com", "Two")
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Save(ctx, second), domain.ErrDuplicateEmail)
}

func TestSQLiteUserRepository_NotFound(t *testing.T) {
	repo := setupUserRepo(t)
	ctx := context.Background()

	_, err := repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	ok, err := repo.Exists(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)

	users, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}
