package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/slate/internal/billing/domain"
	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/migrations"
)

func setupDocumentTestDB(t *testing.T) (database.Connection, uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	conn, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "slate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	_, err = migrations.Run(ctx, conn, nil)
	require.NoError(t, err)

	// documents reference a project row
	projectID := uuid.New()
	now := sqlite.FormatTime(time.Now())
	_, err = conn.Exec(ctx, `
		INSERT INTO projects (id, client_id, name, stage_status, created_at, updated_at)
		VALUES (?, ?, 'Test', 'accepted', ?, ?)`, projectID.String(), uuid.New().String(), now, now)
	require.NoError(t, err)
	return conn, projectID
}

func newInvoice(t *testing.T, projectID uuid.UUID) *domain.FinancialDocument {
	t.Helper()
	issue := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	d, err := domain.NewDocument(projectID, uuid.New(), domain.DocumentInvoice, 99000, "EUR", issue, issue.AddDate(0, 0, 30), true)
	require.NoError(t, err)
	return d
}

func TestSQLiteDocumentRepository_SaveAndFind(t *testing.T) {
	conn, projectID := setupDocumentTestDB(t)
	repo := NewSQLiteDocumentRepository(conn)
	ctx := context.Background()

	doc := newInvoice(t, projectID)
	require.NoError(t, repo.Save(ctx, doc))
	assert.False(t, doc.IsNew())

	found, err := repo.FindByID(ctx, doc.ID())
	require.NoError(t, err)
	assert.Equal(t, doc.ProjectID(), found.ProjectID())
	assert.Equal(t, domain.DocumentInvoice, found.DocumentType())
	assert.Equal(t, int64(99000), found.AmountMinor())
	assert.Equal(t, domain.StatusPending, found.Status())
	assert.True(t, found.AutoCreated())
	assert.Equal(t, doc.DueDate(), found.DueDate())
	assert.Nil(t, found.PaidAt())

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestSQLiteDocumentRepository_MarkPaid(t *testing.T) {
	conn, projectID := setupDocumentTestDB(t)
	repo := NewSQLiteDocumentRepository(conn)
	ctx := context.Background()

	doc := newInvoice(t, projectID)
	require.NoError(t, repo.Save(ctx, doc))

	has, err := repo.HasUnpaidInvoice(ctx, projectID)
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, doc.MarkPaid(time.Now(), uuid.New()))
	require.NoError(t, repo.Save(ctx, doc))

	found, err := repo.FindByID(ctx, doc.ID())
	require.NoError(t, err)
	assert.True(t, found.IsPaid())
	assert.Equal(t, domain.StatusPaid, found.Status())
	assert.NotNil(t, found.PaidAt())

	has, err = repo.HasUnpaidInvoice(ctx, projectID)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestSQLiteDocumentRepository_DeletePendingUnpaid(t *testing.T) {
	conn, projectID := setupDocumentTestDB(t)
	repo := NewSQLiteDocumentRepository(conn)
	ctx := context.Background()

	paid := newInvoice(t, projectID)
	require.NoError(t, paid.MarkPaid(time.Now(), uuid.New()))
	require.NoError(t, repo.Save(ctx, paid))
	pending := newInvoice(t, projectID)
	require.NoError(t, repo.Save(ctx, pending))

	deleted, err := repo.DeletePendingUnpaid(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.Equal(t, pending.ID(), deleted[0].ID())

	remaining, err := repo.ListByProject(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, paid.ID(), remaining[0].ID())

	again, err := repo.DeletePendingUnpaid(ctx, projectID)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestNewRepository_SQLite(t *testing.T) {
	conn, _ := setupDocumentTestDB(t)
	assert.IsType(t, &SQLiteDocumentRepository{}, NewRepository(conn))
}
