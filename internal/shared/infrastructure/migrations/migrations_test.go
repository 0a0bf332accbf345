package migrations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/database/sqlite"
)

func TestRun_SQLite(t *testing.T) {
	ctx := context.Background()
	conn, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "slate.db"))
	require.NoError(t, err)
	defer conn.Close()

	applied, err := Run(ctx, conn, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_core.up.sql", "0002_outbox.up.sql"}, applied)

	for _, table := range []string{"users", "projects", "financial_documents", "status_history", "outbox"} {
		var name string
		err := conn.QueryRow(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
	}

	t.Run("second run applies nothing", func(t *testing.T) {
		again, err := Run(ctx, conn, nil)
		require.NoError(t, err)
		assert.Empty(t, again)

		pending, err := Pending(ctx, conn)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})
}

func TestRun_StatusHistoryIsAppendOnly(t *testing.T) {
	ctx := context.Background()
	conn, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "slate.db"))
	require.NoError(t, err)
	defer conn.Close()
	_, err = Run(ctx, conn, nil)
	require.NoError(t, err)

	_, err = conn.Exec(ctx, `INSERT INTO projects (id, client_id, name, created_at, updated_at) VALUES ('p', 'c', 'Spot', 'x', 'x')`)
	require.NoError(t, err)
	_, err = conn.Exec(ctx, `INSERT INTO status_history (id, project_id, kind, previous_status, new_status, changed_by, changed_at)
		VALUES ('h', 'p', 'stage', '', 'proposal', 'u', 'x')`)
	require.NoError(t, err)

	_, err = conn.Exec(ctx, `UPDATE status_history SET reason = 'edited' WHERE id = 'h'`)
	assert.ErrorContains(t, err, "append-only")
}
