// Package migrations embeds and applies the schema for each supported driver.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/database"
)

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

const trackingTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version     TEXT PRIMARY KEY,
    applied_at  TEXT NOT NULL
)`

// Pending lists the migrations for driver not yet recorded in schema_migrations,
// without applying them.
func Pending(ctx context.Context, conn database.Connection) ([]string, error) {
	all, err := list(conn.Driver())
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(ctx, trackingTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}
	applied, err := appliedVersions(ctx, conn)
	if err != nil {
		return nil, err
	}

	var pending []string
	for _, name := range all {
		if !applied[name] {
			pending = append(pending, name)
		}
	}
	return pending, nil
}

// Run applies every pending migration in filename order, each in its own
// transaction, and returns the names it applied.
func Run(ctx context.Context, conn database.Connection, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pending, err := Pending(ctx, conn)
	if err != nil {
		return nil, err
	}

	dir := dirFor(conn.Driver())
	insert := "INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)"
	if conn.Driver() == database.DriverPostgres {
		insert = "INSERT INTO schema_migrations (version, applied_at) VALUES ($1, $2)"
	}

	for _, name := range pending {
		body, err := files.ReadFile(dir + "/" + name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}

		tx, err := conn.BeginTx(ctx)
		if err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx, string(body)); err != nil {
			_ = tx.Rollback(ctx)
			return nil, fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := tx.Exec(ctx, insert, name, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback(ctx)
			return nil, fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit migration %s: %w", name, err)
		}
		logger.Info("applied migration", "driver", conn.Driver(), "version", name)
	}
	return pending, nil
}

func dirFor(driver database.Driver) string {
	if driver == database.DriverPostgres {
		return "postgres"
	}
	return "sqlite"
}

func list(driver database.Driver) ([]string, error) {
	entries, err := fs.ReadDir(files, dirFor(driver))
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func appliedVersions(ctx context.Context, conn database.Connection) (map[string]bool, error) {
	rows, err := conn.Query(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}
