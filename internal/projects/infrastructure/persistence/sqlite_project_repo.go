package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/slate/internal/projects/domain"
	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/database/sqlite"
	"github.com/google/uuid"
)

const projectColumns = `id, client_id, name, budget_minor, currency, payment_term_days,
	stage_status, special_status, issue_date, end_date, version, created_at, updated_at`

// SQLiteProjectRepository implements domain.Repository using SQLite.
type SQLiteProjectRepository struct {
	conn database.Connection
}

// NewSQLiteProjectRepository creates a new SQLite project repository.
func NewSQLiteProjectRepository(conn database.Connection) *SQLiteProjectRepository {
	return &SQLiteProjectRepository{conn: conn}
}

// Save inserts new projects and version-bumps existing ones.
func (r *SQLiteProjectRepository) Save(ctx context.Context, p *domain.Project) (int, error) {
	ex := database.ExecutorFromContext(ctx, r.conn)

	if p.IsNew() {
		_, err := ex.Exec(ctx, `
			INSERT INTO projects (`+projectColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			p.ID().String(), p.ClientID().String(), p.Name(), p.BudgetMinor(), p.Currency(), p.PaymentTermDays(),
			p.Stage().String(), p.SpecialStatus().String(),
			sqlite.NullTime(p.IssueDate()), sqlite.NullTime(p.EndDate()),
			sqlite.FormatTime(p.CreatedAt()), sqlite.FormatTime(p.UpdatedAt()),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to create project: %w", err)
		}
		p.SetVersion(1)
		return 0, nil
	}

	var version int
	err := ex.QueryRow(ctx, `
		UPDATE projects SET
			client_id = ?, name = ?, budget_minor = ?, currency = ?, payment_term_days = ?,
			stage_status = ?, special_status = ?, issue_date = ?, end_date = ?,
			updated_at = ?, version = version + 1
		WHERE id = ?
		RETURNING version`,
		p.ClientID().String(), p.Name(), p.BudgetMinor(), p.Currency(), p.PaymentTermDays(),
		p.Stage().String(), p.SpecialStatus().String(),
		sqlite.NullTime(p.IssueDate()), sqlite.NullTime(p.EndDate()),
		sqlite.FormatTime(p.UpdatedAt()), p.ID().String(),
	).Scan(&version)
	if err != nil {
		if database.IsNoRows(err) {
			return 0, domain.ErrProjectNotFound
		}
		return 0, fmt.Errorf("failed to update project: %w", err)
	}
	p.SetVersion(version)
	return version - 1, nil
}

// FindByID loads a project.
func (r *SQLiteProjectRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	row := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id.String())
	p, err := scanSQLiteProject(row)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to find project: %w", err)
	}
	return p, nil
}

// List returns projects matching filter, most recently updated first.
func (r *SQLiteProjectRepository) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Project, error) {
	var (
		where []string
		args  []any
	)
	if filter.ClientID != nil {
		where = append(where, "client_id = ?")
		args = append(args, filter.ClientID.String())
	}
	if filter.Stage != nil {
		where = append(where, "stage_status = ?")
		args = append(args, filter.Stage.String())
	}
	if filter.Special != nil {
		where = append(where, "special_status = ?")
		args = append(args, filter.Special.String())
	}

	query := `SELECT ` + projectColumns + ` FROM projects`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY updated_at DESC, id"
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var out []*domain.Project
	for rows.Next() {
		p, err := scanSQLiteProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Delete removes a project together with its documents and history.
func (r *SQLiteProjectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx,
		`DELETE FROM projects WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrProjectNotFound
	}
	return nil
}

func scanSQLiteProject(row database.Row) (*domain.Project, error) {
	var (
		id, clientID, name, currency, stage, special string
		budget                                       int64
		term, version                                int
		issue, end                                   sql.NullString
		createdAt, updatedAt                         string
	)
	if err := row.Scan(&id, &clientID, &name, &budget, &currency, &term,
		&stage, &special, &issue, &end, &version, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	pid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid project id: %w", err)
	}
	cid, err := uuid.Parse(clientID)
	if err != nil {
		return nil, fmt.Errorf("invalid client id: %w", err)
	}
	issueDate, err := sqlite.ParseNullTime(issue)
	if err != nil {
		return nil, err
	}
	endDate, err := sqlite.ParseNullTime(end)
	if err != nil {
		return nil, err
	}
	created, err := sqlite.ParseTime(createdAt)
	if err != nil {
		return nil, err
	}
	updated, err := sqlite.ParseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	return domain.RehydrateProject(pid, cid, name, budget, currency, term,
		domain.StageStatus(stage), domain.SpecialStatus(special),
		issueDate, endDate, version, created, updated), nil
}

// SQLiteHistoryRepository implements domain.HistoryRepository using SQLite.
type SQLiteHistoryRepository struct {
	conn database.Connection
}

// NewSQLiteHistoryRepository creates the repository.
func NewSQLiteHistoryRepository(conn database.Connection) *SQLiteHistoryRepository {
	return &SQLiteHistoryRepository{conn: conn}
}

func (r *SQLiteHistoryRepository) Append(ctx context.Context, rec domain.StatusHistoryRecord) error {
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
		INSERT INTO status_history (id, project_id, kind, previous_status, new_status, reason, changed_by, changed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.ProjectID.String(), string(rec.Kind), rec.PreviousStatus, rec.NewStatus,
		rec.Reason, rec.ChangedBy.String(), sqlite.FormatTime(rec.ChangedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}
	return nil
}

func (r *SQLiteHistoryRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]domain.StatusHistoryRecord, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx, `
		SELECT id, project_id, kind, previous_status, new_status, reason, changed_by, changed_at
		FROM status_history
		WHERE project_id = ?
		ORDER BY seq`, projectID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list status history: %w", err)
	}
	defer rows.Close()

	var out []domain.StatusHistoryRecord
	for rows.Next() {
		var id, pid, kind, prev, next, reason, by, at string
		if err := rows.Scan(&id, &pid, &kind, &prev, &next, &reason, &by, &at); err != nil {
			return nil, err
		}
		rec := domain.StatusHistoryRecord{
			Kind:           domain.HistoryKind(kind),
			PreviousStatus: prev,
			NewStatus:      next,
			Reason:         reason,
		}
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if rec.ProjectID, err = uuid.Parse(pid); err != nil {
			return nil, err
		}
		if rec.ChangedBy, err = uuid.Parse(by); err != nil {
			return nil, err
		}
		if rec.ChangedAt, err = sqlite.ParseTime(at); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
