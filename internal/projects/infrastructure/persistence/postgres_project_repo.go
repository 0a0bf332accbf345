package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/slate/internal/projects/domain"
	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// PostgresProjectRepository implements domain.Repository using PostgreSQL.
type PostgresProjectRepository struct {
	conn database.Connection
}

// NewPostgresProjectRepository creates a new PostgreSQL project repository.
func NewPostgresProjectRepository(conn database.Connection) *PostgresProjectRepository {
	return &PostgresProjectRepository{conn: conn}
}

func (r *PostgresProjectRepository) Save(ctx context.Context, p *domain.Project) (int, error) {
	ex := database.ExecutorFromContext(ctx, r.conn)

	if p.IsNew() {
		_, err := ex.Exec(ctx, `
			INSERT INTO projects (`+projectColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, $11, $12)`,
			p.ID(), p.ClientID(), p.Name(), p.BudgetMinor(), p.Currency(), p.PaymentTermDays(),
			p.Stage().String(), p.SpecialStatus().String(), p.IssueDate(), p.EndDate(),
			p.CreatedAt(), p.UpdatedAt(),
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
			client_id = $2, name = $3, budget_minor = $4, currency = $5, payment_term_days = $6,
			stage_status = $7, special_status = $8, issue_date = $9, end_date = $10,
			updated_at = $11, version = version + 1
		WHERE id = $1
		RETURNING version`,
		p.ID(), p.ClientID(), p.Name(), p.BudgetMinor(), p.Currency(), p.PaymentTermDays(),
		p.Stage().String(), p.SpecialStatus().String(), p.IssueDate(), p.EndDate(), p.UpdatedAt(),
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

func (r *PostgresProjectRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	row := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	p, err := scanPostgresProject(row)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to find project: %w", err)
	}
	return p, nil
}

func (r *PostgresProjectRepository) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Project, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.ClientID != nil {
		where = append(where, "client_id = "+arg(*filter.ClientID))
	}
	if filter.Stage != nil {
		where = append(where, "stage_status = "+arg(filter.Stage.String()))
	}
	if filter.Special != nil {
		where = append(where, "special_status = "+arg(filter.Special.String()))
	}

	query := `SELECT ` + projectColumns + ` FROM projects`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY updated_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var out []*domain.Project
	for rows.Next() {
		p, err := scanPostgresProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresProjectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx,
		`DELETE FROM projects WHERE id = $1`, id)
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

func scanPostgresProject(row database.Row) (*domain.Project, error) {
	var (
		id, clientID                   uuid.UUID
		name, currency, stage, special string
		budget                         int64
		term, version                  int
		issue, end                     *time.Time
		createdAt, updatedAt           time.Time
	)
	if err := row.Scan(&id, &clientID, &name, &budget, &currency, &term,
		&stage, &special, &issue, &end, &version, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	return domain.RehydrateProject(id, clientID, name, budget, currency, term,
		domain.StageStatus(stage), domain.SpecialStatus(special),
		utcPtr(issue), utcPtr(end), version, createdAt.UTC(), updatedAt.UTC()), nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// PostgresHistoryRepository implements domain.HistoryRepository using PostgreSQL.
type PostgresHistoryRepository struct {
	conn database.Connection
}

func NewPostgresHistoryRepository(conn database.Connection) *PostgresHistoryRepository {
	return &PostgresHistoryRepository{conn: conn}
}

func (r *PostgresHistoryRepository) Append(ctx context.Context, rec domain.StatusHistoryRecord) error {
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
		INSERT INTO status_history (id, project_id, kind, previous_status, new_status, reason, changed_by, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.ProjectID, string(rec.Kind), rec.PreviousStatus, rec.NewStatus,
		rec.Reason, rec.ChangedBy, rec.ChangedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}
	return nil
}

func (r *PostgresHistoryRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]domain.StatusHistoryRecord, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx, `
		SELECT id, project_id, kind, previous_status, new_status, reason, changed_by, changed_at
		FROM status_history
		WHERE project_id = $1
		ORDER BY seq`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list status history: %w", err)
	}
	defer rows.Close()

	var out []domain.StatusHistoryRecord
	for rows.Next() {
		var rec domain.StatusHistoryRecord
		var kind string
		if err := rows.Scan(&rec.ID, &rec.ProjectID, &kind, &rec.PreviousStatus, &rec.NewStatus,
			&rec.Reason, &rec.ChangedBy, &rec.ChangedAt); err != nil {
			return nil, err
		}
		rec.Kind = domain.HistoryKind(kind)
		rec.ChangedAt = rec.ChangedAt.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// NewRepositories picks the implementations for conn's driver.
func NewRepositories(conn database.Connection) (domain.Repository, domain.HistoryRepository) {
	if conn.Driver() == database.DriverPostgres {
		return NewPostgresProjectRepository(conn), NewPostgresHistoryRepository(conn)
	}
	return NewSQLiteProjectRepository(conn), NewSQLiteHistoryRepository(conn)
}
