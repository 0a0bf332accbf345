package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/slate/internal/billing/domain"
	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// PostgresDocumentRepository implements domain.Repository using PostgreSQL.
type PostgresDocumentRepository struct {
	conn database.Connection
}

// NewPostgresDocumentRepository creates a new PostgreSQL document repository.
func NewPostgresDocumentRepository(conn database.Connection) *PostgresDocumentRepository {
	return &PostgresDocumentRepository{conn: conn}
}

func (r *PostgresDocumentRepository) Save(ctx context.Context, d *domain.FinancialDocument) error {
	ex := database.ExecutorFromContext(ctx, r.conn)

	if d.IsNew() {
		_, err := ex.Exec(ctx, `
			INSERT INTO financial_documents (`+documentColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			d.ID(), d.ProjectID(), d.ClientID(), string(d.DocumentType()),
			d.AmountMinor(), d.Currency(), string(d.Status()), d.IsPaid(), d.AutoCreated(),
			d.IssueDate(), d.DueDate(), d.PaidAt(), d.CreatedAt(), d.UpdatedAt(),
		)
		if err != nil {
			return fmt.Errorf("failed to create financial document: %w", err)
		}
		d.SetVersion(1)
		return nil
	}

	res, err := ex.Exec(ctx, `
		UPDATE financial_documents
		SET status = $2, paid = $3, paid_at = $4, updated_at = $5
		WHERE id = $1`,
		d.ID(), string(d.Status()), d.IsPaid(), d.PaidAt(), d.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to update financial document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *PostgresDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.FinancialDocument, error) {
	row := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT `+documentColumns+` FROM financial_documents WHERE id = $1`, id)
	d, err := scanPostgresDocument(row)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to find financial document: %w", err)
	}
	return d, nil
}

func (r *PostgresDocumentRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*domain.FinancialDocument, error) {
	return r.query(ctx, `
		SELECT `+documentColumns+` FROM financial_documents
		WHERE project_id = $1
		ORDER BY created_at, id`, projectID)
}

func (r *PostgresDocumentRepository) HasUnpaidInvoice(ctx context.Context, projectID uuid.UUID) (bool, error) {
	var exists bool
	err := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM financial_documents
			WHERE project_id = $1 AND document_type = 'invoice' AND status = 'pending' AND NOT paid
		)`, projectID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check unpaid invoices: %w", err)
	}
	return exists, nil
}

func (r *PostgresDocumentRepository) DeletePendingUnpaid(ctx context.Context, projectID uuid.UUID) ([]*domain.FinancialDocument, error) {
	return r.query(ctx, `
		DELETE FROM financial_documents
		WHERE project_id = $1 AND status = 'pending' AND NOT paid
		RETURNING `+documentColumns, projectID)
}

func (r *PostgresDocumentRepository) query(ctx context.Context, q string, args ...any) ([]*domain.FinancialDocument, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.FinancialDocument
	for rows.Next() {
		d, err := scanPostgresDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanPostgresDocument(row database.Row) (*domain.FinancialDocument, error) {
	var (
		id, projectID, clientID          uuid.UUID
		docType, currency, status        string
		amount                           int64
		paid, auto                       bool
		issue, due, createdAt, updatedAt time.Time
		paidAt                           *time.Time
	)
	if err := row.Scan(&id, &projectID, &clientID, &docType, &amount, &currency, &status,
		&paid, &auto, &issue, &due, &paidAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if paidAt != nil {
		t := paidAt.UTC()
		paidAt = &t
	}
	return domain.RehydrateDocument(id, projectID, clientID,
		domain.DocumentType(docType), amount, currency, domain.DocumentStatus(status),
		paid, auto, issue.UTC(), due.UTC(), paidAt, createdAt.UTC(), updatedAt.UTC()), nil
}

// NewRepository picks the implementation for conn's driver.
func NewRepository(conn database.Connection) domain.Repository {
	if conn.Driver() == database.DriverPostgres {
		return NewPostgresDocumentRepository(conn)
	}
	return NewSQLiteDocumentRepository(conn)
}
