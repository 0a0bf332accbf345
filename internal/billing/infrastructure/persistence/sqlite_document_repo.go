package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/felixgeelhaar/slate/internal/billing/domain"
	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/database/sqlite"
	"github.com/google/uuid"
)

const documentColumns = `id, project_id, client_id, document_type, amount_minor, currency, status,
	paid, auto_created, issue_date, due_date, paid_at, created_at, updated_at`

// SQLiteDocumentRepository implements domain.Repository using SQLite.
type SQLiteDocumentRepository struct {
	conn database.Connection
}

// NewSQLiteDocumentRepository creates a new SQLite document repository.
func NewSQLiteDocumentRepository(conn database.Connection) *SQLiteDocumentRepository {
	return &SQLiteDocumentRepository{conn: conn}
}

func (r *SQLiteDocumentRepository) Save(ctx context.Context, d *domain.FinancialDocument) error {
	ex := database.ExecutorFromContext(ctx, r.conn)

	if d.IsNew() {
		_, err := ex.Exec(ctx, `
			INSERT INTO financial_documents (`+documentColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID().String(), d.ProjectID().String(), d.ClientID().String(), string(d.DocumentType()),
			d.AmountMinor(), d.Currency(), string(d.Status()), boolToInt(d.IsPaid()), boolToInt(d.AutoCreated()),
			sqlite.FormatTime(d.IssueDate()), sqlite.FormatTime(d.DueDate()), sqlite.NullTime(d.PaidAt()),
			sqlite.FormatTime(d.CreatedAt()), sqlite.FormatTime(d.UpdatedAt()),
		)
		if err != nil {
			return fmt.Errorf("failed to create financial document: %w", err)
		}
		d.SetVersion(1)
		return nil
	}

	res, err := ex.Exec(ctx, `
		UPDATE financial_documents
		SET status = ?, paid = ?, paid_at = ?, updated_at = ?
		WHERE id = ?`,
		string(d.Status()), boolToInt(d.IsPaid()), sqlite.NullTime(d.PaidAt()),
		sqlite.FormatTime(d.UpdatedAt()), d.ID().String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update financial document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *SQLiteDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.FinancialDocument, error) {
	row := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT `+documentColumns+` FROM financial_documents WHERE id = ?`, id.String())
	d, err := scanSQLiteDocument(row)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to find financial document: %w", err)
	}
	return d, nil
}

func (r *SQLiteDocumentRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*domain.FinancialDocument, error) {
	return r.query(ctx, `
		SELECT `+documentColumns+` FROM financial_documents
		WHERE project_id = ?
		ORDER BY created_at, id`, projectID.String())
}

func (r *SQLiteDocumentRepository) HasUnpaidInvoice(ctx context.Context, projectID uuid.UUID) (bool, error) {
	var n int
	err := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx, `
		SELECT COUNT(*) FROM financial_documents
		WHERE project_id = ? AND document_type = 'invoice' AND status = 'pending' AND paid = 0`,
		projectID.String()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to count unpaid invoices: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteDocumentRepository) DeletePendingUnpaid(ctx context.Context, projectID uuid.UUID) ([]*domain.FinancialDocument, error) {
	return r.query(ctx, `
		DELETE FROM financial_documents
		WHERE project_id = ? AND status = 'pending' AND paid = 0
		RETURNING `+documentColumns, projectID.String())
}

func (r *SQLiteDocumentRepository) query(ctx context.Context, q string, args ...any) ([]*domain.FinancialDocument, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.FinancialDocument
	for rows.Next() {
		d, err := scanSQLiteDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanSQLiteDocument(row database.Row) (*domain.FinancialDocument, error) {
	var (
		id, projectID, clientID, docType, currency, status string
		amount                                             int64
		paid, auto                                         int
		issue, due, createdAt, updatedAt                   string
		paidAt                                             sql.NullString
	)
	if err := row.Scan(&id, &projectID, &clientID, &docType, &amount, &currency, &status,
		&paid, &auto, &issue, &due, &paidAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 3)
	for i, s := range []string{id, projectID, clientID} {
		parsed, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid uuid %q: %w", s, err)
		}
		ids[i] = parsed
	}
	times := make([]time.Time, 4)
	for i, s := range []string{issue, due, createdAt, updatedAt} {
		parsed, err := sqlite.ParseTime(s)
		if err != nil {
			return nil, err
		}
		times[i] = parsed
	}
	paidTime, err := sqlite.ParseNullTime(paidAt)
	if err != nil {
		return nil, err
	}

	return domain.RehydrateDocument(ids[0], ids[1], ids[2],
		domain.DocumentType(docType), amount, currency, domain.DocumentStatus(status),
		paid != 0, auto != 0, times[0], times[1], paidTime, times[2], times[3]), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
