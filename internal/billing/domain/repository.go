package domain

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists financial documents.
type Repository interface {
	// Save inserts new documents and updates settlement on existing ones.
	Save(ctx context.Context, doc *FinancialDocument) error
	FindByID(ctx context.Context, id uuid.UUID) (*FinancialDocument, error)
	// ListByProject returns documents oldest first.
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*FinancialDocument, error)
	// HasUnpaidInvoice reports whether the project has a pending, unpaid invoice.
	HasUnpaidInvoice(ctx context.Context, projectID uuid.UUID) (bool, error)
	// DeletePendingUnpaid removes the project's pending, unpaid documents and
	// returns what it removed. Paid documents are never touched.
	DeletePendingUnpaid(ctx context.Context, projectID uuid.UUID) ([]*FinancialDocument, error)
}
