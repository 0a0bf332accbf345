package domain

import (
	"fmt"
	"strings"
	"time"

	sharedDomain "github.com/felixgeelhaar/slate/internal/shared/domain"
	"github.com/google/uuid"
)

// AggregateType identifies financial documents in events and the outbox.
const AggregateType = "FinancialDocument"

// DocumentType distinguishes invoices from quotes.
type DocumentType string

const (
	DocumentInvoice DocumentType = "invoice"
	DocumentQuote   DocumentType = "quote"
)

func ParseDocumentType(s string) (DocumentType, error) {
	switch DocumentType(s) {
	case DocumentInvoice, DocumentQuote:
		return DocumentType(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDocumentType, s)
	}
}

// DocumentStatus is the settlement state of a document.
type DocumentStatus string

const (
	StatusPending DocumentStatus = "pending"
	StatusPaid    DocumentStatus = "paid"
)

// FinancialDocument is an invoice or quote issued against a project.
type FinancialDocument struct {
	sharedDomain.BaseAggregateRoot
	projectID    uuid.UUID
	clientID     uuid.UUID
	documentType DocumentType
	amountMinor  int64
	currency     string
	status       DocumentStatus
	paid         bool
	autoCreated  bool
	issueDate    time.Time
	dueDate      time.Time
	paidAt       *time.Time
}

// NewDocument creates a pending, unpaid document.
func NewDocument(
	projectID, clientID uuid.UUID,
	docType DocumentType,
	amountMinor int64,
	currency string,
	issueDate, dueDate time.Time,
	autoCreated bool,
) (*FinancialDocument, error) {
	if _, err := ParseDocumentType(string(docType)); err != nil {
		return nil, err
	}
	if amountMinor < 0 {
		return nil, ErrInvalidAmount
	}
	if dueDate.Before(issueDate) {
		return nil, ErrDueBeforeIssue
	}

	d := &FinancialDocument{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		projectID:         projectID,
		clientID:          clientID,
		documentType:      docType,
		amountMinor:       amountMinor,
		currency:          strings.ToUpper(currency),
		status:            StatusPending,
		autoCreated:       autoCreated,
		issueDate:         issueDate.UTC(),
		dueDate:           dueDate.UTC(),
	}
	d.AddDomainEvent(NewDocumentCreated(d))
	return d, nil
}

// RehydrateDocument recreates a document from persisted state.
func RehydrateDocument(
	id, projectID, clientID uuid.UUID,
	docType DocumentType,
	amountMinor int64,
	currency string,
	status DocumentStatus,
	paid, autoCreated bool,
	issueDate, dueDate time.Time,
	paidAt *time.Time,
	createdAt, updatedAt time.Time,
) *FinancialDocument {
	return &FinancialDocument{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(
			sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt), 1,
		),
		projectID:    projectID,
		clientID:     clientID,
		documentType: docType,
		amountMinor:  amountMinor,
		currency:     currency,
		status:       status,
		paid:         paid,
		autoCreated:  autoCreated,
		issueDate:    issueDate,
		dueDate:      dueDate,
		paidAt:       paidAt,
	}
}

// Getters
func (d *FinancialDocument) ProjectID() uuid.UUID       { return d.projectID }
func (d *FinancialDocument) ClientID() uuid.UUID        { return d.clientID }
func (d *FinancialDocument) DocumentType() DocumentType { return d.documentType }
func (d *FinancialDocument) AmountMinor() int64         { return d.amountMinor }
func (d *FinancialDocument) Currency() string           { return d.currency }
func (d *FinancialDocument) Status() DocumentStatus     { return d.status }
func (d *FinancialDocument) IsPaid() bool               { return d.paid }
func (d *FinancialDocument) AutoCreated() bool          { return d.autoCreated }
func (d *FinancialDocument) IssueDate() time.Time       { return d.issueDate }
func (d *FinancialDocument) DueDate() time.Time         { return d.dueDate }
func (d *FinancialDocument) PaidAt() *time.Time         { return d.paidAt }

// IsPendingUnpaid is true for documents a revert may remove.
func (d *FinancialDocument) IsPendingUnpaid() bool {
	return d.status == StatusPending && !d.paid
}

// MarkPaid settles the document. Paid documents are immutable.
func (d *FinancialDocument) MarkPaid(at time.Time, by uuid.UUID) error {
	if d.paid {
		return ErrAlreadyPaid
	}
	at = at.UTC()
	d.paid = true
	d.status = StatusPaid
	d.paidAt = &at
	d.Touch()
	d.AddDomainEvent(NewDocumentPaid(d, by))
	return nil
}

// MarkDeleted records the removal of a pending document.
func (d *FinancialDocument) MarkDeleted(reason string) {
	d.AddDomainEvent(NewDocumentDeleted(d, reason))
}
