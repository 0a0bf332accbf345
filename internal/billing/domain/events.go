package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/slate/internal/shared/domain"
	"github.com/google/uuid"
)

const (
	RoutingKeyDocumentCreated = "billing.document.created"
	RoutingKeyDocumentDeleted = "billing.document.deleted"
	RoutingKeyDocumentPaid    = "billing.document.paid"
)

// DocumentCreated is raised when a document is issued.
type DocumentCreated struct {
	sharedDomain.BaseEvent
	DocumentID   uuid.UUID    `json:"document_id"`
	ProjectID    uuid.UUID    `json:"project_id"`
	DocumentType DocumentType `json:"document_type"`
	AmountMinor  int64        `json:"amount_minor"`
	Currency     string       `json:"currency"`
	DueDate      time.Time    `json:"due_date"`
	AutoCreated  bool         `json:"auto_created"`
}

func NewDocumentCreated(d *FinancialDocument) *DocumentCreated {
	return &DocumentCreated{
		BaseEvent:    sharedDomain.NewBaseEvent(d.ID(), AggregateType, RoutingKeyDocumentCreated),
		DocumentID:   d.ID(),
		ProjectID:    d.projectID,
		DocumentType: d.documentType,
		AmountMinor:  d.amountMinor,
		Currency:     d.currency,
		DueDate:      d.dueDate,
		AutoCreated:  d.autoCreated,
	}
}

// DocumentDeleted is raised when a pending document is removed by a revert.
type DocumentDeleted struct {
	sharedDomain.BaseEvent
	DocumentID uuid.UUID `json:"document_id"`
	ProjectID  uuid.UUID `json:"project_id"`
	Reason     string    `json:"reason"`
}

func NewDocumentDeleted(d *FinancialDocument, reason string) *DocumentDeleted {
	return &DocumentDeleted{
		BaseEvent:  sharedDomain.NewBaseEvent(d.ID(), AggregateType, RoutingKeyDocumentDeleted),
		DocumentID: d.ID(),
		ProjectID:  d.projectID,
		Reason:     reason,
	}
}

// DocumentPaid is raised when a document is settled.
type DocumentPaid struct {
	sharedDomain.BaseEvent
	DocumentID uuid.UUID `json:"document_id"`
	ProjectID  uuid.UUID `json:"project_id"`
	PaidAt     time.Time `json:"paid_at"`
	PaidBy     uuid.UUID `json:"paid_by"`
}

func NewDocumentPaid(d *FinancialDocument, by uuid.UUID) *DocumentPaid {
	e := &DocumentPaid{
		BaseEvent:  sharedDomain.NewBaseEvent(d.ID(), AggregateType, RoutingKeyDocumentPaid),
		DocumentID: d.ID(),
		ProjectID:  d.projectID,
		PaidBy:     by,
	}
	if d.paidAt != nil {
		e.PaidAt = *d.paidAt
	}
	return e
}
