package queries

import (
	"time"

	billingDomain "github.com/felixgeelhaar/slate/internal/billing/domain"
	"github.com/felixgeelhaar/slate/internal/projects/domain"
	"github.com/google/uuid"
)

// ProjectDTO is the externally visible project snapshot.
type ProjectDTO struct {
	ID              uuid.UUID  `json:"id"`
	ClientID        uuid.UUID  `json:"client_id"`
	Name            string     `json:"name"`
	BudgetMinor     int64      `json:"budget_minor"`
	Currency        string     `json:"currency"`
	PaymentTermDays int        `json:"payment_term_days"`
	Stage           string     `json:"stage"`
	StageLabel      string     `json:"stage_label"`
	SpecialStatus   string     `json:"special_status"`
	SpecialLabel    string     `json:"special_label"`
	IssueDate       *time.Time `json:"issue_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	Version         int        `json:"version"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// DocumentDTO is a financial document as shown next to its project.
type DocumentDTO struct {
	ID           uuid.UUID  `json:"id"`
	DocumentType string     `json:"document_type"`
	AmountMinor  int64      `json:"amount_minor"`
	Currency     string     `json:"currency"`
	Status       string     `json:"status"`
	Paid         bool       `json:"paid"`
	AutoCreated  bool       `json:"auto_created"`
	IssueDate    time.Time  `json:"issue_date"`
	DueDate      time.Time  `json:"due_date"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
}

// HistoryDTO is one status history record.
type HistoryDTO struct {
	ID             uuid.UUID `json:"id"`
	Kind           string    `json:"kind"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Reason         string    `json:"reason,omitempty"`
	ChangedBy      uuid.UUID `json:"changed_by"`
	ChangedAt      time.Time `json:"changed_at"`
}

// ToProjectDTO snapshots a project.
func ToProjectDTO(p *domain.Project) *ProjectDTO {
	return &ProjectDTO{
		ID:              p.ID(),
		ClientID:        p.ClientID(),
		Name:            p.Name(),
		BudgetMinor:     p.BudgetMinor(),
		Currency:        p.Currency(),
		PaymentTermDays: p.PaymentTermDays(),
		Stage:           p.Stage().String(),
		StageLabel:      p.Stage().Label(),
		SpecialStatus:   p.SpecialStatus().String(),
		SpecialLabel:    p.SpecialStatus().Label(),
		IssueDate:       p.IssueDate(),
		EndDate:         p.EndDate(),
		Version:         p.Version(),
		CreatedAt:       p.CreatedAt(),
		UpdatedAt:       p.UpdatedAt(),
	}
}

// ToDocumentDTO snapshots a financial document.
func ToDocumentDTO(d *billingDomain.FinancialDocument) DocumentDTO {
	return DocumentDTO{
		ID:           d.ID(),
		DocumentType: string(d.DocumentType()),
		AmountMinor:  d.AmountMinor(),
		Currency:     d.Currency(),
		Status:       string(d.Status()),
		Paid:         d.IsPaid(),
		AutoCreated:  d.AutoCreated(),
		IssueDate:    d.IssueDate(),
		DueDate:      d.DueDate(),
		PaidAt:       d.PaidAt(),
	}
}

func toHistoryDTO(r domain.StatusHistoryRecord) HistoryDTO {
	return HistoryDTO{
		ID:             r.ID,
		Kind:           string(r.Kind),
		PreviousStatus: r.PreviousStatus,
		NewStatus:      r.NewStatus,
		Reason:         r.Reason,
		ChangedBy:      r.ChangedBy,
		ChangedAt:      r.ChangedAt,
	}
}
