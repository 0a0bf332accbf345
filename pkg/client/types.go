package client

import (
	"time"

	"github.com/google/uuid"
)

// Project is the server's project snapshot.
type Project struct {
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

// Document is a financial document.
type Document struct {
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

// ProjectDetail is a project with its documents.
type ProjectDetail struct {
	Project       *Project   `json:"project"`
	Documents     []Document `json:"documents"`
	AllowedStages []string   `json:"allowed_stages"`
}

// HistoryRecord is one status history entry.
type HistoryRecord struct {
	ID             uuid.UUID `json:"id"`
	Kind           string    `json:"kind"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Reason         string    `json:"reason,omitempty"`
	ChangedBy      uuid.UUID `json:"changed_by"`
	ChangedAt      time.Time `json:"changed_at"`
}

// UnpaidDocument is listed when completion is blocked.
type UnpaidDocument struct {
	ID           uuid.UUID  `json:"id"`
	DocumentType string     `json:"document_type"`
	AmountMinor  int64      `json:"amount_minor"`
	Currency     string     `json:"currency"`
	DueDate      *time.Time `json:"due_date,omitempty"`
}

// PaymentGate answers whether a project could complete now.
type PaymentGate struct {
	ProjectID   uuid.UUID        `json:"project_id"`
	CanComplete bool             `json:"can_complete"`
	NoDocuments bool             `json:"no_documents"`
	Unpaid      []UnpaidDocument `json:"unpaid"`
}

// Warning is a non-fatal problem reported with a committed change.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TransitionResult is returned by the stage and special endpoints.
type TransitionResult struct {
	Project          *Project    `json:"project"`
	NoOp             bool        `json:"no_op"`
	Kind             string      `json:"kind"`
	ReasonCode       string      `json:"reason_code,omitempty"`
	Message          string      `json:"message,omitempty"`
	InvoiceCreated   *uuid.UUID  `json:"invoice_created,omitempty"`
	DocumentsDeleted []uuid.UUID `json:"documents_deleted,omitempty"`
	Warnings         []Warning   `json:"warnings,omitempty"`
}

// ProjectUpdated is the live event pushed over the websocket.
type ProjectUpdated struct {
	Type             string    `json:"type"`
	ProjectID        uuid.UUID `json:"projectId"`
	NewStage         string    `json:"newStage"`
	NewSpecialStatus string    `json:"newSpecialStatus"`
	Version          int       `json:"version"`
	ChangedBy        uuid.UUID `json:"changedBy"`
	OccurredAt       time.Time `json:"occurredAt"`
	Project          *Project  `json:"project,omitempty"`
}

// CreateProjectRequest creates a project.
type CreateProjectRequest struct {
	ClientID        uuid.UUID  `json:"client_id"`
	Name            string     `json:"name"`
	BudgetMinor     int64      `json:"budget_minor"`
	Currency        string     `json:"currency,omitempty"`
	PaymentTermDays *int       `json:"payment_term_days,omitempty"`
	IssueDate       *time.Time `json:"issue_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`
}

// StatusChange asks for a stage or special-status change.
type StatusChange struct {
	Target    string `json:"target"`
	Reason    string `json:"reason,omitempty"`
	Confirmed bool   `json:"confirmed,omitempty"`
}
