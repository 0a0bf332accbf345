package domain

import (
	"strings"
	"time"

	sharedDomain "github.com/felixgeelhaar/slate/internal/shared/domain"
	"github.com/google/uuid"
)

// AggregateType identifies projects in events and the outbox.
const AggregateType = "Project"

// DefaultCurrency is used when a project is created without one.
const DefaultCurrency = "EUR"

// DefaultPaymentTermDays is the fallback invoice payment term.
const DefaultPaymentTermDays = 30

// Project is an audiovisual production engagement moving through the
// stage pipeline. The special status is an orthogonal overlay.
type Project struct {
	sharedDomain.BaseAggregateRoot
	clientID        uuid.UUID
	name            string
	budgetMinor     int64
	currency        string
	paymentTermDays int
	stage           StageStatus
	special         SpecialStatus
	issueDate       *time.Time
	endDate         *time.Time
}

// NewProject creates a project at proposal with no special status.
func NewProject(clientID uuid.UUID, name string, budgetMinor int64, currency string, paymentTermDays int) (*Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if budgetMinor < 0 {
		return nil, ErrInvalidBudget
	}
	if paymentTermDays < 0 {
		return nil, ErrInvalidPaymentTerm
	}
	if currency == "" {
		currency = DefaultCurrency
	}

	p := &Project{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		clientID:          clientID,
		name:              name,
		budgetMinor:       budgetMinor,
		currency:          strings.ToUpper(currency),
		paymentTermDays:   paymentTermDays,
		stage:             StageProposal,
		special:           SpecialNone,
	}
	p.AddDomainEvent(NewProjectCreated(p))
	return p, nil
}

// RehydrateProject recreates a project from persisted state.
func RehydrateProject(
	id, clientID uuid.UUID,
	name string,
	budgetMinor int64,
	currency string,
	paymentTermDays int,
	stage StageStatus,
	special SpecialStatus,
	issueDate, endDate *time.Time,
	version int,
	createdAt, updatedAt time.Time,
) *Project {
	return &Project{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(
			sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
			version,
		),
		clientID:        clientID,
		name:            name,
		budgetMinor:     budgetMinor,
		currency:        currency,
		paymentTermDays: paymentTermDays,
		stage:           stage,
		special:         special,
		issueDate:       issueDate,
		endDate:         endDate,
	}
}

// Getters
func (p *Project) ClientID() uuid.UUID          { return p.clientID }
func (p *Project) Name() string                 { return p.name }
func (p *Project) BudgetMinor() int64           { return p.budgetMinor }
func (p *Project) Currency() string             { return p.currency }
func (p *Project) PaymentTermDays() int         { return p.paymentTermDays }
func (p *Project) Stage() StageStatus           { return p.stage }
func (p *Project) SpecialStatus() SpecialStatus { return p.special }
func (p *Project) IssueDate() *time.Time        { return p.issueDate }
func (p *Project) EndDate() *time.Time          { return p.endDate }

// SetName updates the project name.
func (p *Project) SetName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	p.name = name
	p.Touch()
	return nil
}

// SetBudget updates the budget.
func (p *Project) SetBudget(minor int64, currency string) error {
	if minor < 0 {
		return ErrInvalidBudget
	}
	p.budgetMinor = minor
	if currency != "" {
		p.currency = strings.ToUpper(currency)
	}
	p.Touch()
	return nil
}

// SetPaymentTermDays updates the invoice payment term.
func (p *Project) SetPaymentTermDays(days int) error {
	if days < 0 {
		return ErrInvalidPaymentTerm
	}
	p.paymentTermDays = days
	p.Touch()
	return nil
}

// SetSchedule updates the issue and end dates. Either may be nil.
func (p *Project) SetSchedule(issueDate, endDate *time.Time) {
	p.issueDate = issueDate
	p.endDate = endDate
	p.Touch()
}

// ApplyStage moves the project to target. Callers must have validated the
// move; ApplyStage only records it.
func (p *Project) ApplyStage(target StageStatus, reason string, changedBy uuid.UUID) {
	from := p.stage
	p.stage = target
	p.Touch()
	p.AddDomainEvent(NewStageChanged(p.ID(), from, target, reason, changedBy))
}

// ApplySpecialStatus replaces the special status.
func (p *Project) ApplySpecialStatus(target SpecialStatus, reason string, changedBy uuid.UUID) {
	from := p.special
	p.special = target
	p.Touch()
	p.AddDomainEvent(NewSpecialStatusChanged(p.ID(), from, target, reason, changedBy))
}
