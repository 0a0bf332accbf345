package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/slate/internal/billing/domain"
	projectsDomain "github.com/felixgeelhaar/slate/internal/projects/domain"
	sharedApplication "github.com/felixgeelhaar/slate/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/slate/internal/shared/domain"
	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/slate/pkg/observability"
	"github.com/google/uuid"
)

// revertSavepoint scopes invoice deletion inside the transition transaction.
const revertSavepoint = "revert_invoices"

// Config tunes invoice generation.
type Config struct {
	InvoiceDueHour int
}

// DefaultConfig pins invoice dates to midday UTC.
func DefaultConfig() Config {
	return Config{InvoiceDueHour: domain.DefaultInvoiceDueHour}
}

// Service owns financial documents: the payment gate, the invoice side
// effects of stage transitions, and settlement.
type Service struct {
	docs    domain.Repository
	outbox  outbox.Repository
	uow     sharedApplication.UnitOfWork
	cfg     Config
	now     func() time.Time
	logger  *slog.Logger
	metrics observability.Metrics
}

// NewService creates a new billing service.
func NewService(
	docs domain.Repository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	cfg Config,
	logger *slog.Logger,
	metrics observability.Metrics,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Service{
		docs:    docs,
		outbox:  outboxRepo,
		uow:     uow,
		cfg:     cfg,
		now:     time.Now,
		logger:  logger,
		metrics: metrics,
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CanComplete is the payment gate. A project with no documents, or with any
// unpaid document, may not complete.
func (s *Service) CanComplete(ctx context.Context, projectID uuid.UUID) (projectsDomain.GateResult, error) {
	docs, err := s.docs.ListByProject(ctx, projectID)
	if err != nil {
		return projectsDomain.GateResult{}, fmt.Errorf("list documents: %w", err)
	}
	if len(docs) == 0 {
		return projectsDomain.GateResult{NoDocuments: true}, nil
	}

	var unpaid []projectsDomain.UnpaidDocument
	for _, d := range docs {
		if d.IsPaid() {
			continue
		}
		due := d.DueDate()
		unpaid = append(unpaid, projectsDomain.UnpaidDocument{
			ID:           d.ID(),
			DocumentType: string(d.DocumentType()),
			AmountMinor:  d.AmountMinor(),
			Currency:     d.Currency(),
			DueDate:      &due,
		})
	}
	return projectsDomain.GateResult{OK: len(unpaid) == 0, Unpaid: unpaid}, nil
}

// EnsureInvoice creates the auto-generated invoice for a project entering
// acceptance, unless one is already outstanding. It runs inside the caller's
// transaction and returns uuid.Nil when nothing was created. Any failure is
// fatal to the transition.
func (s *Service) EnsureInvoice(ctx context.Context, p *projectsDomain.Project, actor uuid.UUID) (uuid.UUID, error) {
	exists, err := s.docs.HasUnpaidInvoice(ctx, p.ID())
	if err != nil {
		return uuid.Nil, &projectsDomain.SideEffectError{Op: "create_invoice", Err: err, Fatal: true}
	}
	if exists {
		s.logger.DebugContext(ctx, "unpaid invoice already exists", observability.ProjectIDKey, p.ID())
		return uuid.Nil, nil
	}

	issue, due := domain.InvoiceDates(p.IssueDate(), p.EndDate(), s.now(), p.PaymentTermDays(), s.cfg.InvoiceDueHour)
	doc, err := domain.NewDocument(p.ID(), p.ClientID(), domain.DocumentInvoice,
		p.BudgetMinor(), p.Currency(), issue, due, true)
	if err != nil {
		return uuid.Nil, &projectsDomain.SideEffectError{Op: "create_invoice", Err: err, Fatal: true}
	}
	if err := s.docs.Save(ctx, doc); err != nil {
		return uuid.Nil, &projectsDomain.SideEffectError{Op: "create_invoice", Err: err, Fatal: true}
	}
	if err := s.saveEvents(ctx, actor, doc.PullDomainEvents()); err != nil {
		return uuid.Nil, &projectsDomain.SideEffectError{Op: "create_invoice", Err: err, Fatal: true}
	}

	s.metrics.Counter(observability.MetricInvoicesCreated, 1)
	s.logger.InfoContext(ctx, "invoice created",
		observability.ProjectIDKey, p.ID(),
		observability.DocumentIDKey, doc.ID(),
		"amount_minor", doc.AmountMinor(),
		"due_date", doc.DueDate().Format(time.DateOnly),
	)
	return doc.ID(), nil
}

// RevertSideEffects removes a project's pending, unpaid documents after it
// was moved back below acceptance. Deletion runs in a savepoint: a failure
// leaves the caller's transaction usable and comes back as a non-fatal
// SideEffectError.
func (s *Service) RevertSideEffects(ctx context.Context, projectID, actor uuid.UUID) ([]uuid.UUID, error) {
	var deleted []uuid.UUID
	err := sharedApplication.WithSavepoint(ctx, s.uow, revertSavepoint, func(ctx context.Context) error {
		docs, err := s.docs.DeletePendingUnpaid(ctx, projectID)
		if err != nil {
			return err
		}
		var events []sharedDomain.DomainEvent
		for _, d := range docs {
			d.MarkDeleted("stage reverted below accepted")
			events = append(events, d.PullDomainEvents()...)
			deleted = append(deleted, d.ID())
		}
		return s.saveEvents(ctx, actor, events)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "pending invoice removal failed",
			observability.ProjectIDKey, projectID,
			observability.ErrorKey, err,
		)
		return nil, &projectsDomain.SideEffectError{Op: "delete_invoices", Err: err}
	}

	if len(deleted) > 0 {
		s.metrics.Counter(observability.MetricInvoicesDeleted, int64(len(deleted)))
		s.logger.InfoContext(ctx, "pending invoices removed",
			observability.ProjectIDKey, projectID,
			"count", len(deleted),
		)
	}
	return deleted, nil
}

// CreateDocumentInput describes a manually issued document.
type CreateDocumentInput struct {
	ProjectID       uuid.UUID
	ClientID        uuid.UUID
	DocumentType    domain.DocumentType
	AmountMinor     int64
	Currency        string
	IssueDate       *time.Time
	PaymentTermDays int
	ActorID         uuid.UUID
}

// CreateDocument issues an invoice or quote outside the automatic flow.
func (s *Service) CreateDocument(ctx context.Context, in CreateDocumentInput) (*domain.FinancialDocument, error) {
	issue, due := domain.InvoiceDates(in.IssueDate, nil, s.now(), in.PaymentTermDays, s.cfg.InvoiceDueHour)
	doc, err := domain.NewDocument(in.ProjectID, in.ClientID, in.DocumentType,
		in.AmountMinor, in.Currency, issue, due, false)
	if err != nil {
		return nil, err
	}

	err = sharedApplication.WithUnitOfWork(ctx, s.uow, func(txCtx context.Context) error {
		if err := s.docs.Save(txCtx, doc); err != nil {
			return err
		}
		return s.saveEvents(txCtx, in.ActorID, doc.PullDomainEvents())
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// MarkDocumentPaid settles a document.
func (s *Service) MarkDocumentPaid(ctx context.Context, documentID, actor uuid.UUID) (*domain.FinancialDocument, error) {
	var doc *domain.FinancialDocument
	err := sharedApplication.WithUnitOfWork(ctx, s.uow, func(txCtx context.Context) error {
		var err error
		doc, err = s.docs.FindByID(txCtx, documentID)
		if err != nil {
			return err
		}
		if err := doc.MarkPaid(s.now(), actor); err != nil {
			return err
		}
		if err := s.docs.Save(txCtx, doc); err != nil {
			return err
		}
		return s.saveEvents(txCtx, actor, doc.PullDomainEvents())
	})
	if err != nil {
		if !errors.Is(err, domain.ErrDocumentNotFound) && !errors.Is(err, domain.ErrAlreadyPaid) {
			s.logger.ErrorContext(ctx, "mark document paid failed",
				observability.DocumentIDKey, documentID,
				observability.ErrorKey, err,
			)
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "document paid",
		observability.DocumentIDKey, doc.ID(),
		observability.ProjectIDKey, doc.ProjectID(),
	)
	return doc, nil
}

// ListDocuments returns a project's documents, oldest first.
func (s *Service) ListDocuments(ctx context.Context, projectID uuid.UUID) ([]*domain.FinancialDocument, error) {
	return s.docs.ListByProject(ctx, projectID)
}

func (s *Service) saveEvents(ctx context.Context, actor uuid.UUID, events []sharedDomain.DomainEvent) error {
	if len(events) == 0 || s.outbox == nil {
		return nil
	}
	sharedApplication.ApplyEventMetadata(events, sharedApplication.EventMetadataFromContext(ctx, actor))
	msgs, err := outbox.NewMessages(events)
	if err != nil {
		return fmt.Errorf("encode events: %w", err)
	}
	return s.outbox.Save(ctx, msgs...)
}
