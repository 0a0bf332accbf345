package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/slate/internal/projects/application/queries"
	"github.com/felixgeelhaar/slate/internal/projects/domain"
	sharedApplication "github.com/felixgeelhaar/slate/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/slate/internal/shared/domain"
	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/slate/pkg/observability"
	"github.com/google/uuid"
)

// FinancialSync applies the invoice side effects of stage transitions
// inside the caller's transaction.
type FinancialSync interface {
	// EnsureInvoice creates the acceptance invoice unless one is outstanding.
	// It returns uuid.Nil when nothing was created.
	EnsureInvoice(ctx context.Context, p *domain.Project, actor uuid.UUID) (uuid.UUID, error)
	// RevertSideEffects removes pending, unpaid documents. Its errors are
	// never fatal to the transition.
	RevertSideEffects(ctx context.Context, projectID, actor uuid.UUID) ([]uuid.UUID, error)
}

// UserDirectory resolves acting users.
type UserDirectory interface {
	EnsureExists(ctx context.Context, id uuid.UUID) error
}

// Warning codes returned alongside successful transitions.
const (
	WarningInvoiceRemovalFailed = "INVOICE_REMOVAL_FAILED"
	WarningBroadcastFailed      = "BROADCAST_FAILED"
)

// Warning is a non-fatal problem that did not stop the transition.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Policy holds the coordinator settings that are not validator rules.
type Policy struct {
	CancelRequiresConfirmation bool
	// DefaultPaymentTermDays applies to projects created without a term.
	DefaultPaymentTermDays int
}

// DefaultPolicy asks for confirmation before cancelling.
func DefaultPolicy() Policy {
	return Policy{
		CancelRequiresConfirmation: true,
		DefaultPaymentTermDays:     domain.DefaultPaymentTermDays,
	}
}

// Dependencies are shared by the status command handlers.
type Dependencies struct {
	Projects  domain.Repository
	History   domain.HistoryRepository
	Validator *domain.Validator
	Sync      FinancialSync
	Users     UserDirectory
	Outbox    outbox.Repository
	Publisher eventbus.Publisher
	UoW       sharedApplication.UnitOfWork
	Policy    Policy
	Logger    *slog.Logger
	Metrics   observability.Metrics
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = observability.NoopMetrics{}
	}
	if d.Policy.DefaultPaymentTermDays <= 0 {
		d.Policy.DefaultPaymentTermDays = domain.DefaultPaymentTermDays
	}
	return d
}

func (d Dependencies) saveEvents(ctx context.Context, actor uuid.UUID, events []sharedDomain.DomainEvent) error {
	if d.Outbox == nil || len(events) == 0 {
		return nil
	}
	sharedApplication.ApplyEventMetadata(events, sharedApplication.EventMetadataFromContext(ctx, actor))
	msgs, err := outbox.NewMessages(events)
	if err != nil {
		return fmt.Errorf("encode events: %w", err)
	}
	return d.Outbox.Save(ctx, msgs...)
}

// appendHistory wraps every history failure so that it aborts the unit of work.
func (d Dependencies) appendHistory(ctx context.Context, rec domain.StatusHistoryRecord) error {
	if err := d.History.Append(ctx, rec); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrHistoryWriteFailure, err)
	}
	return nil
}

// checkOverwrite logs when the row changed between our read and our write.
func (d Dependencies) checkOverwrite(ctx context.Context, projectID uuid.UUID, loaded, previous int) {
	if previous == loaded {
		return
	}
	d.Metrics.Counter(observability.MetricConcurrentOverwrite, 1)
	d.Logger.WarnContext(ctx, "concurrent overwrite",
		observability.ProjectIDKey, projectID,
		"loaded_version", loaded,
		"overwritten_version", previous,
	)
}

// broadcast publishes the committed state. Failures come back as a warning.
func (d Dependencies) broadcast(ctx context.Context, project *queries.ProjectDTO, changedBy uuid.UUID) *Warning {
	if d.Publisher == nil || project == nil {
		return nil
	}
	topic := Topic(project.ID)
	payload, err := NewProjectUpdated(project, changedBy).Marshal()
	if err == nil {
		err = d.Publisher.Publish(ctx, topic, payload)
	}
	if err != nil {
		d.Metrics.Counter(observability.MetricBroadcastFailures, 1)
		d.Logger.WarnContext(ctx, "broadcast failed",
			observability.ProjectIDKey, project.ID,
			"topic", topic,
			observability.ErrorKey, err,
		)
		return &Warning{Code: WarningBroadcastFailed, Message: err.Error()}
	}
	d.Metrics.Counter(observability.MetricBroadcasts, 1)
	return nil
}
