package commands

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/slate/internal/projects/application/queries"
	"github.com/felixgeelhaar/slate/internal/projects/domain"
	sharedApplication "github.com/felixgeelhaar/slate/internal/shared/application"
	"github.com/felixgeelhaar/slate/pkg/observability"
	"github.com/google/uuid"
)

// UpdateStageStatusCommand asks to move a project to another stage.
type UpdateStageStatusCommand struct {
	ProjectID uuid.UUID
	UserID    uuid.UUID
	Target    string
	Reason    string
	// Confirmed acknowledges a consequential change the user was warned about.
	Confirmed bool
}

// TransitionResult describes an accepted (or no-op) status change.
type TransitionResult struct {
	Project          *queries.ProjectDTO `json:"project"`
	NoOp             bool                `json:"no_op"`
	Kind             string              `json:"kind"`
	ReasonCode       string              `json:"reason_code,omitempty"`
	Message          string              `json:"message,omitempty"`
	InvoiceCreated   *uuid.UUID          `json:"invoice_created,omitempty"`
	DocumentsDeleted []uuid.UUID         `json:"documents_deleted,omitempty"`
	Warnings         []Warning           `json:"warnings,omitempty"`
}

// UpdateStageStatusHandler coordinates a stage transition: validation,
// confirmation, financial side effects, persistence, history, integration
// events and, after commit, the live broadcast. Everything up to the
// broadcast shares one transaction.
type UpdateStageStatusHandler struct {
	deps Dependencies
}

// NewUpdateStageStatusHandler creates a new UpdateStageStatusHandler.
func NewUpdateStageStatusHandler(deps Dependencies) *UpdateStageStatusHandler {
	return &UpdateStageStatusHandler{deps: deps.withDefaults()}
}

// Handle executes the UpdateStageStatusCommand.
func (h *UpdateStageStatusHandler) Handle(ctx context.Context, cmd UpdateStageStatusCommand) (*TransitionResult, error) {
	d := h.deps
	start := time.Now()

	target, err := domain.ParseStageStatus(cmd.Target)
	if err != nil {
		return nil, err
	}
	if err := d.Users.EnsureExists(ctx, cmd.UserID); err != nil {
		return nil, err
	}

	var (
		result          *TransitionResult
		from            domain.StageStatus
		loadedVersion   int
		previousVersion int
	)

	err = sharedApplication.WithUnitOfWork(ctx, d.UoW, func(txCtx context.Context) error {
		project, err := d.Projects.FindByID(txCtx, cmd.ProjectID)
		if err != nil {
			return err
		}
		loadedVersion = project.Version()
		from = project.Stage()

		outcome, err := d.Validator.Validate(txCtx, project, target)
		if err != nil {
			return err
		}
		if outcome.IsNoOp() {
			result = &TransitionResult{
				Project:    queries.ToProjectDTO(project),
				NoOp:       true,
				Kind:       string(outcome.Kind),
				ReasonCode: string(outcome.ReasonCode),
				Message:    outcome.Message,
			}
			return nil
		}
		if err := outcome.Err(); err != nil {
			return err
		}
		if outcome.RequiresConfirmation && !cmd.Confirmed {
			return &domain.TransitionError{Code: domain.ReasonConfirmationRequired, Message: outcome.Message}
		}

		project.ApplyStage(target, cmd.Reason, cmd.UserID)
		result = &TransitionResult{
			Kind:       string(outcome.Kind),
			ReasonCode: string(outcome.ReasonCode),
			Message:    outcome.Message,
		}

		switch {
		case domain.EntersBilling(from, target):
			id, err := d.Sync.EnsureInvoice(txCtx, project, cmd.UserID)
			if err != nil {
				return err
			}
			if id != uuid.Nil {
				result.InvoiceCreated = &id
				if err := d.Validator.RecheckPaymentGate(txCtx, project, target); err != nil {
					return err
				}
			}
		case domain.LeavesBilling(from, target):
			deleted, err := d.Sync.RevertSideEffects(txCtx, project.ID(), cmd.UserID)
			if err != nil {
				d.Metrics.Counter(observability.MetricSideEffectWarnings, 1)
				result.Warnings = append(result.Warnings, Warning{Code: WarningInvoiceRemovalFailed, Message: err.Error()})
			}
			result.DocumentsDeleted = deleted
		}

		previousVersion, err = d.Projects.Save(txCtx, project)
		if err != nil {
			return err
		}
		if err := d.appendHistory(txCtx, domain.NewStageRecord(project.ID(), from, target, cmd.Reason, cmd.UserID)); err != nil {
			return err
		}
		if err := d.saveEvents(txCtx, cmd.UserID, project.PullDomainEvents()); err != nil {
			return err
		}

		result.Project = queries.ToProjectDTO(project)
		return nil
	})
	if err != nil {
		h.logRejection(ctx, cmd, target, err)
		return nil, err
	}
	if result.NoOp {
		return result, nil
	}

	d.checkOverwrite(ctx, cmd.ProjectID, loadedVersion, previousVersion)
	d.Metrics.Counter(observability.MetricTransitionsTotal, 1,
		observability.T("kind", result.Kind), observability.T("to", target.String()))
	d.Metrics.Timing(observability.MetricTransitionDuration, time.Since(start))
	d.Logger.InfoContext(ctx, "stage changed",
		observability.ProjectIDKey, cmd.ProjectID,
		"from", from,
		"to", target,
		observability.UserIDKey, cmd.UserID,
		"version", result.Project.Version,
	)

	if w := d.broadcast(ctx, result.Project, cmd.UserID); w != nil {
		result.Warnings = append(result.Warnings, *w)
	}
	return result, nil
}

func (h *UpdateStageStatusHandler) logRejection(ctx context.Context, cmd UpdateStageStatusCommand, target domain.StageStatus, err error) {
	var terr *domain.TransitionError
	if errors.As(err, &terr) {
		h.deps.Metrics.Counter(observability.MetricTransitionsRejected, 1, observability.T("reason", string(terr.Code)))
		h.deps.Logger.InfoContext(ctx, "stage change rejected",
			observability.ProjectIDKey, cmd.ProjectID,
			"to", target,
			observability.ReasonCodeKey, terr.Code,
		)
		return
	}
	if errors.Is(err, domain.ErrProjectNotFound) {
		return
	}
	h.deps.Logger.ErrorContext(ctx, "stage change failed",
		observability.ProjectIDKey, cmd.ProjectID,
		"to", target,
		observability.ErrorKey, err,
	)
}
