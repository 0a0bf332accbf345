package commands

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/slate/internal/projects/application/queries"
	"github.com/felixgeelhaar/slate/internal/projects/domain"
	sharedApplication "github.com/felixgeelhaar/slate/internal/shared/application"
	"github.com/felixgeelhaar/slate/pkg/observability"
	"github.com/google/uuid"
)

// UpdateSpecialStatusCommand replaces a project's special status.
type UpdateSpecialStatusCommand struct {
	ProjectID uuid.UUID
	UserID    uuid.UUID
	Target    string
	Reason    string
	Confirmed bool
}

// UpdateSpecialStatusHandler sets the overlay flag. It never touches the
// stage or financial documents.
type UpdateSpecialStatusHandler struct {
	deps Dependencies
}

// NewUpdateSpecialStatusHandler creates a new UpdateSpecialStatusHandler.
func NewUpdateSpecialStatusHandler(deps Dependencies) *UpdateSpecialStatusHandler {
	return &UpdateSpecialStatusHandler{deps: deps.withDefaults()}
}

// Handle executes the UpdateSpecialStatusCommand.
func (h *UpdateSpecialStatusHandler) Handle(ctx context.Context, cmd UpdateSpecialStatusCommand) (*TransitionResult, error) {
	d := h.deps

	target, err := domain.ParseSpecialStatus(cmd.Target)
	if err != nil {
		return nil, err
	}
	if err := d.Users.EnsureExists(ctx, cmd.UserID); err != nil {
		return nil, err
	}

	var (
		result          *TransitionResult
		from            domain.SpecialStatus
		loadedVersion   int
		previousVersion int
	)

	err = sharedApplication.WithUnitOfWork(ctx, d.UoW, func(txCtx context.Context) error {
		project, err := d.Projects.FindByID(txCtx, cmd.ProjectID)
		if err != nil {
			return err
		}
		loadedVersion = project.Version()
		from = project.SpecialStatus()

		if from == target {
			result = &TransitionResult{
				Project:    queries.ToProjectDTO(project),
				NoOp:       true,
				Kind:       string(domain.TransitionNone),
				ReasonCode: string(domain.ReasonNoOp),
				Message:    "special status is already " + target.Label(),
			}
			return nil
		}
		if target == domain.SpecialCanceled && d.Policy.CancelRequiresConfirmation && !cmd.Confirmed {
			return &domain.TransitionError{
				Code:    domain.ReasonConfirmationRequired,
				Message: "canceling blocks all stage changes until the flag is cleared",
			}
		}

		project.ApplySpecialStatus(target, cmd.Reason, cmd.UserID)

		previousVersion, err = d.Projects.Save(txCtx, project)
		if err != nil {
			return err
		}
		if err := d.appendHistory(txCtx, domain.NewSpecialRecord(project.ID(), from, target, cmd.Reason, cmd.UserID)); err != nil {
			return err
		}
		if err := d.saveEvents(txCtx, cmd.UserID, project.PullDomainEvents()); err != nil {
			return err
		}

		result = &TransitionResult{
			Project: queries.ToProjectDTO(project),
			Kind:    "special",
		}
		return nil
	})
	if err != nil {
		var terr *domain.TransitionError
		if errors.As(err, &terr) {
			d.Metrics.Counter(observability.MetricTransitionsRejected, 1, observability.T("reason", string(terr.Code)))
		} else if !errors.Is(err, domain.ErrProjectNotFound) {
			d.Logger.ErrorContext(ctx, "special status change failed",
				observability.ProjectIDKey, cmd.ProjectID,
				observability.ErrorKey, err,
			)
		}
		return nil, err
	}
	if result.NoOp {
		return result, nil
	}

	d.checkOverwrite(ctx, cmd.ProjectID, loadedVersion, previousVersion)
	d.Metrics.Counter(observability.MetricSpecialChanges, 1, observability.T("to", target.String()))
	d.Logger.InfoContext(ctx, "special status changed",
		observability.ProjectIDKey, cmd.ProjectID,
		"from", from,
		"special_status", target,
		observability.UserIDKey, cmd.UserID,
	)

	if w := d.broadcast(ctx, result.Project, cmd.UserID); w != nil {
		result.Warnings = append(result.Warnings, *w)
	}
	return result, nil
}
