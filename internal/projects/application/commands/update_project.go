package commands

import (
	"context"
	"time"

	"github.com/felixgeelhaar/slate/internal/projects/application/queries"
	sharedApplication "github.com/felixgeelhaar/slate/internal/shared/application"
	"github.com/google/uuid"
)

// UpdateProjectCommand edits the descriptive fields of a project. Nil fields
// are left unchanged. Statuses are changed through their own commands.
type UpdateProjectCommand struct {
	ProjectID       uuid.UUID
	UserID          uuid.UUID
	Name            *string
	BudgetMinor     *int64
	Currency        *string
	PaymentTermDays *int
	IssueDate       *time.Time
	EndDate         *time.Time
	ClearSchedule   bool
}

// UpdateProjectHandler handles project edits.
type UpdateProjectHandler struct {
	deps Dependencies
}

// NewUpdateProjectHandler creates a new UpdateProjectHandler.
func NewUpdateProjectHandler(deps Dependencies) *UpdateProjectHandler {
	return &UpdateProjectHandler{deps: deps.withDefaults()}
}

// Handle executes the UpdateProjectCommand.
func (h *UpdateProjectHandler) Handle(ctx context.Context, cmd UpdateProjectCommand) (*queries.ProjectDTO, error) {
	d := h.deps
	if err := d.Users.EnsureExists(ctx, cmd.UserID); err != nil {
		return nil, err
	}

	var (
		dto                        *queries.ProjectDTO
		loadedVersion, prevVersion int
	)
	err := sharedApplication.WithUnitOfWork(ctx, d.UoW, func(txCtx context.Context) error {
		project, err := d.Projects.FindByID(txCtx, cmd.ProjectID)
		if err != nil {
			return err
		}
		loadedVersion = project.Version()

		if cmd.Name != nil {
			if err := project.SetName(*cmd.Name); err != nil {
				return err
			}
		}
		if cmd.BudgetMinor != nil || cmd.Currency != nil {
			budget, currency := project.BudgetMinor(), project.Currency()
			if cmd.BudgetMinor != nil {
				budget = *cmd.BudgetMinor
			}
			if cmd.Currency != nil {
				currency = *cmd.Currency
			}
			if err := project.SetBudget(budget, currency); err != nil {
				return err
			}
		}
		if cmd.PaymentTermDays != nil {
			if err := project.SetPaymentTermDays(*cmd.PaymentTermDays); err != nil {
				return err
			}
		}
		switch {
		case cmd.ClearSchedule:
			project.SetSchedule(nil, nil)
		case cmd.IssueDate != nil || cmd.EndDate != nil:
			issue, end := project.IssueDate(), project.EndDate()
			if cmd.IssueDate != nil {
				issue = cmd.IssueDate
			}
			if cmd.EndDate != nil {
				end = cmd.EndDate
			}
			project.SetSchedule(issue, end)
		}

		prevVersion, err = d.Projects.Save(txCtx, project)
		if err != nil {
			return err
		}
		dto = queries.ToProjectDTO(project)
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.checkOverwrite(ctx, cmd.ProjectID, loadedVersion, prevVersion)
	return dto, nil
}

// DeleteProjectCommand removes a project together with its documents and history.
type DeleteProjectCommand struct {
	ProjectID uuid.UUID
	UserID    uuid.UUID
}

// DeleteProjectHandler handles project deletion.
type DeleteProjectHandler struct {
	deps Dependencies
}

// NewDeleteProjectHandler creates a new DeleteProjectHandler.
func NewDeleteProjectHandler(deps Dependencies) *DeleteProjectHandler {
	return &DeleteProjectHandler{deps: deps.withDefaults()}
}

// Handle executes the DeleteProjectCommand.
func (h *DeleteProjectHandler) Handle(ctx context.Context, cmd DeleteProjectCommand) error {
	d := h.deps
	if err := d.Users.EnsureExists(ctx, cmd.UserID); err != nil {
		return err
	}
	return sharedApplication.WithUnitOfWork(ctx, d.UoW, func(txCtx context.Context) error {
		if _, err := d.Projects.FindByID(txCtx, cmd.ProjectID); err != nil {
			return err
		}
		return d.Projects.Delete(txCtx, cmd.ProjectID)
	})
}
