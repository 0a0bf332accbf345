package commands

import (
	"context"
	"time"

	"github.com/felixgeelhaar/slate/internal/projects/application/queries"
	"github.com/felixgeelhaar/slate/internal/projects/domain"
	sharedApplication "github.com/felixgeelhaar/slate/internal/shared/application"
	"github.com/felixgeelhaar/slate/pkg/observability"
	"github.com/google/uuid"
)

// CreateProjectCommand contains the data needed to create a project.
type CreateProjectCommand struct {
	UserID          uuid.UUID
	ClientID        uuid.UUID
	Name            string
	BudgetMinor     int64
	Currency        string
	PaymentTermDays *int
	IssueDate       *time.Time
	EndDate         *time.Time
}

// CreateProjectHandler handles project creation.
type CreateProjectHandler struct {
	deps Dependencies
}

// NewCreateProjectHandler creates a new CreateProjectHandler.
func NewCreateProjectHandler(deps Dependencies) *CreateProjectHandler {
	return &CreateProjectHandler{deps: deps.withDefaults()}
}

// Handle creates the project at proposal and records the creation in its
// status history.
func (h *CreateProjectHandler) Handle(ctx context.Context, cmd CreateProjectCommand) (*queries.ProjectDTO, error) {
	d := h.deps
	if err := d.Users.EnsureExists(ctx, cmd.UserID); err != nil {
		return nil, err
	}

	term := d.Policy.DefaultPaymentTermDays
	if cmd.PaymentTermDays != nil {
		term = *cmd.PaymentTermDays
	}
	project, err := domain.NewProject(cmd.ClientID, cmd.Name, cmd.BudgetMinor, cmd.Currency, term)
	if err != nil {
		return nil, err
	}
	project.SetSchedule(cmd.IssueDate, cmd.EndDate)

	err = sharedApplication.WithUnitOfWork(ctx, d.UoW, func(txCtx context.Context) error {
		if _, err := d.Projects.Save(txCtx, project); err != nil {
			return err
		}
		if err := d.appendHistory(txCtx, domain.NewStageRecord(project.ID(), "", project.Stage(), "created", cmd.UserID)); err != nil {
			return err
		}
		return d.saveEvents(txCtx, cmd.UserID, project.PullDomainEvents())
	})
	if err != nil {
		return nil, err
	}

	d.Logger.InfoContext(ctx, "project created",
		observability.ProjectIDKey, project.ID(),
		"client_id", project.ClientID(),
		observability.UserIDKey, cmd.UserID,
	)
	return queries.ToProjectDTO(project), nil
}
