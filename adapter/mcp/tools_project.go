package mcp

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/slate/internal/projects/application/commands"
	"github.com/felixgeelhaar/slate/internal/projects/application/queries"
	"github.com/felixgeelhaar/slate/internal/projects/domain"
)

type projectIDInput struct {
	ProjectID string `json:"project_id" jsonschema:"required"`
}

type projectListInput struct {
	Stage         string `json:"stage,omitempty"`
	SpecialStatus string `json:"special_status,omitempty"`
	ClientID      string `json:"client_id,omitempty"`
	Limit         int    `json:"limit,omitempty"`
}

type projectCreateInput struct {
	Name            string `json:"name" jsonschema:"required"`
	ClientID        string `json:"client_id" jsonschema:"required"`
	BudgetMinor     int64  `json:"budget_minor,omitempty"`
	Currency        string `json:"currency,omitempty"`
	PaymentTermDays *int   `json:"payment_term_days,omitempty"`
	IssueDate       string `json:"issue_date,omitempty"`
	EndDate         string `json:"end_date,omitempty"`
}

type statusChangeInput struct {
	ProjectID string `json:"project_id" jsonschema:"required"`
	Target    string `json:"target" jsonschema:"required"`
	Reason    string `json:"reason,omitempty"`
	Confirmed bool   `json:"confirmed,omitempty"`
}

type historyInput struct {
	ProjectID string `json:"project_id" jsonschema:"required"`
	Kind      string `json:"kind,omitempty"`
}

// transitionOutput reports either the applied change or why it was refused.
// Refusals are results rather than tool errors so the caller can read the
// reason code and ask for confirmation.
type transitionOutput struct {
	Applied    bool                       `json:"applied"`
	Result     *commands.TransitionResult `json:"result,omitempty"`
	ReasonCode string                     `json:"reason_code,omitempty"`
	Message    string                     `json:"message,omitempty"`
	Unpaid     []domain.UnpaidDocument    `json:"unpaid,omitempty"`
}

func registerProjectTools(srv *mcp.Server, t *toolset) {
	srv.Tool("project.list").
		Description("List projects, optionally filtered by stage, special status or client").
		Handler(t.projectList)

	srv.Tool("project.show").
		Description("Show a project with its documents and the stages it can move to").
		Handler(t.projectShow)

	srv.Tool("project.create").
		Description("Create a project in the proposal stage. Budget is in minor units").
		Handler(t.projectCreate)

	srv.Tool("project.stage").
		Description("Move a project to another stage. Reverts and completion need confirmed=true").
		Handler(t.projectStage)

	srv.Tool("project.special").
		Description("Set a project's special status: none, delayed, paused or canceled").
		Handler(t.projectSpecial)

	srv.Tool("project.history").
		Description("List a project's status history, oldest first").
		Handler(t.projectHistory)

	srv.Tool("project.gate").
		Description("Check whether every financial document is paid so the project can complete").
		Handler(t.projectGate)
}

func (t *toolset) projectList(ctx context.Context, input projectListInput) ([]*queries.ProjectDTO, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}
	clientID, err := parseOptionalUUID(input.ClientID)
	if err != nil {
		return nil, err
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 50
	}
	return t.app.ListProjectsHandler.Handle(ctx, queries.ListProjectsQuery{
		ClientID:      clientID,
		Stage:         input.Stage,
		SpecialStatus: input.SpecialStatus,
		Limit:         limit,
	})
}

func (t *toolset) projectShow(ctx context.Context, input projectIDInput) (*queries.ProjectDetailDTO, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}
	id, err := parseUUID(input.ProjectID)
	if err != nil {
		return nil, err
	}
	return t.app.GetProjectHandler.Handle(ctx, queries.GetProjectQuery{ProjectID: id})
}

func (t *toolset) projectCreate(ctx context.Context, input projectCreateInput) (*queries.ProjectDTO, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}
	clientID, err := parseUUID(input.ClientID)
	if err != nil {
		return nil, err
	}
	issue, err := parseOptionalDate(input.IssueDate)
	if err != nil {
		return nil, err
	}
	end, err := parseOptionalDate(input.EndDate)
	if err != nil {
		return nil, err
	}
	return t.app.CreateProjectHandler.Handle(ctx, commands.CreateProjectCommand{
		UserID:          t.app.CurrentUserID,
		ClientID:        clientID,
		Name:            input.Name,
		BudgetMinor:     input.BudgetMinor,
		Currency:        input.Currency,
		PaymentTermDays: input.PaymentTermDays,
		IssueDate:       issue,
		EndDate:         end,
	})
}

func (t *toolset) projectStage(ctx context.Context, input statusChangeInput) (*transitionOutput, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}
	id, err := parseUUID(input.ProjectID)
	if err != nil {
		return nil, err
	}
	res, err := t.app.UpdateStageStatusHandler.Handle(ctx, commands.UpdateStageStatusCommand{
		ProjectID: id,
		UserID:    t.app.CurrentUserID,
		Target:    input.Target,
		Reason:    input.Reason,
		Confirmed: input.Confirmed,
	})
	return toTransitionOutput(res, err)
}

func (t *toolset) projectSpecial(ctx context.Context, input statusChangeInput) (*transitionOutput, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}
	id, err := parseUUID(input.ProjectID)
	if err != nil {
		return nil, err
	}
	res, err := t.app.UpdateSpecialStatusHandler.Handle(ctx, commands.UpdateSpecialStatusCommand{
		ProjectID: id,
		UserID:    t.app.CurrentUserID,
		Target:    input.Target,
		Reason:    input.Reason,
		Confirmed: input.Confirmed,
	})
	return toTransitionOutput(res, err)
}

func (t *toolset) projectHistory(ctx context.Context, input historyInput) ([]queries.HistoryDTO, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}
	id, err := parseUUID(input.ProjectID)
	if err != nil {
		return nil, err
	}
	return t.app.ListHistoryHandler.Handle(ctx, queries.ListHistoryQuery{ProjectID: id, Kind: input.Kind})
}

func (t *toolset) projectGate(ctx context.Context, input projectIDInput) (*queries.PaymentGateDTO, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}
	id, err := parseUUID(input.ProjectID)
	if err != nil {
		return nil, err
	}
	return t.app.CheckPaymentGateHandler.Handle(ctx, queries.CheckPaymentGateQuery{ProjectID: id})
}

func toTransitionOutput(res *commands.TransitionResult, err error) (*transitionOutput, error) {
	if err != nil {
		var terr *domain.TransitionError
		if errors.As(err, &terr) {
			return &transitionOutput{
				ReasonCode: string(terr.Code),
				Message:    terr.Message,
				Unpaid:     terr.Unpaid,
			}, nil
		}
		return nil, err
	}
	return &transitionOutput{Applied: !res.NoOp, Result: res, ReasonCode: res.ReasonCode, Message: res.Message}, nil
}
