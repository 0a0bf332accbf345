package queries

import (
	"context"

	"github.com/felixgeelhaar/slate/internal/projects/domain"
	"github.com/google/uuid"
)

// ListProjectsQuery contains the parameters for listing projects.
type ListProjectsQuery struct {
	ClientID      *uuid.UUID
	Stage         string // optional stage filter
	SpecialStatus string // optional special-status filter
	Limit         int
	Offset        int
}

// ListProjectsHandler handles the ListProjectsQuery.
type ListProjectsHandler struct {
	projectRepo domain.Repository
}

// NewListProjectsHandler creates a new ListProjectsHandler.
func NewListProjectsHandler(projectRepo domain.Repository) *ListProjectsHandler {
	return &ListProjectsHandler{projectRepo: projectRepo}
}

// Handle executes the ListProjectsQuery.
func (h *ListProjectsHandler) Handle(ctx context.Context, query ListProjectsQuery) ([]*ProjectDTO, error) {
	filter := domain.ListFilter{
		ClientID: query.ClientID,
		Limit:    query.Limit,
		Offset:   query.Offset,
	}
	if query.Stage != "" {
		stage, err := domain.ParseStageStatus(query.Stage)
		if err != nil {
			return nil, err
		}
		filter.Stage = &stage
	}
	if query.SpecialStatus != "" {
		special, err := domain.ParseSpecialStatus(query.SpecialStatus)
		if err != nil {
			return nil, err
		}
		filter.Special = &special
	}

	projects, err := h.projectRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := make([]*ProjectDTO, 0, len(projects))
	for _, p := range projects {
		out = append(out, ToProjectDTO(p))
	}
	return out, nil
}
