package queries

import (
	"context"

	"github.com/felixgeelhaar/slate/internal/projects/domain"
	"github.com/google/uuid"
)

// ListHistoryQuery asks for a project's status history.
type ListHistoryQuery struct {
	ProjectID uuid.UUID
	// Kind optionally restricts the result to "stage" or "special" records.
	Kind string
}

// ListHistoryHandler handles the ListHistoryQuery.
type ListHistoryHandler struct {
	projectRepo domain.Repository
	historyRepo domain.HistoryRepository
}

// NewListHistoryHandler creates a new ListHistoryHandler.
func NewListHistoryHandler(projectRepo domain.Repository, historyRepo domain.HistoryRepository) *ListHistoryHandler {
	return &ListHistoryHandler{projectRepo: projectRepo, historyRepo: historyRepo}
}

// Handle returns the records oldest first.
func (h *ListHistoryHandler) Handle(ctx context.Context, query ListHistoryQuery) ([]HistoryDTO, error) {
	if _, err := h.projectRepo.FindByID(ctx, query.ProjectID); err != nil {
		return nil, err
	}

	records, err := h.historyRepo.ListByProject(ctx, query.ProjectID)
	if err != nil {
		return nil, err
	}

	out := make([]HistoryDTO, 0, len(records))
	for _, r := range records {
		if query.Kind != "" && string(r.Kind) != query.Kind {
			continue
		}
		out = append(out, toHistoryDTO(r))
	}
	return out, nil
}
