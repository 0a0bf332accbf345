package queries

import (
	"context"

	billingDomain "github.com/felixgeelhaar/slate/internal/billing/domain"
	"github.com/felixgeelhaar/slate/internal/projects/domain"
	"github.com/google/uuid"
)

// DocumentLister returns a project's financial documents.
type DocumentLister interface {
	ListDocuments(ctx context.Context, projectID uuid.UUID) ([]*billingDomain.FinancialDocument, error)
}

// ProjectDetailDTO is a project with its documents and the stages it may be
// asked to move to.
type ProjectDetailDTO struct {
	Project       *ProjectDTO   `json:"project"`
	Documents     []DocumentDTO `json:"documents"`
	AllowedStages []string      `json:"allowed_stages"`
}

// GetProjectQuery contains the parameters for getting a project.
type GetProjectQuery struct {
	ProjectID uuid.UUID
}

// GetProjectHandler handles the GetProjectQuery.
type GetProjectHandler struct {
	projectRepo domain.Repository
	documents   DocumentLister
}

// NewGetProjectHandler creates a new GetProjectHandler.
func NewGetProjectHandler(projectRepo domain.Repository, documents DocumentLister) *GetProjectHandler {
	return &GetProjectHandler{projectRepo: projectRepo, documents: documents}
}

// Handle executes the GetProjectQuery.
func (h *GetProjectHandler) Handle(ctx context.Context, query GetProjectQuery) (*ProjectDetailDTO, error) {
	project, err := h.projectRepo.FindByID(ctx, query.ProjectID)
	if err != nil {
		return nil, err
	}

	detail := &ProjectDetailDTO{
		Project:   ToProjectDTO(project),
		Documents: []DocumentDTO{},
	}

	// A canceled project cannot move anywhere until the flag is cleared.
	if !project.SpecialStatus().BlocksStageChange() {
		for _, s := range project.Stage().AllowedTargets() {
			detail.AllowedStages = append(detail.AllowedStages, s.String())
		}
	}

	if h.documents != nil {
		docs, err := h.documents.ListDocuments(ctx, project.ID())
		if err != nil {
			return nil, err
		}
		for _, d := range docs {
			detail.Documents = append(detail.Documents, ToDocumentDTO(d))
		}
	}
	return detail, nil
}
