package queries

import (
	"context"

	"github.com/felixgeelhaar/slate/internal/projects/domain"
	"github.com/google/uuid"
)

// PaymentGateDTO is the speculative answer to "could this project complete now".
type PaymentGateDTO struct {
	ProjectID   uuid.UUID               `json:"project_id"`
	CanComplete bool                    `json:"can_complete"`
	NoDocuments bool                    `json:"no_documents"`
	Unpaid      []domain.UnpaidDocument `json:"unpaid"`
}

// CheckPaymentGateQuery asks the payment gate without attempting a transition.
type CheckPaymentGateQuery struct {
	ProjectID uuid.UUID
}

// CheckPaymentGateHandler handles the CheckPaymentGateQuery.
type CheckPaymentGateHandler struct {
	projectRepo domain.Repository
	gate        domain.PaymentGate
}

// NewCheckPaymentGateHandler creates a new CheckPaymentGateHandler.
func NewCheckPaymentGateHandler(projectRepo domain.Repository, gate domain.PaymentGate) *CheckPaymentGateHandler {
	return &CheckPaymentGateHandler{projectRepo: projectRepo, gate: gate}
}

// Handle executes the CheckPaymentGateQuery. It never writes.
func (h *CheckPaymentGateHandler) Handle(ctx context.Context, query CheckPaymentGateQuery) (*PaymentGateDTO, error) {
	if _, err := h.projectRepo.FindByID(ctx, query.ProjectID); err != nil {
		return nil, err
	}
	res, err := h.gate.CanComplete(ctx, query.ProjectID)
	if err != nil {
		return nil, err
	}
	unpaid := res.Unpaid
	if unpaid == nil {
		unpaid = []domain.UnpaidDocument{}
	}
	return &PaymentGateDTO{
		ProjectID:   query.ProjectID,
		CanComplete: res.OK,
		NoDocuments: res.NoDocuments,
		Unpaid:      unpaid,
	}, nil
}
