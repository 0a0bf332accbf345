package domain

import (
	sharedDomain "github.com/felixgeelhaar/slate/internal/shared/domain"
	"github.com/google/uuid"
)

// Routing keys for project events.
const (
	RoutingKeyProjectCreated      = "projects.project.created"
	RoutingKeyStageChanged        = "projects.project.stage_changed"
	RoutingKeySpecialStatusChange = "projects.project.special_status_changed"
)

// ProjectCreated is raised when a project is created.
type ProjectCreated struct {
	sharedDomain.BaseEvent
	ProjectID uuid.UUID   `json:"project_id"`
	ClientID  uuid.UUID   `json:"client_id"`
	Name      string      `json:"name"`
	Stage     StageStatus `json:"stage"`
}

func NewProjectCreated(p *Project) *ProjectCreated {
	return &ProjectCreated{
		BaseEvent: sharedDomain.NewBaseEvent(p.ID(), AggregateType, RoutingKeyProjectCreated),
		ProjectID: p.ID(),
		ClientID:  p.ClientID(),
		Name:      p.Name(),
		Stage:     p.Stage(),
	}
}

// StageChanged is raised for every accepted stage transition.
type StageChanged struct {
	sharedDomain.BaseEvent
	ProjectID uuid.UUID   `json:"project_id"`
	From      StageStatus `json:"from"`
	To        StageStatus `json:"to"`
	Revert    bool        `json:"revert"`
	Reason    string      `json:"reason,omitempty"`
	ChangedBy uuid.UUID   `json:"changed_by"`
}

func NewStageChanged(projectID uuid.UUID, from, to StageStatus, reason string, changedBy uuid.UUID) *StageChanged {
	return &StageChanged{
		BaseEvent: sharedDomain.NewBaseEvent(projectID, AggregateType, RoutingKeyStageChanged),
		ProjectID: projectID,
		From:      from,
		To:        to,
		Revert:    !IsForward(from, to),
		Reason:    reason,
		ChangedBy: changedBy,
	}
}

// SpecialStatusChanged is raised when the overlay flag is replaced.
type SpecialStatusChanged struct {
	sharedDomain.BaseEvent
	ProjectID uuid.UUID     `json:"project_id"`
	From      SpecialStatus `json:"from"`
	To        SpecialStatus `json:"to"`
	Reason    string        `json:"reason,omitempty"`
	ChangedBy uuid.UUID     `json:"changed_by"`
}

func NewSpecialStatusChanged(projectID uuid.UUID, from, to SpecialStatus, reason string, changedBy uuid.UUID) *SpecialStatusChanged {
	return &SpecialStatusChanged{
		BaseEvent: sharedDomain.NewBaseEvent(projectID, AggregateType, RoutingKeySpecialStatusChange),
		ProjectID: projectID,
		From:      from,
		To:        to,
		Reason:    reason,
		ChangedBy: changedBy,
	}
}
