package commands

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/felixgeelhaar/slate/internal/projects/application/queries"
	"github.com/google/uuid"
)

// ProjectUpdatedType is the live event type sent to subscribers.
const ProjectUpdatedType = "project_updated"

// TopicPrefix starts every per-project broadcast topic.
const TopicPrefix = "project."

// Topic is the broadcast topic of one project.
func Topic(projectID uuid.UUID) string {
	return TopicPrefix + projectID.String()
}

// ProjectIDFromTopic is the inverse of Topic.
func ProjectIDFromTopic(topic string) (uuid.UUID, bool) {
	if !strings.HasPrefix(topic, TopicPrefix) {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimPrefix(topic, TopicPrefix))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// ProjectUpdated is the live event pushed after a committed status change.
// Receivers overwrite their local copy with it unconditionally.
type ProjectUpdated struct {
	Type             string              `json:"type"`
	ProjectID        uuid.UUID           `json:"projectId"`
	NewStage         string              `json:"newStage"`
	NewSpecialStatus string              `json:"newSpecialStatus"`
	Version          int                 `json:"version"`
	ChangedBy        uuid.UUID           `json:"changedBy"`
	OccurredAt       time.Time           `json:"occurredAt"`
	Project          *queries.ProjectDTO `json:"project,omitempty"`
}

// NewProjectUpdated builds the live event for a committed snapshot.
func NewProjectUpdated(p *queries.ProjectDTO, changedBy uuid.UUID) ProjectUpdated {
	return ProjectUpdated{
		Type:             ProjectUpdatedType,
		ProjectID:        p.ID,
		NewStage:         p.Stage,
		NewSpecialStatus: p.SpecialStatus,
		Version:          p.Version,
		ChangedBy:        changedBy,
		OccurredAt:       time.Now().UTC(),
		Project:          p,
	}
}

func (e ProjectUpdated) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
