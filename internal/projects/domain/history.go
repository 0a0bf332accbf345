package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// HistoryKind separates stage records from special-status records.
type HistoryKind string

const (
	HistoryKindStage   HistoryKind = "stage"
	HistoryKindSpecial HistoryKind = "special"
)

func (k HistoryKind) IsValid() bool {
	return k == HistoryKindStage || k == HistoryKindSpecial
}

// StatusHistoryRecord is one immutable audit entry. Records are only ever
// appended; corrections are new records.
type StatusHistoryRecord struct {
	ID             uuid.UUID
	ProjectID      uuid.UUID
	Kind           HistoryKind
	PreviousStatus string
	NewStatus      string
	Reason         string
	ChangedBy      uuid.UUID
	ChangedAt      time.Time
}

// NewStageRecord records a stage transition. previous is empty for the
// creation record.
func NewStageRecord(projectID uuid.UUID, previous, next StageStatus, reason string, changedBy uuid.UUID) StatusHistoryRecord {
	return StatusHistoryRecord{
		ID:             uuid.New(),
		ProjectID:      projectID,
		Kind:           HistoryKindStage,
		PreviousStatus: string(previous),
		NewStatus:      string(next),
		Reason:         reason,
		ChangedBy:      changedBy,
		ChangedAt:      time.Now().UTC(),
	}
}

// NewSpecialRecord records a special-status change.
func NewSpecialRecord(projectID uuid.UUID, previous, next SpecialStatus, reason string, changedBy uuid.UUID) StatusHistoryRecord {
	return StatusHistoryRecord{
		ID:             uuid.New(),
		ProjectID:      projectID,
		Kind:           HistoryKindSpecial,
		PreviousStatus: string(previous),
		NewStatus:      string(next),
		Reason:         reason,
		ChangedBy:      changedBy,
		ChangedAt:      time.Now().UTC(),
	}
}

// HistoryRepository is the append-only status log.
type HistoryRepository interface {
	Append(ctx context.Context, record StatusHistoryRecord) error
	// ListByProject returns records oldest first.
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]StatusHistoryRecord, error)
}
