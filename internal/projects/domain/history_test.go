package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func mustNow() time.Time { return time.Now().UTC() }

func TestNewStageRecord(t *testing.T) {
	projectID, user := uuid.New(), uuid.New()

	rec := NewStageRecord(projectID, StageProposal, StageAccepted, "signed", user)

	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.Equal(t, HistoryKindStage, rec.Kind)
	assert.Equal(t, "proposal", rec.PreviousStatus)
	assert.Equal(t, "accepted", rec.NewStatus)
	assert.Equal(t, "signed", rec.Reason)
	assert.Equal(t, user, rec.ChangedBy)
	assert.WithinDuration(t, time.Now(), rec.ChangedAt, time.Second)
}

func TestNewSpecialRecord(t *testing.T) {
	rec := NewSpecialRecord(uuid.New(), SpecialNone, SpecialPaused, "", uuid.New())
	assert.Equal(t, HistoryKindSpecial, rec.Kind)
	assert.Equal(t, "none", rec.PreviousStatus)
	assert.Equal(t, "paused", rec.NewStatus)
	assert.True(t, rec.Kind.IsValid())
	assert.False(t, HistoryKind("x").IsValid())
}
