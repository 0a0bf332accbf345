package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStages_Ordered(t *testing.T) {
	stages := Stages()
	require.Len(t, stages, 7)
	for i, s := range stages {
		assert.Equal(t, i, s.Rank(), s)
		assert.True(t, s.IsValid())
		assert.NotEmpty(t, s.Label())
	}
}

func TestParseStageStatus(t *testing.T) {
	s, err := ParseStageStatus("post_review")
	require.NoError(t, err)
	assert.Equal(t, StagePostReview, s)

	_, err = ParseStageStatus("archived")
	assert.ErrorIs(t, err, ErrUnknownStage)

	_, err = ParseStageStatus("")
	assert.ErrorIs(t, err, ErrUnknownStage)
}

func TestStageStatus_UnknownRank(t *testing.T) {
	assert.Equal(t, -1, StageStatus("bogus").Rank())
	assert.False(t, StageStatus("bogus").IsValid())
	assert.Nil(t, StageStatus("bogus").AllowedTargets())
}

func TestIsForward(t *testing.T) {
	assert.True(t, IsForward(StageProposal, StageAccepted))
	assert.True(t, IsForward(StageProposal, StageCompleted))
	assert.False(t, IsForward(StageProduction, StageAccepted))
	assert.False(t, IsForward(StageProduction, StageProduction))
}

func TestBillingBoundary(t *testing.T) {
	tests := []struct {
		from, to      StageStatus
		enters, leave bool
	}{
		{StageProposal, StageAccepted, true, false},
		{StageProposal, StageProduction, true, false},
		{StageAccepted, StageProduction, false, false},
		{StageProduction, StageProposal, false, true},
		{StageAccepted, StageProposal, false, true},
		{StageCompleted, StageDelivered, false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.enters, EntersBilling(tt.from, tt.to))
			assert.Equal(t, tt.leave, LeavesBilling(tt.from, tt.to))
		})
	}
}

func TestRequiresConfirmationToEnter(t *testing.T) {
	for _, s := range Stages() {
		want := s == StageDelivered || s == StageCompleted
		assert.Equal(t, want, s.RequiresConfirmationToEnter(), s)
	}
	assert.True(t, StageCompleted.RequiresPaymentGate())
	assert.False(t, StageDelivered.RequiresPaymentGate())
}

func TestAllowedTargets_ExcludesCurrent(t *testing.T) {
	targets := StageProduction.AllowedTargets()
	assert.Len(t, targets, 6)
	assert.NotContains(t, targets, StageProduction)
}
