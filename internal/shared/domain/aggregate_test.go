package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	BaseEvent
}

func TestBaseAggregateRoot_Events(t *testing.T) {
	t.Run("starts empty and new", func(t *testing.T) {
		agg := NewBaseAggregateRoot()

		assert.Empty(t, agg.DomainEvents())
		assert.True(t, agg.IsNew())
		assert.Equal(t, 0, agg.Version())
	})

	t.Run("pull returns and clears events", func(t *testing.T) {
		agg := NewBaseAggregateRoot()
		agg.AddDomainEvent(&testEvent{BaseEvent: NewBaseEvent(agg.ID(), "Test", "test.happened")})
		agg.AddDomainEvent(&testEvent{BaseEvent: NewBaseEvent(agg.ID(), "Test", "test.happened_again")})

		require.Len(t, agg.DomainEvents(), 2)
		pulled := agg.PullDomainEvents()

		assert.Len(t, pulled, 2)
		assert.Equal(t, "test.happened", pulled[0].RoutingKey())
		assert.Empty(t, agg.DomainEvents())
	})
}

func TestBaseAggregateRoot_Version(t *testing.T) {
	id := uuid.New()
	agg := RehydrateBaseAggregateRoot(NewBaseEntityWithID(id), 4)

	assert.Equal(t, id, agg.ID())
	assert.Equal(t, 4, agg.Version())
	assert.False(t, agg.IsNew())

	agg.SetVersion(5)
	assert.Equal(t, 5, agg.Version())
}
