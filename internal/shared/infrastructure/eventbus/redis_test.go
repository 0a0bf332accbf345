package eventbus_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/eventbus"
)

// Needs a live server: SLATE_TEST_REDIS_URL=redis://localhost:6379/15
func TestRedisRelay(t *testing.T) {
	url := os.Getenv("SLATE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("SLATE_TEST_REDIS_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := eventbus.NewRedisClient(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	local := eventbus.NewInProcessBus(nil)
	got := make(chan eventbus.Delivery, 1)
	local.Subscribe(eventbus.ConsumerFunc{
		Patterns: []string{"project.*"},
		Fn: func(_ context.Context, d eventbus.Delivery) error {
			got <- d
			return nil
		},
	})

	sub := eventbus.NewRedisSubscriber(client, local, nil, "project.*")
	go func() { _ = sub.Run(ctx) }()

	pub := eventbus.NewRedisPublisher(client, nil)
	require.Eventually(t, func() bool {
		_ = pub.Publish(ctx, "project.abc", []byte(`{"newStage":"accepted"}`))
		select {
		case d := <-got:
			assert.Equal(t, "project.abc", d.Topic)
			return true
		default:
			return false
		}
	}, 3*time.Second, 100*time.Millisecond)
}
