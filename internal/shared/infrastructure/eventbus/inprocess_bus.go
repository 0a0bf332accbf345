package eventbus

import (
	"context"
	"log/slog"
	"time"
)

// InProcessBus delivers synchronously to consumers in the same process.
// It is the broadcast transport of a single-node deployment and the local
// fan-out stage behind RedisSubscriber in a multi-node one.
type InProcessBus struct {
	registry *ConsumerRegistry
	logger   *slog.Logger
}

// NewInProcessBus creates an empty bus.
func NewInProcessBus(logger *slog.Logger) *InProcessBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcessBus{registry: NewConsumerRegistry(logger), logger: logger}
}

// Subscribe registers consumer and returns its unregister function.
func (b *InProcessBus) Subscribe(consumer Consumer) func() {
	return b.registry.Register(consumer)
}

// Publish dispatches to every matching consumer. Consumer failures are logged,
// never returned: a slow or broken subscriber must not fail the publisher.
func (b *InProcessBus) Publish(ctx context.Context, topic string, payload []byte) error {
	start := time.Now()
	if err := b.registry.Dispatch(ctx, Delivery{Topic: topic, Payload: payload}); err != nil {
		b.logger.Warn("in-process dispatch failed",
			"topic", topic,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return nil
	}
	b.logger.Debug("in-process dispatch", "topic", topic, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (b *InProcessBus) Close() error { return nil }

// Registry exposes the consumer registry.
func (b *InProcessBus) Registry() *ConsumerRegistry {
	return b.registry
}
