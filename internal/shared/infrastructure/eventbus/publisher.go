// Package eventbus moves serialized events between the engine and its
// transports: the in-process bus, Redis pub/sub and RabbitMQ.
package eventbus

import (
	"context"
	"log/slog"
)

// Publisher sends a payload on a topic. Topics are dot-separated words,
// for example "project.<id>" or "projects.project.stage_changed".
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// NoopPublisher drops everything. Used when no transport is configured.
type NoopPublisher struct {
	logger *slog.Logger
}

// NewNoopPublisher creates a publisher that does nothing.
func NewNoopPublisher(logger *slog.Logger) *NoopPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	p.logger.Debug("noop publish", "topic", topic, "size", len(payload))
	return nil
}

func (p *NoopPublisher) Close() error { return nil }
