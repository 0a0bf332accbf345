package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisChannelPrefix namespaces slate topics on a shared Redis.
const RedisChannelPrefix = "slate:"

// NewRedisClient parses url and verifies the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisPublisher publishes to Redis pub/sub so every node sees the message.
type RedisPublisher struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisPublisher wraps client. The client is owned by the caller.
func NewRedisPublisher(client *redis.Client, logger *slog.Logger) *RedisPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisPublisher{client: client, logger: logger}
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	receivers, err := p.client.Publish(ctx, RedisChannelPrefix+topic, payload).Result()
	if err != nil {
		return fmt.Errorf("redis publish %s: %w", topic, err)
	}
	p.logger.Debug("redis publish", "topic", topic, "receivers", receivers)
	return nil
}

func (p *RedisPublisher) Close() error { return nil }

// RedisSubscriber relays Redis pub/sub messages into a local Publisher,
// normally the node's InProcessBus.
type RedisSubscriber struct {
	client   *redis.Client
	patterns []string
	sink     Publisher
	logger   *slog.Logger
}

// NewRedisSubscriber subscribes to topic patterns ("project.*") and forwards
// matching messages to sink.
func NewRedisSubscriber(client *redis.Client, sink Publisher, logger *slog.Logger, patterns ...string) *RedisSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisSubscriber{client: client, patterns: patterns, sink: sink, logger: logger}
}

// Run relays until ctx is done.
func (s *RedisSubscriber) Run(ctx context.Context) error {
	channels := make([]string, len(s.patterns))
	for i, p := range s.patterns {
		channels[i] = RedisChannelPrefix + p
	}

	pubsub := s.client.PSubscribe(ctx, channels...)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis psubscribe: %w", err)
	}
	s.logger.Info("redis subscriber started", "patterns", channels)

	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			topic := strings.TrimPrefix(msg.Channel, RedisChannelPrefix)
			if err := s.sink.Publish(ctx, topic, []byte(msg.Payload)); err != nil {
				s.logger.Warn("relay redis message", "topic", topic, "error", err)
			}
		}
	}
}
