package eventbus

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// Delivery is one payload received on a topic.
type Delivery struct {
	Topic   string
	Payload []byte
}

// Consumer handles deliveries whose topic matches one of its patterns.
type Consumer interface {
	// Topics returns topic patterns. "*" matches exactly one word and "#"
	// matches zero or more, as in AMQP topic exchanges.
	Topics() []string
	Handle(ctx context.Context, d Delivery) error
}

// ConsumerFunc adapts a function to Consumer for a fixed pattern list.
type ConsumerFunc struct {
	Patterns []string
	Fn       func(ctx context.Context, d Delivery) error
}

func (c ConsumerFunc) Topics() []string { return c.Patterns }

func (c ConsumerFunc) Handle(ctx context.Context, d Delivery) error { return c.Fn(ctx, d) }

// MatchTopic reports whether topic matches pattern.
func MatchTopic(pattern, topic string) bool {
	return matchWords(strings.Split(pattern, "."), strings.Split(topic, "."))
}

func matchWords(pattern, topic []string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case "#":
			if len(pattern) == 1 {
				return true
			}
			for i := 0; i <= len(topic); i++ {
				if matchWords(pattern[1:], topic[i:]) {
					return true
				}
			}
			return false
		case "*":
			if len(topic) == 0 {
				return false
			}
		default:
			if len(topic) == 0 || topic[0] != pattern[0] {
				return false
			}
		}
		pattern, topic = pattern[1:], topic[1:]
	}
	return len(topic) == 0
}

type registration struct {
	id       uint64
	pattern  string
	consumer Consumer
}

// ConsumerRegistry keeps consumers and routes deliveries to them.
type ConsumerRegistry struct {
	mu      sync.RWMutex
	entries []registration
	nextID  uint64
	logger  *slog.Logger
}

// NewConsumerRegistry creates an empty registry.
func NewConsumerRegistry(logger *slog.Logger) *ConsumerRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsumerRegistry{logger: logger}
}

// Register adds consumer for each of its patterns and returns a function
// that removes it again.
func (r *ConsumerRegistry) Register(consumer Consumer) (unregister func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	for _, pattern := range consumer.Topics() {
		r.entries = append(r.entries, registration{id: id, pattern: pattern, consumer: consumer})
		r.logger.Debug("registered consumer", "pattern", pattern)
	}

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		kept := r.entries[:0]
		for _, e := range r.entries {
			if e.id != id {
				kept = append(kept, e)
			}
		}
		r.entries = kept
	}
}

// Consumers returns the consumers matching topic, each at most once.
func (r *ConsumerRegistry) Consumers(topic string) []Consumer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := map[uint64]bool{}
	var out []Consumer
	for _, e := range r.entries {
		if !seen[e.id] && MatchTopic(e.pattern, topic) {
			seen[e.id] = true
			out = append(out, e.consumer)
		}
	}
	return out
}

// Len returns the number of registered patterns.
func (r *ConsumerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Dispatch hands d to every matching consumer. A failing consumer does not
// stop the others; the last error is returned.
func (r *ConsumerRegistry) Dispatch(ctx context.Context, d Delivery) error {
	consumers := r.Consumers(d.Topic)
	if len(consumers) == 0 {
		r.logger.Debug("no consumers for topic", "topic", d.Topic)
		return nil
	}

	var lastErr error
	for _, c := range consumers {
		if err := c.Handle(ctx, d); err != nil {
			r.logger.Error("consumer failed", "topic", d.Topic, "error", err)
			lastErr = err
		}
	}
	return lastErr
}
