// Package outbox stores integration events in the same transaction as the
// state change that raised them and relays them to the broker afterwards.
package outbox

import (
	"encoding/json"
	"time"

	"github.com/felixgeelhaar/slate/internal/shared/domain"
	"github.com/google/uuid"
)

// Envelope is the wire format consumers of integration events receive.
type Envelope struct {
	EventID       uuid.UUID            `json:"event_id"`
	EventType     string               `json:"event_type"`
	AggregateType string               `json:"aggregate_type"`
	AggregateID   uuid.UUID            `json:"aggregate_id"`
	OccurredAt    time.Time            `json:"occurred_at"`
	Metadata      domain.EventMetadata `json:"metadata"`
	Data          json.RawMessage      `json:"data"`
}

// Message is one outbox row.
type Message struct {
	ID               int64
	EventID          uuid.UUID
	AggregateType    string
	AggregateID      uuid.UUID
	EventType        string
	RoutingKey       string
	Payload          json.RawMessage
	Metadata         json.RawMessage
	CreatedAt        time.Time
	PublishedAt      *time.Time
	NextRetryAt      *time.Time
	RetryCount       int
	LastError        *string
	DeadLetteredAt   *time.Time
	DeadLetterReason *string
}

// NewMessage wraps a domain event in an Envelope. The event's exported
// fields become the envelope data.
func NewMessage(event domain.DomainEvent) (*Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	metadata, err := json.Marshal(event.Metadata())
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(Envelope{
		EventID:       event.EventID(),
		EventType:     event.RoutingKey(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		OccurredAt:    event.OccurredAt(),
		Metadata:      event.Metadata(),
		Data:          data,
	})
	if err != nil {
		return nil, err
	}

	return &Message{
		EventID:       event.EventID(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		EventType:     event.RoutingKey(),
		RoutingKey:    event.RoutingKey(),
		Payload:       payload,
		Metadata:      metadata,
		CreatedAt:     event.OccurredAt(),
	}, nil
}

// NewMessages converts a batch of events.
func NewMessages(events []domain.DomainEvent) ([]*Message, error) {
	msgs := make([]*Message, 0, len(events))
	for _, e := range events {
		m, err := NewMessage(e)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (m *Message) IsPublished() bool { return m.PublishedAt != nil }

func (m *Message) IsDead() bool { return m.DeadLetteredAt != nil }
