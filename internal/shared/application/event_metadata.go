package application

import (
	"context"

	"github.com/felixgeelhaar/slate/internal/shared/domain"
	"github.com/felixgeelhaar/slate/pkg/observability"
	"github.com/google/uuid"
)

type metadataSetter interface {
	SetMetadata(metadata domain.EventMetadata)
}

// NewEventMetadata creates command-scoped metadata for domain events.
func NewEventMetadata(userID uuid.UUID) domain.EventMetadata {
	return domain.EventMetadata{
		CorrelationID: uuid.New(),
		CausationID:   uuid.New(),
		UserID:        userID,
	}
}

// EventMetadataFromContext is NewEventMetadata but reuses the request's
// correlation ID when it is a UUID.
func EventMetadataFromContext(ctx context.Context, userID uuid.UUID) domain.EventMetadata {
	md := NewEventMetadata(userID)
	if id, err := uuid.Parse(observability.CorrelationIDFromContext(ctx)); err == nil {
		md.CorrelationID = id
	}
	return md
}

// ApplyEventMetadata sets metadata on all events that support it.
func ApplyEventMetadata(events []domain.DomainEvent, metadata domain.EventMetadata) {
	for _, event := range events {
		if setter, ok := event.(metadataSetter); ok {
			setter.SetMetadata(metadata)
		}
	}
}
