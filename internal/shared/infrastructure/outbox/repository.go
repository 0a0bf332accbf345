package outbox

import (
	"context"
	"time"
)

// Repository persists outbox messages. Save joins the transaction on ctx.
type Repository interface {
	Save(ctx context.Context, msgs ...*Message) error
	// FetchPending returns unpublished, live messages whose retry time has
	// come, oldest first.
	FetchPending(ctx context.Context, limit int) ([]*Message, error)
	MarkPublished(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error
	MarkDead(ctx context.Context, id int64, reason string) error
	// PurgePublished deletes published messages older than the cutoff.
	PurgePublished(ctx context.Context, before time.Time) (int64, error)
	CountPending(ctx context.Context) (int64, error)
}
