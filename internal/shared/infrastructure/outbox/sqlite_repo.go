package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/database/sqlite"
	"github.com/google/uuid"
)

const sqliteColumns = `id, event_id, aggregate_type, aggregate_id, event_type, routing_key, payload, metadata,
	created_at, published_at, next_retry_at, retry_count, last_error, dead_lettered_at, dead_letter_reason`

// SQLiteRepository implements Repository on SQLite.
type SQLiteRepository struct {
	conn database.Connection
}

// NewSQLiteRepository creates the repository.
func NewSQLiteRepository(conn database.Connection) *SQLiteRepository {
	return &SQLiteRepository{conn: conn}
}

func (r *SQLiteRepository) Save(ctx context.Context, msgs ...*Message) error {
	ex := database.ExecutorFromContext(ctx, r.conn)
	for _, m := range msgs {
		var metadata sql.NullString
		if len(m.Metadata) > 0 {
			metadata = sql.NullString{String: string(m.Metadata), Valid: true}
		}
		err := ex.QueryRow(ctx, `
			INSERT INTO outbox (event_id, aggregate_type, aggregate_id, event_type, routing_key, payload, metadata, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING id`,
			m.EventID.String(), m.AggregateType, m.AggregateID.String(), m.EventType, m.RoutingKey,
			string(m.Payload), metadata, sqlite.FormatTime(m.CreatedAt),
		).Scan(&m.ID)
		if err != nil {
			return fmt.Errorf("insert outbox message %s: %w", m.EventType, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) FetchPending(ctx context.Context, limit int) ([]*Message, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx, `
		SELECT `+sqliteColumns+`
		FROM outbox
		WHERE published_at IS NULL
		  AND dead_lettered_at IS NULL
		  AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY id
		LIMIT ?`, sqlite.FormatTime(time.Now()), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		m, err := scanSQLiteMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (r *SQLiteRepository) MarkPublished(ctx context.Context, id int64) error {
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx,
		`UPDATE outbox SET published_at = ? WHERE id = ?`, sqlite.FormatTime(time.Now()), id)
	return err
}

func (r *SQLiteRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx,
		`UPDATE outbox SET retry_count = retry_count + 1, last_error = ?, next_retry_at = ? WHERE id = ?`,
		errMsg, sqlite.FormatTime(nextRetryAt), id)
	return err
}

func (r *SQLiteRepository) MarkDead(ctx context.Context, id int64, reason string) error {
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx,
		`UPDATE outbox SET retry_count = retry_count + 1, last_error = ?, dead_lettered_at = ?, dead_letter_reason = ? WHERE id = ?`,
		reason, sqlite.FormatTime(time.Now()), reason, id)
	return err
}

func (r *SQLiteRepository) PurgePublished(ctx context.Context, before time.Time) (int64, error) {
	res, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx,
		`DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < ?`, sqlite.FormatTime(before))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox WHERE published_at IS NULL AND dead_lettered_at IS NULL`).Scan(&n)
	return n, err
}

func scanSQLiteMessage(row database.Row) (*Message, error) {
	var (
		m                                       Message
		eventID, aggregateID, payload, created  string
		metadata, published, nextRetry, lastErr sql.NullString
		dead, deadReason                        sql.NullString
	)
	err := row.Scan(&m.ID, &eventID, &m.AggregateType, &aggregateID, &m.EventType, &m.RoutingKey, &payload, &metadata,
		&created, &published, &nextRetry, &m.RetryCount, &lastErr, &dead, &deadReason)
	if err != nil {
		return nil, err
	}

	if m.EventID, err = uuid.Parse(eventID); err != nil {
		return nil, fmt.Errorf("outbox %d event_id: %w", m.ID, err)
	}
	if m.AggregateID, err = uuid.Parse(aggregateID); err != nil {
		return nil, fmt.Errorf("outbox %d aggregate_id: %w", m.ID, err)
	}
	if m.CreatedAt, err = sqlite.ParseTime(created); err != nil {
		return nil, err
	}
	m.Payload = json.RawMessage(payload)
	if metadata.Valid {
		m.Metadata = json.RawMessage(metadata.String)
	}
	if m.PublishedAt, err = sqlite.ParseNullTime(published); err != nil {
		return nil, err
	}
	if m.NextRetryAt, err = sqlite.ParseNullTime(nextRetry); err != nil {
		return nil, err
	}
	if m.DeadLetteredAt, err = sqlite.ParseNullTime(dead); err != nil {
		return nil, err
	}
	if lastErr.Valid {
		m.LastError = &lastErr.String
	}
	if deadReason.Valid {
		m.DeadLetterReason = &deadReason.String
	}
	return &m, nil
}
