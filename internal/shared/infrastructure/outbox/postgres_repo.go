package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/database"
)

const postgresColumns = `id, event_id, aggregate_type, aggregate_id, event_type, routing_key, payload, metadata,
	created_at, published_at, next_retry_at, retry_count, last_error, dead_lettered_at, dead_letter_reason`

// PostgresRepository implements Repository on PostgreSQL.
type PostgresRepository struct {
	conn database.Connection
}

// NewPostgresRepository creates the repository.
func NewPostgresRepository(conn database.Connection) *PostgresRepository {
	return &PostgresRepository{conn: conn}
}

func (r *PostgresRepository) Save(ctx context.Context, msgs ...*Message) error {
	ex := database.ExecutorFromContext(ctx, r.conn)
	for _, m := range msgs {
		var metadata []byte
		if len(m.Metadata) > 0 {
			metadata = m.Metadata
		}
		err := ex.QueryRow(ctx, `
			INSERT INTO outbox (event_id, aggregate_type, aggregate_id, event_type, routing_key, payload, metadata, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id`,
			m.EventID, m.AggregateType, m.AggregateID, m.EventType, m.RoutingKey,
			[]byte(m.Payload), metadata, m.CreatedAt,
		).Scan(&m.ID)
		if err != nil {
			return fmt.Errorf("insert outbox message %s: %w", m.EventType, err)
		}
	}
	return nil
}

func (r *PostgresRepository) FetchPending(ctx context.Context, limit int) ([]*Message, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx, `
		SELECT `+postgresColumns+`
		FROM outbox
		WHERE published_at IS NULL
		  AND dead_lettered_at IS NULL
		  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
		ORDER BY id
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		var m Message
		var payload, metadata []byte
		if err := rows.Scan(&m.ID, &m.EventID, &m.AggregateType, &m.AggregateID, &m.EventType, &m.RoutingKey,
			&payload, &metadata, &m.CreatedAt, &m.PublishedAt, &m.NextRetryAt, &m.RetryCount, &m.LastError,
			&m.DeadLetteredAt, &m.DeadLetterReason); err != nil {
			return nil, err
		}
		m.Payload = payload
		m.Metadata = metadata
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

func (r *PostgresRepository) MarkPublished(ctx context.Context, id int64) error {
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx,
		`UPDATE outbox SET published_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *PostgresRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx,
		`UPDATE outbox SET retry_count = retry_count + 1, last_error = $2, next_retry_at = $3 WHERE id = $1`,
		id, errMsg, nextRetryAt)
	return err
}

func (r *PostgresRepository) MarkDead(ctx context.Context, id int64, reason string) error {
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx,
		`UPDATE outbox SET retry_count = retry_count + 1, last_error = $2, dead_lettered_at = NOW(), dead_letter_reason = $2 WHERE id = $1`,
		id, reason)
	return err
}

func (r *PostgresRepository) PurgePublished(ctx context.Context, before time.Time) (int64, error) {
	res, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx,
		`DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresRepository) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox WHERE published_at IS NULL AND dead_lettered_at IS NULL`).Scan(&n)
	return n, err
}

// NewRepository picks the implementation for conn's driver.
func NewRepository(conn database.Connection) Repository {
	if conn.Driver() == database.DriverPostgres {
		return NewPostgresRepository(conn)
	}
	return NewSQLiteRepository(conn)
}
