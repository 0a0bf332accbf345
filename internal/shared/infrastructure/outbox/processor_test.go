package outbox_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/slate/pkg/observability"
)

type mockRepository struct {
	mu           sync.Mutex
	messages     []*outbox.Message
	publishedIDs []int64
	failedIDs    []int64
	deadIDs      []int64
	fetchErr     error
}

func (r *mockRepository) Save(_ context.Context, msgs ...*outbox.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		m.ID = int64(len(r.messages) + 1)
		r.messages = append(r.messages, m)
	}
	return nil
}

func (r *mockRepository) FetchPending(_ context.Context, limit int) ([]*outbox.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	var out []*outbox.Message
	now := time.Now()
	for _, m := range r.messages {
		if m.PublishedAt != nil || m.DeadLetteredAt != nil {
			continue
		}
		if m.NextRetryAt != nil && m.NextRetryAt.After(now) {
			continue
		}
		out = append(out, m)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *mockRepository) MarkPublished(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.messages[id-1].PublishedAt = &now
	r.publishedIDs = append(r.publishedIDs, id)
	return nil
}

func (r *mockRepository) MarkFailed(_ context.Context, id int64, errMsg string, next time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.messages[id-1]
	m.RetryCount++
	m.LastError = &errMsg
	m.NextRetryAt = &next
	r.failedIDs = append(r.failedIDs, id)
	return nil
}

func (r *mockRepository) MarkDead(_ context.Context, id int64, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.messages[id-1].DeadLetteredAt = &now
	r.messages[id-1].DeadLetterReason = &reason
	r.deadIDs = append(r.deadIDs, id)
	return nil
}

func (r *mockRepository) PurgePublished(context.Context, time.Time) (int64, error) { return 0, nil }

func (r *mockRepository) CountPending(ctx context.Context) (int64, error) {
	pending, err := r.FetchPending(ctx, 1<<30)
	return int64(len(pending)), err
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}

func seed(t *testing.T, repo *mockRepository, keys ...string) {
	t.Helper()
	for _, k := range keys {
		require.NoError(t, repo.Save(context.Background(), &outbox.Message{
			EventID:    uuid.New(),
			RoutingKey: k,
			EventType:  k,
			Payload:    []byte(`{}`),
			CreatedAt:  time.Now().Add(-time.Second),
		}))
	}
}

func TestProcessor_ProcessOnce(t *testing.T) {
	repo := &mockRepository{}
	pub := &recordingPublisher{}
	metrics := observability.NewInMemoryMetrics()
	seed(t, repo, "projects.project.stage_changed", "billing.document.created")

	p := outbox.NewProcessor(repo, pub, outbox.DefaultProcessorConfig(), nil, metrics)
	require.NoError(t, p.ProcessOnce(context.Background()))

	assert.Equal(t, []string{"projects.project.stage_changed", "billing.document.created"}, pub.published())
	assert.Equal(t, []int64{1, 2}, repo.publishedIDs)
	assert.Equal(t, uint64(2), p.Stats().Published)
	assert.Equal(t, int64(1), metrics.CounterValue(observability.MetricOutboxPublished,
		observability.T("event_type", "billing.document.created")))

	pending, err := repo.CountPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestProcessor_ProcessOnce_PublishFailureSchedulesRetry(t *testing.T) {
	repo := &mockRepository{}
	pub := &recordingPublisher{err: errors.New("broker unavailable")}
	seed(t, repo, "billing.document.paid")

	cfg := outbox.DefaultProcessorConfig()
	cfg.RetryBackoffBase = time.Hour
	cfg.RetryBackoffMax = 2 * time.Hour
	p := outbox.NewProcessor(repo, pub, cfg, nil, nil)

	require.NoError(t, p.ProcessOnce(context.Background()))

	assert.Equal(t, []int64{1}, repo.failedIDs)
	assert.Empty(t, repo.deadIDs)
	msg := repo.messages[0]
	assert.Equal(t, 1, msg.RetryCount)
	require.NotNil(t, msg.NextRetryAt)
	assert.True(t, msg.NextRetryAt.After(time.Now().Add(50*time.Minute)))

	stats := p.Stats()
	assert.Equal(t, uint64(1), stats.Failed)
	assert.Equal(t, "broker unavailable", stats.LastError)

	// Not due yet, so the next batch does not touch it.
	require.NoError(t, p.ProcessOnce(context.Background()))
	assert.Equal(t, []int64{1}, repo.failedIDs)
}

func TestProcessor_ProcessOnce_DeadLettersAfterMaxRetries(t *testing.T) {
	repo := &mockRepository{}
	pub := &recordingPublisher{err: errors.New("broker unavailable")}
	seed(t, repo, "billing.document.paid")
	repo.messages[0].RetryCount = 2

	cfg := outbox.DefaultProcessorConfig()
	cfg.MaxRetries = 3
	p := outbox.NewProcessor(repo, pub, cfg, nil, nil)

	require.NoError(t, p.ProcessOnce(context.Background()))

	assert.Equal(t, []int64{1}, repo.deadIDs)
	assert.True(t, repo.messages[0].IsDead())
	assert.Equal(t, uint64(1), p.Stats().Dead)
}

func TestProcessor_ProcessOnce_FetchError(t *testing.T) {
	repo := &mockRepository{fetchErr: errors.New("database is locked")}
	p := outbox.NewProcessor(repo, &recordingPublisher{}, outbox.DefaultProcessorConfig(), nil, nil)

	assert.EqualError(t, p.ProcessOnce(context.Background()), "database is locked")
	assert.Equal(t, "database is locked", p.Stats().LastError)
}

func TestProcessor_StartStop(t *testing.T) {
	repo := &mockRepository{}
	pub := &recordingPublisher{}
	seed(t, repo, "projects.project.stage_changed")

	cfg := outbox.DefaultProcessorConfig()
	cfg.PollInterval = 10 * time.Millisecond
	p := outbox.NewProcessor(repo, pub, cfg, nil, nil)

	p.Start(context.Background())
	p.Start(context.Background())
	assert.True(t, p.IsRunning())

	require.Eventually(t, func() bool { return len(pub.published()) == 1 }, time.Second, 10*time.Millisecond)

	p.Stop()
	p.Stop()
	assert.False(t, p.IsRunning())
}
