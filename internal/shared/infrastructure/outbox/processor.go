package outbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/slate/internal/shared/domain"
	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/slate/pkg/observability"
)

// ProcessorConfig tunes the relay.
type ProcessorConfig struct {
	PollInterval     time.Duration
	BatchSize        int
	MaxRetries       int
	RetryBackoffBase time.Duration
	RetryBackoffMax  time.Duration
	Retention        time.Duration
	PurgeInterval    time.Duration
}

// DefaultProcessorConfig returns the defaults used by cmd/worker.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		PollInterval:     500 * time.Millisecond,
		BatchSize:        100,
		MaxRetries:       8,
		RetryBackoffBase: time.Second,
		RetryBackoffMax:  5 * time.Minute,
		Retention:        7 * 24 * time.Hour,
		PurgeInterval:    time.Hour,
	}
}

// Stats is a snapshot of relay progress.
type Stats struct {
	Running         bool       `json:"running"`
	Published       uint64     `json:"published"`
	Failed          uint64     `json:"failed"`
	Dead            uint64     `json:"dead"`
	LagSeconds      float64    `json:"lag_seconds"`
	LastError       string     `json:"last_error,omitempty"`
	LastErrorAt     *time.Time `json:"last_error_at,omitempty"`
	LastProcessedAt *time.Time `json:"last_processed_at,omitempty"`
}

// Processor polls the outbox and publishes to the broker. It is the only
// component in slate that retries.
type Processor struct {
	repo      Repository
	publisher eventbus.Publisher
	config    ProcessorConfig
	logger    *slog.Logger
	metrics   observability.Metrics

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup

	statsMu sync.Mutex
	stats   Stats
}

// NewProcessor creates a relay from repo to publisher.
func NewProcessor(repo Repository, publisher eventbus.Publisher, config ProcessorConfig, logger *slog.Logger, metrics observability.Metrics) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultProcessorConfig().BatchSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultProcessorConfig().PollInterval
	}
	return &Processor{repo: repo, publisher: publisher, config: config, logger: logger, metrics: metrics}
}

// Start launches the polling loop. Calling Start twice is a no-op.
func (p *Processor) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.stop = make(chan struct{})

	p.wg.Add(1)
	go p.run(ctx, p.stop)

	p.logger.Info("outbox processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize,
		"max_retries", p.config.MaxRetries,
	)
}

// Stop waits for the loop to exit. Calling Stop twice is a no-op.
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stop)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("outbox processor stopped")
}

// IsRunning reports whether the loop is active.
func (p *Processor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Processor) run(ctx context.Context, stop <-chan struct{}) {
	defer p.wg.Done()

	poll := time.NewTicker(p.config.PollInterval)
	defer poll.Stop()

	purgeEvery := p.config.PurgeInterval
	if purgeEvery <= 0 {
		purgeEvery = time.Hour
	}
	purge := time.NewTicker(purgeEvery)
	defer purge.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-poll.C:
			if err := p.ProcessOnce(ctx); err != nil {
				p.logger.Error("process outbox batch", "error", err)
			}
		case <-purge.C:
			p.purge(ctx)
		}
	}
}

// ProcessOnce relays one batch synchronously.
func (p *Processor) ProcessOnce(ctx context.Context) error {
	msgs, err := p.repo.FetchPending(ctx, p.config.BatchSize)
	if err != nil {
		p.recordError(err)
		return err
	}
	p.recordBatch(msgs)

	for _, msg := range msgs {
		if err := p.publisher.Publish(ctx, msg.RoutingKey, msg.Payload); err != nil {
			p.handleFailure(ctx, msg, err)
			continue
		}

		if err := p.repo.MarkPublished(ctx, msg.ID); err != nil {
			p.logger.Error("mark outbox message published", "id", msg.ID, "event_id", msg.EventID, "error", err)
			continue
		}
		p.statsMu.Lock()
		p.stats.Published++
		p.statsMu.Unlock()
		p.metrics.Counter(observability.MetricOutboxPublished, 1, observability.T("event_type", msg.EventType))
	}
	return nil
}

func (p *Processor) handleFailure(ctx context.Context, msg *Message, err error) {
	md := metadataOf(msg)
	p.logger.Warn("publish outbox message",
		"id", msg.ID,
		"routing_key", msg.RoutingKey,
		"event_id", msg.EventID,
		observability.CorrelationIDKey, md.CorrelationID,
		"attempt", msg.RetryCount+1,
		"error", err,
	)

	if p.shouldDeadLetter(msg) {
		p.recordFailure(err, true)
		p.metrics.Counter(observability.MetricOutboxDead, 1, observability.T("event_type", msg.EventType))
		if markErr := p.repo.MarkDead(ctx, msg.ID, err.Error()); markErr != nil {
			p.logger.Error("dead-letter outbox message", "id", msg.ID, "error", markErr)
		}
		return
	}

	p.recordFailure(err, false)
	p.metrics.Counter(observability.MetricOutboxFailed, 1, observability.T("event_type", msg.EventType))
	next := time.Now().Add(p.retryBackoff(msg.RetryCount + 1))
	if markErr := p.repo.MarkFailed(ctx, msg.ID, err.Error(), next); markErr != nil {
		p.logger.Error("mark outbox message failed", "id", msg.ID, "error", markErr)
	}
}

func (p *Processor) shouldDeadLetter(msg *Message) bool {
	if p.config.MaxRetries <= 0 {
		return true
	}
	return msg.RetryCount+1 >= p.config.MaxRetries
}

// retryBackoff doubles from the base for each attempt, capped at the max.
func (p *Processor) retryBackoff(attempt int) time.Duration {
	base := p.config.RetryBackoffBase
	if base <= 0 {
		base = time.Second
	}
	limit := p.config.RetryBackoffMax
	if limit <= 0 {
		limit = time.Minute
	}

	backoff := base
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= limit {
			return limit
		}
	}
	return min(backoff, limit)
}

func (p *Processor) purge(ctx context.Context) {
	if p.config.Retention <= 0 {
		return
	}
	n, err := p.repo.PurgePublished(ctx, time.Now().Add(-p.config.Retention))
	if err != nil {
		p.logger.Error("purge published outbox messages", "error", err)
		return
	}
	if n > 0 {
		p.logger.Info("purged published outbox messages", "count", n)
	}
}

func metadataOf(msg *Message) domain.EventMetadata {
	var md domain.EventMetadata
	if len(msg.Metadata) > 0 {
		_ = json.Unmarshal(msg.Metadata, &md)
	}
	return md
}

// Stats returns a snapshot of relay counters.
func (p *Processor) Stats() Stats {
	p.statsMu.Lock()
	s := p.stats
	p.statsMu.Unlock()
	s.Running = p.IsRunning()
	return s
}

func (p *Processor) recordFailure(err error, dead bool) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	if dead {
		p.stats.Dead++
	} else {
		p.stats.Failed++
	}
	now := time.Now()
	p.stats.LastError = err.Error()
	p.stats.LastErrorAt = &now
}

func (p *Processor) recordError(err error) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	now := time.Now()
	p.stats.LastError = err.Error()
	p.stats.LastErrorAt = &now
}

func (p *Processor) recordBatch(msgs []*Message) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	now := time.Now()
	p.stats.LastProcessedAt = &now
	p.stats.LagSeconds = 0
	if len(msgs) > 0 {
		oldest := msgs[0].CreatedAt
		for _, m := range msgs[1:] {
			if m.CreatedAt.Before(oldest) {
				oldest = m.CreatedAt
			}
		}
		p.stats.LagSeconds = now.Sub(oldest).Seconds()
	}
	p.metrics.Gauge(observability.MetricOutboxLag, p.stats.LagSeconds)
}
