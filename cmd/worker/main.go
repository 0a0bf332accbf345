package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/felixgeelhaar/slate/internal/app"
	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/slate/pkg/config"
	"github.com/felixgeelhaar/slate/pkg/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:          cfg.LogLevel,
		Format:         observability.LogFormat(cfg.LogFormat),
		Output:         os.Stdout,
		ServiceName:    "slate-worker",
		ServiceVersion: app.Version,
	})
	logger.Info("starting slate worker")

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	publisher := newPublisher(cfg, logger)
	defer func() { _ = publisher.Close() }()

	processor := outbox.NewProcessor(container.OutboxRepo, publisher, outbox.ProcessorConfig{
		PollInterval:     cfg.OutboxPollInterval,
		BatchSize:        cfg.OutboxBatchSize,
		MaxRetries:       cfg.OutboxMaxRetries,
		RetryBackoffBase: outbox.DefaultProcessorConfig().RetryBackoffBase,
		RetryBackoffMax:  outbox.DefaultProcessorConfig().RetryBackoffMax,
		Retention:        time.Duration(cfg.OutboxRetentionDays) * 24 * time.Hour,
		PurgeInterval:    cfg.OutboxCleanupInterval,
	}, logger, container.Metrics)
	processor.Start(ctx)

	if cfg.WorkerHealthAddr != "" {
		go serveHealth(ctx, cfg.WorkerHealthAddr, container.Health, processor, logger)
	}

	statsTicker := time.NewTicker(cfg.OutboxStatsInterval)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down worker")
			processor.Stop()
			logger.Info("worker stopped")
			return
		case <-statsTicker.C:
			stats := processor.Stats()
			pending, err := container.OutboxRepo.CountPending(ctx)
			if err != nil {
				logger.Warn("count pending outbox messages", "error", err)
			}
			logger.Info("outbox stats",
				"running", stats.Running,
				"pending", pending,
				"published", stats.Published,
				"failed", stats.Failed,
				"dead", stats.Dead,
				"lag_seconds", stats.LagSeconds,
				"last_processed_at", stats.LastProcessedAt,
				"last_error", stats.LastError,
			)
		}
	}
}

// newPublisher connects to RabbitMQ behind a circuit breaker. Development
// falls back to logging the events.
func newPublisher(cfg *config.Config, logger *slog.Logger) eventbus.Publisher {
	rabbit, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, logger)
	if err != nil {
		if !cfg.IsDevelopment() {
			logger.Error("failed to connect to RabbitMQ", "error", err)
			os.Exit(1)
		}
		logger.Warn("RabbitMQ not available, using noop publisher", "error", err)
		return eventbus.NewNoopPublisher(logger)
	}
	logger.Info("connected to RabbitMQ")
	return eventbus.NewBreakerPublisher(rabbit, eventbus.BreakerConfig{
		Name:             "rabbitmq",
		FailureThreshold: cfg.BreakerFailureThreshold,
		OpenTimeout:      cfg.BreakerOpenTimeout,
	}, logger)
}

func serveHealth(ctx context.Context, addr string, health *observability.HealthRegistry, processor *outbox.Processor, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "outbox": processor.Stats()})
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		result := health.Check(checkCtx)
		status := http.StatusOK
		if result.Status == observability.HealthStatusUnhealthy || !processor.IsRunning() {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, result)
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("health server shutdown error", "error", err)
		}
	}()

	logger.Info("health server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("health server error", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
