package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/slate/adapter/cli"
	"github.com/felixgeelhaar/slate/internal/app"
	mcpinternal "github.com/felixgeelhaar/slate/internal/mcp"
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
		Output:         os.Stderr,
		ServiceName:    "slate-mcp",
		ServiceVersion: app.Version,
	})

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()
	container.Start(ctx)

	userID, err := container.ActingUser()
	if err != nil {
		logger.Error("invalid acting user", "error", err)
		os.Exit(1)
	}

	if err := mcpinternal.Serve(ctx, cfg, cli.NewApp(container, userID), app.Version, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
