package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/slate/adapter/api"
	"github.com/felixgeelhaar/slate/adapter/cli"
	"github.com/felixgeelhaar/slate/adapter/cli/invoice"
	cliMCP "github.com/felixgeelhaar/slate/adapter/cli/mcp"
	"github.com/felixgeelhaar/slate/adapter/cli/project"
	"github.com/felixgeelhaar/slate/adapter/cli/user"
	"github.com/felixgeelhaar/slate/adapter/realtime"
	"github.com/felixgeelhaar/slate/internal/app"
	"github.com/felixgeelhaar/slate/pkg/config"
	"github.com/felixgeelhaar/slate/pkg/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := observability.NewLogger(observability.DefaultLogConfig())
	cli.SetLogger(logger)

	var container *app.Container
	defer func() {
		if container != nil {
			container.Close()
		}
	}()

	// The container is built on first use so --config is honored.
	cli.SetBootstrap(func(ctx context.Context) (*cli.App, error) {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}

		logCfg := observability.DefaultLogConfig()
		logCfg.Level = cfg.LogLevel
		logCfg.ServiceVersion = app.Version
		if cli.Verbose() {
			logCfg.Level = "debug"
		}
		logger = observability.NewLogger(logCfg)
		cli.SetLogger(logger)

		c, err := app.NewContainer(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		container = c

		userID, err := c.ActingUser()
		if err != nil {
			return nil, err
		}

		hub := realtime.NewHub(realtime.HubConfig{}, logger, c.Metrics)
		c.Bus.Subscribe(hub)
		c.Start(ctx)

		handler := api.NewProjectHandler(api.ProjectHandlerConfig{
			CreateProject:    c.CreateProjectHandler,
			UpdateProject:    c.UpdateProjectHandler,
			DeleteProject:    c.DeleteProjectHandler,
			UpdateStage:      c.UpdateStageStatusHandler,
			UpdateSpecial:    c.UpdateSpecialStatusHandler,
			GetProject:       c.GetProjectHandler,
			ListProjects:     c.ListProjectsHandler,
			ListHistory:      c.ListHistoryHandler,
			CheckPaymentGate: c.CheckPaymentGateHandler,
			Documents:        c.Billing,
			DefaultUser:      defaultUser(cfg, userID),
			Logger:           logger,
		})
		serverCfg := api.DefaultServerConfig()
		serverCfg.Addr = cfg.HTTPAddr

		a := cli.NewApp(c, userID)
		a.Server = &hubServer{
			Server: api.NewServer(serverCfg, handler, hub, c.Health, logger),
			hub:    hub,
		}
		return a, nil
	})

	cli.AddCommand(project.Cmd)
	cli.AddCommand(invoice.Cmd)
	cli.AddCommand(user.Cmd)
	cli.AddCommand(cliMCP.Cmd)

	cli.Execute(ctx)
}

func loadConfig() (*config.Config, error) {
	if path := cli.ConfigFile(); path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// defaultUser lets header-less API requests act as the local operator, but
// only in local mode.
func defaultUser(cfg *config.Config, local uuid.UUID) uuid.UUID {
	if !cfg.LocalMode {
		return uuid.Nil
	}
	return local
}

// hubServer closes websocket clients after the HTTP server stops.
type hubServer struct {
	*api.Server
	hub *realtime.Hub
}

func (s *hubServer) Shutdown(ctx context.Context) error {
	err := s.Server.Shutdown(ctx)
	s.hub.Close()
	return err
}
