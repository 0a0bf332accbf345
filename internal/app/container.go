package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	billingApp "github.com/felixgeelhaar/slate/internal/billing/application"
	billingDomain "github.com/felixgeelhaar/slate/internal/billing/domain"
	billingPersistence "github.com/felixgeelhaar/slate/internal/billing/infrastructure/persistence"
	identityApp "github.com/felixgeelhaar/slate/internal/identity/application"
	identityDomain "github.com/felixgeelhaar/slate/internal/identity/domain"
	identityPersistence "github.com/felixgeelhaar/slate/internal/identity/infrastructure/persistence"
	"github.com/felixgeelhaar/slate/internal/projects/application/commands"
	"github.com/felixgeelhaar/slate/internal/projects/application/queries"
	projectsDomain "github.com/felixgeelhaar/slate/internal/projects/domain"
	projectsPersistence "github.com/felixgeelhaar/slate/internal/projects/infrastructure/persistence"
	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/slate/internal/shared/infrastructure/database/postgres" // Register PostgreSQL driver
	_ "github.com/felixgeelhaar/slate/internal/shared/infrastructure/database/sqlite"   // Register SQLite driver
	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/slate/pkg/config"
	"github.com/felixgeelhaar/slate/pkg/observability"
)

// Broadcast drivers.
const (
	BroadcastInProcess = "inprocess"
	BroadcastRedis     = "redis"
)

// Version is stamped into logs and metrics.
var Version = "dev"

// Container holds all application dependencies.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics observability.Metrics
	Health  *observability.HealthRegistry

	// Database
	DBConn   database.Connection
	DBDriver database.Driver

	// Redis, only when broadcasting through it
	RedisClient     *redis.Client
	redisSubscriber *eventbus.RedisSubscriber

	// Repositories
	ProjectRepo  projectsDomain.Repository
	HistoryRepo  projectsDomain.HistoryRepository
	DocumentRepo billingDomain.Repository
	UserRepo     identityDomain.UserRepository
	OutboxRepo   outbox.Repository

	// Unit of Work
	UnitOfWork *database.UnitOfWork

	// Bus is the node-local fan-out the realtime hub subscribes to.
	Bus *eventbus.InProcessBus
	// Broadcaster is where committed project updates are published.
	Broadcaster eventbus.Publisher

	// Services
	Users   *identityApp.Service
	Billing *billingApp.Service

	// Project Command Handlers
	CreateProjectHandler       *commands.CreateProjectHandler
	UpdateProjectHandler       *commands.UpdateProjectHandler
	DeleteProjectHandler       *commands.DeleteProjectHandler
	UpdateStageStatusHandler   *commands.UpdateStageStatusHandler
	UpdateSpecialStatusHandler *commands.UpdateSpecialStatusHandler

	// Project Query Handlers
	GetProjectHandler       *queries.GetProjectHandler
	ListProjectsHandler     *queries.ListProjectsHandler
	ListHistoryHandler      *queries.ListHistoryHandler
	CheckPaymentGateHandler *queries.CheckPaymentGateHandler

	meterShutdown func(context.Context) error
}

// NewContainer connects to the configured database, migrates it when running
// locally, and wires every handler.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{
		Config: cfg,
		Logger: logger,
		Health: observability.NewHealthRegistry(),
	}

	shutdown, err := observability.InitMeterProvider(ctx, cfg.MetricsExporter, "slate", Version, cfg.MetricsInterval)
	if err != nil {
		return nil, err
	}
	c.meterShutdown = shutdown
	c.Metrics = observability.NewOTelMetrics()

	conn, err := database.Open(ctx, database.Config{
		Driver:     database.ParseDriver(cfg.DatabaseDriver),
		URL:        cfg.DatabaseURL,
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	c.DBConn = conn
	c.DBDriver = conn.Driver()
	c.Health.Register("database", observability.PingChecker("database", observability.HealthStatusUnhealthy, conn.Ping))
	logger.Info("connected to database", "driver", c.DBDriver)

	if cfg.LocalMode || c.DBDriver == database.DriverSQLite {
		if _, err := migrations.Run(ctx, conn, logger); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	c.ProjectRepo, c.HistoryRepo = projectsPersistence.NewRepositories(conn)
	c.DocumentRepo = billingPersistence.NewRepository(conn)
	c.UserRepo = identityPersistence.NewUserRepository(conn)
	c.OutboxRepo = outbox.NewRepository(conn)
	c.UnitOfWork = database.NewUnitOfWork(conn)

	if err := c.initBroadcast(ctx); err != nil {
		c.Close()
		return nil, err
	}

	c.Users = identityApp.NewService(c.UserRepo, c.OutboxRepo, c.UnitOfWork)
	c.Billing = billingApp.NewService(c.DocumentRepo, c.OutboxRepo, c.UnitOfWork,
		billingApp.Config{InvoiceDueHour: cfg.InvoiceDueHour}, logger, c.Metrics)

	if cfg.LocalMode {
		if err := c.ensureLocalUser(ctx); err != nil {
			c.Close()
			return nil, err
		}
	}

	deps := commands.Dependencies{
		Projects: c.ProjectRepo,
		History:  c.HistoryRepo,
		Validator: projectsDomain.NewValidator(c.Billing, projectsDomain.ValidatorPolicy{
			RevertRequiresConfirmation: cfg.RevertRequiresConfirmation,
		}),
		Sync:      c.Billing,
		Users:     c.Users,
		Outbox:    c.OutboxRepo,
		Publisher: c.Broadcaster,
		UoW:       c.UnitOfWork,
		Policy: commands.Policy{
			CancelRequiresConfirmation: cfg.CancelRequiresConfirmation,
			DefaultPaymentTermDays:     cfg.DefaultPaymentTermDays,
		},
		Logger:  logger,
		Metrics: c.Metrics,
	}

	// Create project command handlers
	c.CreateProjectHandler = commands.NewCreateProjectHandler(deps)
	c.UpdateProjectHandler = commands.NewUpdateProjectHandler(deps)
	c.DeleteProjectHandler = commands.NewDeleteProjectHandler(deps)
	c.UpdateStageStatusHandler = commands.NewUpdateStageStatusHandler(deps)
	c.UpdateSpecialStatusHandler = commands.NewUpdateSpecialStatusHandler(deps)

	// Create project query handlers
	c.GetProjectHandler = queries.NewGetProjectHandler(c.ProjectRepo, c.Billing)
	c.ListProjectsHandler = queries.NewListProjectsHandler(c.ProjectRepo)
	c.ListHistoryHandler = queries.NewListHistoryHandler(c.ProjectRepo, c.HistoryRepo)
	c.CheckPaymentGateHandler = queries.NewCheckPaymentGateHandler(c.ProjectRepo, c.Billing)

	logger.Info("container ready",
		"driver", c.DBDriver,
		"broadcast", cfg.BroadcastDriver,
		"local_mode", cfg.LocalMode,
	)
	return c, nil
}

// initBroadcast sets up the in-process bus and, with the redis driver, the
// cross-node relay in front of it.
func (c *Container) initBroadcast(ctx context.Context) error {
	c.Bus = eventbus.NewInProcessBus(c.Logger)

	switch c.Config.BroadcastDriver {
	case "", BroadcastInProcess:
		c.Broadcaster = c.Bus
		return nil
	case BroadcastRedis:
	default:
		return fmt.Errorf("unknown broadcast driver %q", c.Config.BroadcastDriver)
	}

	client, err := eventbus.NewRedisClient(ctx, c.Config.RedisURL)
	if err != nil {
		if !c.Config.IsDevelopment() {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		c.Logger.Warn("Redis not available, broadcasting in-process only", "error", err)
		c.Broadcaster = c.Bus
		return nil
	}
	c.RedisClient = client
	c.Broadcaster = eventbus.NewBreakerPublisher(eventbus.NewRedisPublisher(client, c.Logger), eventbus.BreakerConfig{
		Name:             "broadcast",
		FailureThreshold: c.Config.BreakerFailureThreshold,
		OpenTimeout:      c.Config.BreakerOpenTimeout,
	}, c.Logger)
	c.redisSubscriber = eventbus.NewRedisSubscriber(client, c.Bus, c.Logger, commands.TopicPrefix+"*")
	c.Health.Register("redis", observability.PingChecker("redis", observability.HealthStatusDegraded, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}))
	c.Logger.Info("connected to Redis")
	return nil
}

// Start runs background relays until ctx is done.
func (c *Container) Start(ctx context.Context) {
	if c.redisSubscriber == nil {
		return
	}
	go func() {
		if err := c.redisSubscriber.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.Logger.Error("redis subscriber stopped", "error", err)
		}
	}()
}

// ActingUser is the operator identity used by the CLI and local mode.
func (c *Container) ActingUser() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Config.UserID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid SLATE_USER_ID: %w", err)
	}
	return id, nil
}

func (c *Container) ensureLocalUser(ctx context.Context) error {
	id, err := c.ActingUser()
	if err != nil {
		return err
	}
	if _, err := c.Users.EnsureUser(ctx, id, "local@slate.local", "Local User"); err != nil {
		return fmt.Errorf("failed to ensure local user exists: %w", err)
	}
	return nil
}

// Close cleans up all resources.
func (c *Container) Close() {
	if c.Broadcaster != nil {
		if err := c.Broadcaster.Close(); err != nil {
			c.Logger.Warn("error closing broadcaster", "error", err)
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("error closing Redis connection", "error", err)
		} else {
			c.Logger.Info("Redis connection closed")
		}
	}

	if c.DBConn != nil {
		if err := c.DBConn.Close(); err != nil {
			c.Logger.Warn("error closing database connection", "error", err)
		} else {
			c.Logger.Info("database connection closed", "driver", c.DBDriver)
		}
	}

	if c.meterShutdown != nil {
		if err := c.meterShutdown(context.Background()); err != nil {
			c.Logger.Warn("error shutting down metrics", "error", err)
		}
	}
}
