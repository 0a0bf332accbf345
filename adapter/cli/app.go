package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	internalApp "github.com/felixgeelhaar/slate/internal/app"
	billingApp "github.com/felixgeelhaar/slate/internal/billing/application"
	identityApp "github.com/felixgeelhaar/slate/internal/identity/application"
	"github.com/felixgeelhaar/slate/internal/projects/application/commands"
	"github.com/felixgeelhaar/slate/internal/projects/application/queries"
	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/slate/pkg/config"
	"github.com/felixgeelhaar/slate/pkg/observability"
)

// ErrNotInitialized is returned by commands run without a database.
var ErrNotInitialized = errors.New("application not initialized - database connection required")

// Runner is a long-running process started by `slate serve`.
type Runner interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// App holds the CLI application dependencies.
type App struct {
	// Project command handlers
	CreateProjectHandler       *commands.CreateProjectHandler
	UpdateProjectHandler       *commands.UpdateProjectHandler
	DeleteProjectHandler       *commands.DeleteProjectHandler
	UpdateStageStatusHandler   *commands.UpdateStageStatusHandler
	UpdateSpecialStatusHandler *commands.UpdateSpecialStatusHandler

	// Project query handlers
	GetProjectHandler       *queries.GetProjectHandler
	ListProjectsHandler     *queries.ListProjectsHandler
	ListHistoryHandler      *queries.ListHistoryHandler
	CheckPaymentGateHandler *queries.CheckPaymentGateHandler

	Users   *identityApp.Service
	Billing *billingApp.Service

	Config *config.Config
	Logger *slog.Logger
	Health *observability.HealthRegistry

	// Server is started by `slate serve`.
	Server Runner
	// Migrate applies pending schema migrations and returns their names.
	Migrate func(ctx context.Context) ([]string, error)

	// Current user (configured per environment)
	CurrentUserID uuid.UUID
}

// NewApp creates a CLI application backed by the container. The server is
// left for the caller to attach.
func NewApp(c *internalApp.Container, currentUserID uuid.UUID) *App {
	return &App{
		CreateProjectHandler:       c.CreateProjectHandler,
		UpdateProjectHandler:       c.UpdateProjectHandler,
		DeleteProjectHandler:       c.DeleteProjectHandler,
		UpdateStageStatusHandler:   c.UpdateStageStatusHandler,
		UpdateSpecialStatusHandler: c.UpdateSpecialStatusHandler,
		GetProjectHandler:          c.GetProjectHandler,
		ListProjectsHandler:        c.ListProjectsHandler,
		ListHistoryHandler:         c.ListHistoryHandler,
		CheckPaymentGateHandler:    c.CheckPaymentGateHandler,
		Users:                      c.Users,
		Billing:                    c.Billing,
		Config:                     c.Config,
		Logger:                     c.Logger,
		Health:                     c.Health,
		Migrate: func(ctx context.Context) ([]string, error) {
			return migrations.Run(ctx, c.DBConn, c.Logger)
		},
		CurrentUserID: currentUserID,
	}
}

// SetCurrentUserID updates the current user ID.
func (a *App) SetCurrentUserID(id uuid.UUID) {
	a.CurrentUserID = id
}

// app is the global CLI application instance
var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}

// RequireApp returns the application or ErrNotInitialized.
func RequireApp() (*App, error) {
	if app == nil {
		return nil, ErrNotInitialized
	}
	return app, nil
}

// ParseID parses a UUID argument with a readable error.
func ParseID(kind, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s ID: %w", kind, err)
	}
	return id, nil
}
