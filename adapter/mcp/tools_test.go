package mcp

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/slate/adapter/cli"
	internalApp "github.com/felixgeelhaar/slate/internal/app"
	"github.com/felixgeelhaar/slate/pkg/config"
)

func newTestToolset(t *testing.T) *toolset {
	t.Helper()
	cfg := &config.Config{
		AppEnv:                     "test",
		LocalMode:                  true,
		DatabaseDriver:             "sqlite",
		SQLitePath:                 filepath.Join(t.TempDir(), "mcp.db"),
		UserID:                     "00000000-0000-0000-0000-000000000001",
		BroadcastDriver:            internalApp.BroadcastInProcess,
		DefaultPaymentTermDays:     30,
		InvoiceDueHour:             12,
		RevertRequiresConfirmation: true,
		CancelRequiresConfirmation: true,
		MetricsExporter:            "none",
	}
	container, err := internalApp.NewContainer(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(container.Close)

	userID, err := container.ActingUser()
	require.NoError(t, err)
	return &toolset{app: cli.NewApp(container, userID)}
}

func TestRegisterTools_ListTools(t *testing.T) {
	srv := mcp.NewServer(mcp.ServerInfo{
		Name:    "test",
		Version: "1.0.0",
		Capabilities: mcp.Capabilities{
			Tools: true,
		},
	})

	require.NoError(t, RegisterTools(srv, ToolDependencies{App: &cli.App{}}))

	tc := testutil.NewTestClient(t, srv)
	defer tc.Close()

	tools, err := tc.ListTools()
	require.NoError(t, err)

	names := make(map[any]bool)
	for _, tool := range tools {
		names[tool["name"]] = true
	}
	for _, name := range []string{"project.stage", "project.special", "project.show", "project.history", "project.gate", "invoice.pay"} {
		assert.True(t, names[name], "%s should be registered", name)
	}
}

func TestRegisterTools_RequiresApp(t *testing.T) {
	srv := mcp.NewServer(mcp.ServerInfo{Name: "test", Version: "1.0.0"})
	assert.Error(t, RegisterTools(srv, ToolDependencies{}))
	assert.Error(t, RegisterTools(nil, ToolDependencies{App: &cli.App{}}))
}

func TestToolsWithoutDatabase(t *testing.T) {
	tools := &toolset{app: &cli.App{}}
	_, err := tools.projectStage(context.Background(), statusChangeInput{ProjectID: uuid.NewString(), Target: "accepted"})
	assert.ErrorIs(t, err, errNoDatabase)
}

func TestProjectTools_Lifecycle(t *testing.T) {
	ctx := context.Background()
	tools := newTestToolset(t)

	project, err := tools.projectCreate(ctx, projectCreateInput{
		Name:        "Commercial",
		ClientID:    uuid.NewString(),
		BudgetMinor: 80000,
		EndDate:     "2026-01-31",
	})
	require.NoError(t, err)
	id := project.ID.String()

	out, err := tools.projectStage(ctx, statusChangeInput{ProjectID: id, Target: "accepted"})
	require.NoError(t, err)
	require.True(t, out.Applied)
	require.NotNil(t, out.Result.InvoiceCreated)

	out, err = tools.projectStage(ctx, statusChangeInput{ProjectID: id, Target: "completed", Confirmed: true})
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.Equal(t, "PAYMENT_PENDING", out.ReasonCode)
	require.Len(t, out.Unpaid, 1)

	docs, err := tools.invoiceList(ctx, projectIDInput{ProjectID: id})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.True(t, docs[0].AutoCreated)

	paid, err := tools.invoicePay(ctx, invoicePayInput{DocumentID: docs[0].ID.String()})
	require.NoError(t, err)
	assert.True(t, paid.Paid)

	gate, err := tools.projectGate(ctx, projectIDInput{ProjectID: id})
	require.NoError(t, err)
	assert.True(t, gate.CanComplete)

	out, err = tools.projectStage(ctx, statusChangeInput{ProjectID: id, Target: "completed"})
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.Equal(t, "CONFIRMATION_REQUIRED", out.ReasonCode)

	out, err = tools.projectStage(ctx, statusChangeInput{ProjectID: id, Target: "completed", Confirmed: true})
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, "completed", out.Result.Project.Stage)

	history, err := tools.projectHistory(ctx, historyInput{ProjectID: id, Kind: "stage"})
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestProjectTools_SpecialAndNoOp(t *testing.T) {
	ctx := context.Background()
	tools := newTestToolset(t)

	project, err := tools.projectCreate(ctx, projectCreateInput{Name: "Short film", ClientID: uuid.NewString()})
	require.NoError(t, err)
	id := project.ID.String()

	out, err := tools.projectStage(ctx, statusChangeInput{ProjectID: id, Target: "proposal"})
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.Equal(t, "NO_OP", out.ReasonCode)

	out, err = tools.projectSpecial(ctx, statusChangeInput{ProjectID: id, Target: "paused", Reason: "waiting on locations"})
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, "paused", out.Result.Project.SpecialStatus)

	detail, err := tools.projectShow(ctx, projectIDInput{ProjectID: id})
	require.NoError(t, err)
	assert.Equal(t, "paused", detail.Project.SpecialStatus)

	paused, err := tools.projectList(ctx, projectListInput{SpecialStatus: "paused"})
	require.NoError(t, err)
	assert.Len(t, paused, 1)
}

func TestInvoiceTools_Validation(t *testing.T) {
	ctx := context.Background()
	tools := newTestToolset(t)

	project, err := tools.projectCreate(ctx, projectCreateInput{Name: "Series pilot", ClientID: uuid.NewString()})
	require.NoError(t, err)

	_, err = tools.invoiceCreate(ctx, invoiceCreateInput{ProjectID: project.ID.String(), DocumentType: "receipt", AmountMinor: 100})
	assert.Error(t, err)

	_, err = tools.invoiceCreate(ctx, invoiceCreateInput{ProjectID: project.ID.String(), AmountMinor: 100, IssueDate: "31/01/2026"})
	assert.Error(t, err)

	doc, err := tools.invoiceCreate(ctx, invoiceCreateInput{ProjectID: project.ID.String(), AmountMinor: 100})
	require.NoError(t, err)
	assert.Equal(t, "invoice", doc.DocumentType)
	assert.False(t, doc.AutoCreated)

	_, err = tools.projectShow(ctx, projectIDInput{ProjectID: "nope"})
	assert.Error(t, err)
}
