package project

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/slate/adapter/cli"
	"github.com/felixgeelhaar/slate/adapter/cli/invoice"
	"github.com/felixgeelhaar/slate/adapter/cli/user"
	internalApp "github.com/felixgeelhaar/slate/internal/app"
	"github.com/felixgeelhaar/slate/pkg/config"
)

// testUserID is a fixed user ID for tests
var testUserID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

var registerOnce sync.Once

// setupLocalModeTestApp creates a test application with SQLite for integration tests.
func setupLocalModeTestApp(t *testing.T) *internalApp.Container {
	t.Helper()

	cfg := &config.Config{
		AppEnv:                     "test",
		LocalMode:                  true,
		DatabaseDriver:             "sqlite",
		SQLitePath:                 filepath.Join(t.TempDir(), "test.db"),
		LogLevel:                   "error",
		UserID:                     testUserID.String(),
		BroadcastDriver:            internalApp.BroadcastInProcess,
		DefaultPaymentTermDays:     30,
		InvoiceDueHour:             12,
		RevertRequiresConfirmation: true,
		CancelRequiresConfirmation: true,
		MetricsExporter:            "none",
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	container, err := internalApp.NewContainer(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(container.Close)

	registerOnce.Do(func() {
		cli.AddCommand(Cmd)
		cli.AddCommand(invoice.Cmd)
		cli.AddCommand(user.Cmd)
	})
	cli.SetLogger(logger)
	cli.SetApp(cli.NewApp(container, testUserID))
	t.Cleanup(func() { cli.SetApp(nil) })

	return container
}

// run executes the root command and returns stdout and stderr.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := cli.RootCommand()
	resetFlags(root)

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// resetFlags restores defaults left behind by earlier runs.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

var idPattern = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

func createProject(t *testing.T) string {
	t.Helper()
	out, _, err := run(t, "project", "create", "Brand film", "--client", uuid.NewString(), "--budget", "250000", "--end", "2026-01-31")
	require.NoError(t, err)
	require.Contains(t, out, "Project created:")
	id := idPattern.FindString(out)
	require.NotEmpty(t, id)
	return id
}

func TestProjectCreateAndShow(t *testing.T) {
	setupLocalModeTestApp(t)
	id := createProject(t)

	out, _, err := run(t, "project", "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Brand film")
	assert.Contains(t, out, "2500.00 EUR")
	assert.Contains(t, out, "Ends:     2026-01-31")

	out, _, err = run(t, "project", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 project(s)")

	out, _, err = run(t, "project", "list", "--stage", "production")
	require.NoError(t, err)
	assert.Contains(t, out, "No projects found.")
}

func TestProjectCreateRequiresClient(t *testing.T) {
	setupLocalModeTestApp(t)
	_, _, err := run(t, "project", "create", "No client")
	assert.Error(t, err)
}

func TestProjectLifecycleCommands(t *testing.T) {
	c := setupLocalModeTestApp(t)
	id := createProject(t)

	out, _, err := run(t, "project", "stage", id, "accepted")
	require.NoError(t, err)
	assert.Contains(t, out, "is now Accepted")
	assert.Contains(t, out, "invoice created")

	_, stderr, err := run(t, "project", "stage", id, "completed", "--yes")
	require.Error(t, err)
	assert.Contains(t, stderr, "Unpaid documents:")

	out, _, err = run(t, "project", "gate", id)
	require.NoError(t, err)
	assert.Contains(t, out, "1 unpaid document(s)")

	docs, err := c.Billing.ListDocuments(context.Background(), uuid.MustParse(id))
	require.NoError(t, err)
	require.Len(t, docs, 1)

	out, _, err = run(t, "invoice", "list", id)
	require.NoError(t, err)
	assert.Contains(t, out, "invoice auto 2500.00 EUR due 2026-03-02 [unpaid]")

	out, _, err = run(t, "invoice", "pay", docs[0].ID().String())
	require.NoError(t, err)
	assert.Contains(t, out, "marked paid")

	_, stderr, err = run(t, "project", "stage", id, "completed")
	require.Error(t, err)
	assert.Contains(t, stderr, "--yes")

	out, _, err = run(t, "project", "stage", id, "completed", "--yes", "--reason", "wrapped")
	require.NoError(t, err)
	assert.Contains(t, out, "is now Completed")

	out, _, err = run(t, "project", "history", id)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "- -> proposal")
	assert.Contains(t, lines[2], "accepted -> completed  (wrapped)")
}

func TestProjectNoOpStage(t *testing.T) {
	setupLocalModeTestApp(t)
	id := createProject(t)

	out, _, err := run(t, "project", "stage", id, "proposal")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to do")
}

func TestProjectSpecialStatusCommands(t *testing.T) {
	setupLocalModeTestApp(t)
	id := createProject(t)

	_, stderr, err := run(t, "project", "special", id, "canceled")
	require.Error(t, err)
	assert.Contains(t, stderr, "--yes")

	out, _, err := run(t, "project", "special", id, "canceled", "-y")
	require.NoError(t, err)
	assert.Contains(t, out, "(CANCELED)")

	_, _, err = run(t, "project", "stage", id, "accepted")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "canceled")

	_, _, err = run(t, "project", "special", id, "none")
	require.NoError(t, err)

	_, _, err = run(t, "project", "stage", id, "accepted")
	require.NoError(t, err)
}

func TestProjectUpdateAndDelete(t *testing.T) {
	setupLocalModeTestApp(t)
	id := createProject(t)

	out, _, err := run(t, "project", "update", id, "--name", "Director's cut")
	require.NoError(t, err)
	assert.Contains(t, out, "Director's cut")

	out, _, err = run(t, "project", "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted")

	_, _, err = run(t, "project", "show", id)
	assert.Error(t, err)
}

func TestInvoiceCreateQuote(t *testing.T) {
	setupLocalModeTestApp(t)
	id := createProject(t)

	out, _, err := run(t, "invoice", "create", id, "--type", "quote", "--amount", "12345", "--issue", "2026-01-10", "--term", "14")
	require.NoError(t, err)
	assert.Contains(t, out, "quote 123.45 EUR due 2026-01-24")

	_, _, err = run(t, "invoice", "create", id, "--type", "receipt", "--amount", "1")
	assert.Error(t, err)
}

func TestUserCommands(t *testing.T) {
	setupLocalModeTestApp(t)

	out, _, err := run(t, "user", "add", "editor@example.com", "Editor")
	require.NoError(t, err)
	assert.Contains(t, out, "editor@example.com")

	out, _, err = run(t, "user", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "* "+testUserID.String())
	assert.Contains(t, out, "editor@example.com")
}

func TestInvalidProjectID(t *testing.T) {
	setupLocalModeTestApp(t)
	_, _, err := run(t, "project", "show", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid project ID")
}

func TestHealthCommand(t *testing.T) {
	setupLocalModeTestApp(t)

	out, _, err := run(t, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "database")
	assert.Contains(t, out, "overall: healthy")
}

func TestMigrateIsIdempotent(t *testing.T) {
	setupLocalModeTestApp(t)

	out, _, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema is up to date.")
}
