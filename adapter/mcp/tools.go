package mcp

import (
	"errors"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/slate/adapter/cli"
)

// ToolDependencies provides handlers and context for MCP tools.
type ToolDependencies struct {
	App *cli.App
}

// RegisterTools registers the project and invoice tools.
func RegisterTools(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return errors.New("server is required")
	}
	if deps.App == nil {
		return errors.New("app is required")
	}

	tools := &toolset{app: deps.App}
	registerProjectTools(srv, tools)
	registerInvoiceTools(srv, tools)
	return nil
}

// toolset holds the tool handlers so they can be called without a server.
type toolset struct {
	app *cli.App
}

var errNoDatabase = errors.New("requires database connection")

func (t *toolset) ready() error {
	if t.app == nil || t.app.UpdateStageStatusHandler == nil {
		return errNoDatabase
	}
	return nil
}
