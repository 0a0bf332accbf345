package mcp

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/slate/adapter/cli"
	"github.com/felixgeelhaar/slate/internal/app"
	mcpinternal "github.com/felixgeelhaar/slate/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server on MCP_ADDR",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := cli.RequireApp()
		if err != nil {
			return err
		}
		err = mcpinternal.Serve(cmd.Context(), a.Config, a, app.Version, a.Logger)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}
