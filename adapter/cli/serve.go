package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var serveShutdownTimeout time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and live update endpoint",
	Long: `Serve the project API and the /ws live update endpoint until interrupted.

Examples:
  slate serve
  HTTP_ADDR=:9090 slate serve`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := RequireApp()
		if err != nil {
			return err
		}
		if a.Server == nil {
			return fmt.Errorf("server not configured")
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- a.Server.Start()
		}()

		select {
		case <-cmd.Context().Done():
			ctx, cancel := context.WithTimeout(context.Background(), serveShutdownTimeout)
			defer cancel()
			return a.Server.Shutdown(ctx)
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		}
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := RequireApp()
		if err != nil {
			return err
		}
		if a.Migrate == nil {
			return fmt.Errorf("migrations not configured")
		}
		applied, err := a.Migrate(cmd.Context())
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		if len(applied) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
			return nil
		}
		for _, name := range applied {
			fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().DurationVar(&serveShutdownTimeout, "shutdown-timeout", 10*time.Second, "graceful shutdown timeout")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}
