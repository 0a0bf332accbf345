package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/slate/pkg/observability"
)

var healthTimeout time.Duration

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check database and broadcast connectivity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := RequireApp()
		if err != nil {
			return err
		}
		if a.Health == nil {
			return fmt.Errorf("health checks not configured")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), healthTimeout)
		defer cancel()
		result := a.Health.Check(ctx)

		names := make([]string, 0, len(result.Checks))
		for name := range result.Checks {
			names = append(names, name)
		}
		sort.Strings(names)

		out := cmd.OutOrStdout()
		for _, name := range names {
			check := result.Checks[name]
			line := fmt.Sprintf("%-10s %s (%s)", name, check.Status, check.Duration)
			if check.Message != "" {
				line += ": " + check.Message
			}
			fmt.Fprintln(out, line)
		}
		fmt.Fprintf(out, "overall: %s\n", result.Status)

		if result.Status == observability.HealthStatusUnhealthy {
			return fmt.Errorf("unhealthy")
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().DurationVar(&healthTimeout, "timeout", 5*time.Second, "time allowed for all checks")
	rootCmd.AddCommand(healthCmd)
}
