package project

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/slate/adapter/cli"
	"github.com/felixgeelhaar/slate/internal/projects/application/queries"
)

var (
	listStage   string
	listSpecial string
	listClient  string
	listLimit   int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Long: `List projects, optionally filtered by stage, special status or client.

Examples:
  slate project list
  slate project list --stage production
  slate project list --special delayed`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}

		query := queries.ListProjectsQuery{
			Stage:         listStage,
			SpecialStatus: listSpecial,
			Limit:         listLimit,
		}
		if listClient != "" {
			clientID, err := cli.ParseID("client", listClient)
			if err != nil {
				return err
			}
			query.ClientID = &clientID
		}

		projects, err := app.ListProjectsHandler.Handle(cmd.Context(), query)
		if err != nil {
			return fmt.Errorf("failed to list projects: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(projects) == 0 {
			fmt.Fprintln(out, "No projects found.")
			return nil
		}

		fmt.Fprintf(out, "Found %d project(s):\n\n", len(projects))
		for _, p := range projects {
			fmt.Fprintf(out, "%s %s [%s]%s\n", stageToIcon(p.Stage), p.Name, p.StageLabel, specialSuffix(p))
			fmt.Fprintf(out, "   ID: %s\n", p.ID)
			fmt.Fprintf(out, "   Budget: %s\n", formatMoney(p.BudgetMinor, p.Currency))
			if p.EndDate != nil {
				fmt.Fprintf(out, "   Ends: %s\n", p.EndDate.Format("2006-01-02"))
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listStage, "stage", "", "filter by stage")
	listCmd.Flags().StringVar(&listSpecial, "special", "", "filter by special status (none, delayed, paused, canceled)")
	listCmd.Flags().StringVar(&listClient, "client", "", "filter by client ID")
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "maximum number of projects")
}
