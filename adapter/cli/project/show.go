package project

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/slate/adapter/cli"
	"github.com/felixgeelhaar/slate/internal/projects/application/queries"
)

var showCmd = &cobra.Command{
	Use:   "show [project-id]",
	Short: "Show project details",
	Long: `Show a project with its financial documents and the stages it can move to.

Examples:
  slate project show 550e8400-e29b-41d4-a716-446655440000`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		projectID, err := cli.ParseID("project", args[0])
		if err != nil {
			return err
		}

		detail, err := app.GetProjectHandler.Handle(cmd.Context(), queries.GetProjectQuery{ProjectID: projectID})
		if err != nil {
			return fmt.Errorf("failed to get project: %w", err)
		}

		p := detail.Project
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %s%s\n", stageToIcon(p.Stage), p.Name, specialSuffix(p))
		fmt.Fprintf(out, "  ID:       %s\n", p.ID)
		fmt.Fprintf(out, "  Client:   %s\n", p.ClientID)
		fmt.Fprintf(out, "  Stage:    %s\n", p.StageLabel)
		fmt.Fprintf(out, "  Special:  %s\n", p.SpecialLabel)
		fmt.Fprintf(out, "  Budget:   %s\n", formatMoney(p.BudgetMinor, p.Currency))
		fmt.Fprintf(out, "  Term:     %d days\n", p.PaymentTermDays)
		if p.IssueDate != nil {
			fmt.Fprintf(out, "  Issued:   %s\n", p.IssueDate.Format("2006-01-02"))
		}
		if p.EndDate != nil {
			fmt.Fprintf(out, "  Ends:     %s\n", p.EndDate.Format("2006-01-02"))
		}
		if len(detail.AllowedStages) > 0 {
			fmt.Fprintf(out, "  Next:     %s\n", strings.Join(detail.AllowedStages, ", "))
		}

		if len(detail.Documents) > 0 {
			fmt.Fprintln(out, "\nDocuments:")
			for _, d := range detail.Documents {
				state := "unpaid"
				if d.Paid {
					state = "paid"
				}
				fmt.Fprintf(out, "  - %s %s %s due %s [%s]\n",
					d.ID, d.DocumentType, formatMoney(d.AmountMinor, d.Currency), d.DueDate.Format("2006-01-02"), state)
			}
		}
		return nil
	},
}
