package project

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/slate/adapter/cli"
	"github.com/felixgeelhaar/slate/internal/projects/application/commands"
)

var (
	updateName          string
	updateBudget        int64
	updateCurrency      string
	updateTerm          int
	updateIssue         string
	updateEnd           string
	updateClearSchedule bool
)

var updateCmd = &cobra.Command{
	Use:   "update [project-id]",
	Short: "Update project details",
	Long: `Update a project's name, budget, payment term or schedule. Stage and
special status are changed with "slate project stage" and "slate project special".

Examples:
  slate project update abc123 --name "Brand film v2"
  slate project update abc123 --end 2026-03-31`,
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

		updateCmd := commands.UpdateProjectCommand{
			ProjectID:     projectID,
			UserID:        app.CurrentUserID,
			ClearSchedule: updateClearSchedule,
		}
		flags := cmd.Flags()
		if flags.Changed("name") {
			updateCmd.Name = &updateName
		}
		if flags.Changed("budget") {
			updateCmd.BudgetMinor = &updateBudget
		}
		if flags.Changed("currency") {
			updateCmd.Currency = &updateCurrency
		}
		if flags.Changed("term") {
			updateCmd.PaymentTermDays = &updateTerm
		}
		if updateCmd.IssueDate, err = parseDate("issue", updateIssue); err != nil {
			return err
		}
		if updateCmd.EndDate, err = parseDate("end", updateEnd); err != nil {
			return err
		}

		project, err := app.UpdateProjectHandler.Handle(cmd.Context(), updateCmd)
		if err != nil {
			return fmt.Errorf("failed to update project: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Project updated: %s (version %d)\n", project.Name, project.Version)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [project-id]",
	Short: "Delete a project",
	Long: `Permanently delete a project and its status history.

Examples:
  slate project delete abc123`,
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

		deleteCmd := commands.DeleteProjectCommand{
			ProjectID: projectID,
			UserID:    app.CurrentUserID,
		}
		if err := app.DeleteProjectHandler.Handle(cmd.Context(), deleteCmd); err != nil {
			return fmt.Errorf("failed to delete project: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Project deleted successfully.")
		return nil
	},
}

func init() {
	updateCmd.Flags().StringVar(&updateName, "name", "", "new name")
	updateCmd.Flags().Int64Var(&updateBudget, "budget", 0, "budget in minor units")
	updateCmd.Flags().StringVar(&updateCurrency, "currency", "", "ISO currency code")
	updateCmd.Flags().IntVar(&updateTerm, "term", 0, "payment term in days")
	updateCmd.Flags().StringVar(&updateIssue, "issue", "", "issue date (YYYY-MM-DD)")
	updateCmd.Flags().StringVar(&updateEnd, "end", "", "end date (YYYY-MM-DD)")
	updateCmd.Flags().BoolVar(&updateClearSchedule, "clear-schedule", false, "remove issue and end dates")
}
