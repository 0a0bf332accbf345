package project

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/slate/adapter/cli"
	"github.com/felixgeelhaar/slate/internal/projects/application/commands"
)

var (
	createClient   string
	createBudget   int64
	createCurrency string
	createTerm     int
	createIssue    string
	createEnd      string
)

var createCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a new project",
	Long: `Create a project in the proposal stage.

The budget is given in minor units (cents). The automatic invoice is
due the configured number of days after the project end date.

Examples:
  slate project create "Brand film" --client 7d0c... --budget 250000
  slate project create "Music video" --client 7d0c... --budget 90000 --end 2026-01-31 --term 14`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}

		clientID, err := cli.ParseID("client", createClient)
		if err != nil {
			return err
		}

		createCmd := commands.CreateProjectCommand{
			UserID:      app.CurrentUserID,
			ClientID:    clientID,
			Name:        args[0],
			BudgetMinor: createBudget,
			Currency:    createCurrency,
		}
		if cmd.Flags().Changed("term") {
			term := createTerm
			createCmd.PaymentTermDays = &term
		}
		if createCmd.IssueDate, err = parseDate("issue", createIssue); err != nil {
			return err
		}
		if createCmd.EndDate, err = parseDate("end", createEnd); err != nil {
			return err
		}

		project, err := app.CreateProjectHandler.Handle(cmd.Context(), createCmd)
		if err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Project created: %s\n", project.ID)
		fmt.Fprintf(out, "  name: %s\n", project.Name)
		fmt.Fprintf(out, "  budget: %s\n", formatMoney(project.BudgetMinor, project.Currency))
		fmt.Fprintf(out, "  stage: %s\n", project.StageLabel)
		return nil
	},
}

func parseDate(name, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s date format (use YYYY-MM-DD): %w", name, err)
	}
	return &parsed, nil
}

func init() {
	createCmd.Flags().StringVar(&createClient, "client", "", "client ID (required)")
	createCmd.Flags().Int64Var(&createBudget, "budget", 0, "budget in minor units")
	createCmd.Flags().StringVar(&createCurrency, "currency", "", "ISO currency code (default EUR)")
	createCmd.Flags().IntVar(&createTerm, "term", 0, "payment term in days")
	createCmd.Flags().StringVar(&createIssue, "issue", "", "issue date (YYYY-MM-DD)")
	createCmd.Flags().StringVar(&createEnd, "end", "", "end date (YYYY-MM-DD)")
	_ = createCmd.MarkFlagRequired("client")
}
