package project

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/slate/adapter/cli"
	"github.com/felixgeelhaar/slate/internal/projects/application/queries"
)

var historyKind string

var historyCmd = &cobra.Command{
	Use:   "history [project-id]",
	Short: "Show a project's status history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		projectID, err := cli.ParseID("project", args[0])
		if err != nil {
			return err
		}

		records, err := app.ListHistoryHandler.Handle(cmd.Context(), queries.ListHistoryQuery{
			ProjectID: projectID,
			Kind:      historyKind,
		})
		if err != nil {
			return fmt.Errorf("failed to list history: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(records) == 0 {
			fmt.Fprintln(out, "No history recorded.")
			return nil
		}
		for _, r := range records {
			from := r.PreviousStatus
			if from == "" {
				from = "-"
			}
			fmt.Fprintf(out, "%s  %-7s %s -> %s", r.ChangedAt.Local().Format("2006-01-02 15:04"), r.Kind, from, r.NewStatus)
			if r.Reason != "" {
				fmt.Fprintf(out, "  (%s)", r.Reason)
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

var gateCmd = &cobra.Command{
	Use:   "gate [project-id]",
	Short: "Check whether a project could be completed now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		projectID, err := cli.ParseID("project", args[0])
		if err != nil {
			return err
		}

		gate, err := app.CheckPaymentGateHandler.Handle(cmd.Context(), queries.CheckPaymentGateQuery{ProjectID: projectID})
		if err != nil {
			return fmt.Errorf("failed to check payment gate: %w", err)
		}

		out := cmd.OutOrStdout()
		switch {
		case gate.CanComplete:
			fmt.Fprintln(out, "✅ All documents are paid. The project can be completed.")
		case gate.NoDocuments:
			fmt.Fprintln(out, "⛔ The project has no financial documents.")
		default:
			fmt.Fprintf(out, "⛔ %d unpaid document(s):\n", len(gate.Unpaid))
			for _, d := range gate.Unpaid {
				fmt.Fprintf(out, "  - %s %s %s\n", d.ID, d.DocumentType, formatMoney(d.AmountMinor, d.Currency))
			}
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyKind, "kind", "", "only show stage or special records")
}
