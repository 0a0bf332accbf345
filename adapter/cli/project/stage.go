package project

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/slate/adapter/cli"
	"github.com/felixgeelhaar/slate/internal/projects/application/commands"
	"github.com/felixgeelhaar/slate/internal/projects/domain"
)

var (
	changeReason string
	changeYes    bool
)

var stageCmd = &cobra.Command{
	Use:   "stage [project-id] [stage]",
	Short: "Move a project to another stage",
	Long: `Move a project to another stage.

Stages: proposal, accepted, pre_production, production, post_review,
delivered, completed.

Entering accepted or later from proposal issues the project invoice.
Moving back to proposal removes unpaid automatic invoices and needs --yes.
Completing requires every financial document to be paid and needs --yes.

Examples:
  slate project stage abc123 accepted
  slate project stage abc123 proposal --yes --reason "client asked for a new quote"
  slate project stage abc123 completed --yes`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		projectID, err := cli.ParseID("project", args[0])
		if err != nil {
			return err
		}

		res, err := app.UpdateStageStatusHandler.Handle(cmd.Context(), commands.UpdateStageStatusCommand{
			ProjectID: projectID,
			UserID:    app.CurrentUserID,
			Target:    args[1],
			Reason:    changeReason,
			Confirmed: changeYes,
		})
		if err != nil {
			return explainRejection(cmd.ErrOrStderr(), err)
		}
		printTransition(cmd.OutOrStdout(), res)
		return nil
	},
}

var specialCmd = &cobra.Command{
	Use:   "special [project-id] [status]",
	Short: "Set a project's special status",
	Long: `Set the special status shown alongside the stage.

Statuses: none, delayed, paused, canceled. A canceled project cannot change
stage until its special status is cleared; canceling needs --yes.

Examples:
  slate project special abc123 delayed --reason "weather"
  slate project special abc123 canceled --yes
  slate project special abc123 none`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		projectID, err := cli.ParseID("project", args[0])
		if err != nil {
			return err
		}

		res, err := app.UpdateSpecialStatusHandler.Handle(cmd.Context(), commands.UpdateSpecialStatusCommand{
			ProjectID: projectID,
			UserID:    app.CurrentUserID,
			Target:    args[1],
			Reason:    changeReason,
			Confirmed: changeYes,
		})
		if err != nil {
			return explainRejection(cmd.ErrOrStderr(), err)
		}
		printTransition(cmd.OutOrStdout(), res)
		return nil
	},
}

// explainRejection prints the details of a rejected change and returns the
// error for the exit status.
func explainRejection(out io.Writer, err error) error {
	var terr *domain.TransitionError
	if !errors.As(err, &terr) {
		return fmt.Errorf("failed to change status: %w", err)
	}
	switch terr.Code {
	case domain.ReasonConfirmationRequired:
		fmt.Fprintf(out, "%s. Re-run with --yes to confirm.\n", terr.Message)
	case domain.ReasonPaymentPending:
		fmt.Fprintln(out, "Unpaid documents:")
		for _, d := range terr.Unpaid {
			fmt.Fprintf(out, "  - %s %s %s\n", d.ID, d.DocumentType, formatMoney(d.AmountMinor, d.Currency))
		}
	}
	return err
}

func init() {
	for _, c := range []*cobra.Command{stageCmd, specialCmd} {
		c.Flags().StringVarP(&changeReason, "reason", "r", "", "reason recorded in the status history")
		c.Flags().BoolVarP(&changeYes, "yes", "y", false, "confirm a change that needs confirmation")
	}
}
